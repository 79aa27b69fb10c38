// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nhachung/chatsync/chat"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, AuthToken: "session-token"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("empty base URL", func(t *testing.T) {
		if _, err := NewClient(Config{}); err == nil {
			t.Fatal("expected error for empty BaseURL")
		}
	})

	t.Run("trailing slash is stripped", func(t *testing.T) {
		var path string
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			path = request.URL.Path
			writer.Write([]byte("[]"))
		}))
		defer server.Close()

		client, err := NewClient(Config{BaseURL: server.URL + "/"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if _, err := client.GetConversations(context.Background(), 1); err != nil {
			t.Fatalf("GetConversations failed: %v", err)
		}
		if path != "/api/conversations" {
			t.Errorf("request path = %q, want /api/conversations", path)
		}
	})
}

func TestGetMessages(t *testing.T) {
	t.Run("decodes items and sends auth", func(t *testing.T) {
		createdAt := time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)
		client := testClient(t, func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/api/conversations/7/messages" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			if got := request.Header.Get("Authorization"); got != "Bearer session-token" {
				t.Errorf("unexpected Authorization header: %q", got)
			}
			query := request.URL.Query()
			if query.Get("viewerId") != "1" || query.Get("page") != "1" || query.Get("pageSize") != "50" {
				t.Errorf("unexpected query: %v", query)
			}
			json.NewEncoder(writer).Encode(map[string]any{
				"items": []chat.Message{
					{MessageID: "m1", ConversationID: 7, Type: chat.MessageText, Content: "hello", CreatedAt: createdAt},
				},
			})
		})

		messages, err := client.GetMessages(context.Background(), 7, 1, 1, 50)
		if err != nil {
			t.Fatalf("GetMessages failed: %v", err)
		}
		if len(messages) != 1 || messages[0].MessageID != "m1" {
			t.Fatalf("unexpected messages: %+v", messages)
		}
		if !messages[0].CreatedAt.Equal(createdAt) {
			t.Errorf("createdAt = %v, want %v", messages[0].CreatedAt, createdAt)
		}
	})

	t.Run("structured error decodes into APIError", func(t *testing.T) {
		client := testClient(t, func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusForbidden)
			json.NewEncoder(writer).Encode(APIError{Code: ErrCodeForbidden, Message: "not a participant"})
		})

		_, err := client.GetMessages(context.Background(), 7, 1, 1, 50)
		if !IsAPIError(err, ErrCodeForbidden) {
			t.Fatalf("GetMessages error = %v, want FORBIDDEN APIError", err)
		}
		var apiErr *APIError
		errors.As(err, &apiErr)
		if apiErr.StatusCode != http.StatusForbidden {
			t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
		}
	})

	t.Run("non-JSON error body still yields APIError", func(t *testing.T) {
		client := testClient(t, func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusBadGateway)
			writer.Write([]byte("upstream timeout"))
		})

		_, err := client.GetMessages(context.Background(), 7, 1, 1, 50)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("GetMessages error = %v, want *APIError", err)
		}
		if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "upstream timeout" {
			t.Errorf("unexpected APIError: %+v", apiErr)
		}
	})
}

func TestGetConversations(t *testing.T) {
	client := testClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Query().Get("viewerId") != "2" {
			t.Errorf("unexpected viewerId: %s", request.URL.Query().Get("viewerId"))
		}
		json.NewEncoder(writer).Encode([]chat.Conversation{
			{ConversationID: 7, TenantID: 1, LandlordID: 2, UnreadCount: 3},
		})
	})

	conversations, err := client.GetConversations(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetConversations failed: %v", err)
	}
	if len(conversations) != 1 || conversations[0].ConversationID != 7 {
		t.Fatalf("unexpected conversations: %+v", conversations)
	}
	if conversations[0].UnreadCount != 3 {
		t.Errorf("UnreadCount = %d, want 3", conversations[0].UnreadCount)
	}
}

func TestMarkAsRead(t *testing.T) {
	t.Run("posts viewer", func(t *testing.T) {
		client := testClient(t, func(writer http.ResponseWriter, request *http.Request) {
			if request.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", request.Method)
			}
			if request.URL.Path != "/api/conversations/7/read" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			var body map[string]int64
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["viewerId"] != 1 {
				t.Errorf("viewerId = %d, want 1", body["viewerId"])
			}
			writer.Write([]byte("{}"))
		})

		if err := client.MarkAsRead(context.Background(), 7, 1); err != nil {
			t.Fatalf("MarkAsRead failed: %v", err)
		}
	})

	t.Run("server error is returned", func(t *testing.T) {
		client := testClient(t, func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusNotFound)
			json.NewEncoder(writer).Encode(APIError{Code: ErrCodeNotFound, Message: "no such conversation"})
		})

		if err := client.MarkAsRead(context.Background(), 404, 1); !IsAPIError(err, ErrCodeNotFound) {
			t.Errorf("MarkAsRead error = %v, want NOT_FOUND APIError", err)
		}
	})
}
