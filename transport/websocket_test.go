// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// chatServer is a scripted WebSocket endpoint. Frames received from
// the client are passed to onFrame, which may write response frames
// back on the same connection.
type chatServer struct {
	*httptest.Server
	onFrame func(conn *websocket.Conn, f frame)
}

func newChatServer(t *testing.T, onFrame func(conn *websocket.Conn, f frame)) *chatServer {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := &chatServer{onFrame: onFrame}
	server.Server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		conn, err := upgrader.Upgrade(writer, request, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			if server.onFrame != nil {
				server.onFrame(conn, f)
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *chatServer) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialTest(t *testing.T, server *chatServer) *WebSocket {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	transport, err := Dial(ctx, DialConfig{URL: wsURL(server)})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { transport.Close() })
	return transport
}

func TestDial(t *testing.T) {
	t.Run("empty URL", func(t *testing.T) {
		_, err := Dial(context.Background(), DialConfig{})
		if err == nil {
			t.Fatal("expected error for empty URL")
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := Dial(ctx, DialConfig{URL: "ws://127.0.0.1:1/ws"})
		if err == nil {
			t.Fatal("expected error for unreachable server")
		}
	})

	t.Run("successful dial reports connected", func(t *testing.T) {
		server := newChatServer(t, nil)
		transport := dialTest(t, server)
		if !transport.Connected() {
			t.Error("Connected() = false after successful dial")
		}
	})
}

func TestEmitWithAck(t *testing.T) {
	t.Run("success ack", func(t *testing.T) {
		server := newChatServer(t, func(conn *websocket.Conn, f frame) {
			if f.Event != "send_message" {
				t.Errorf("unexpected event: %s", f.Event)
			}
			if f.AckID == "" {
				t.Error("send_message frame missing ackId")
			}
			conn.WriteJSON(frame{Event: ackEvent, AckID: f.AckID})
		})
		transport := dialTest(t, server)

		err := transport.EmitWithAck(context.Background(), "send_message", map[string]any{"content": "hello"})
		if err != nil {
			t.Fatalf("EmitWithAck failed: %v", err)
		}
	})

	t.Run("error ack", func(t *testing.T) {
		server := newChatServer(t, func(conn *websocket.Conn, f frame) {
			conn.WriteJSON(frame{Event: ackEvent, AckID: f.AckID, Error: "not a participant"})
		})
		transport := dialTest(t, server)

		err := transport.EmitWithAck(context.Background(), "send_message", struct{}{})
		var ackErr *AckError
		if !errors.As(err, &ackErr) {
			t.Fatalf("EmitWithAck error = %v, want *AckError", err)
		}
		if ackErr.Message != "not a participant" {
			t.Errorf("unexpected ack message: %q", ackErr.Message)
		}
	})

	t.Run("context cancellation while waiting", func(t *testing.T) {
		server := newChatServer(t, nil) // never acks
		transport := dialTest(t, server)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := transport.EmitWithAck(ctx, "send_message", struct{}{})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("EmitWithAck error = %v, want context.DeadlineExceeded", err)
		}
	})

	t.Run("closed transport", func(t *testing.T) {
		server := newChatServer(t, nil)
		transport := dialTest(t, server)
		transport.Close()

		err := transport.EmitWithAck(context.Background(), "send_message", struct{}{})
		if !errors.Is(err, ErrClosed) {
			t.Errorf("EmitWithAck error = %v, want ErrClosed", err)
		}
	})
}

func TestEventDelivery(t *testing.T) {
	t.Run("server events reach subscribers", func(t *testing.T) {
		server := newChatServer(t, func(conn *websocket.Conn, f frame) {
			// Any client frame triggers a broadcast back.
			payload, _ := json.Marshal(map[string]any{"messageId": "m1", "content": "hi"})
			conn.WriteJSON(frame{Event: "new_message", Data: payload})
		})
		transport := dialTest(t, server)

		received := make(chan json.RawMessage, 1)
		transport.Subscribe("new_message", func(payload json.RawMessage) {
			received <- payload
		})

		if err := transport.Emit("typing", struct{}{}); err != nil {
			t.Fatalf("Emit failed: %v", err)
		}

		select {
		case payload := <-received:
			var message struct {
				MessageID string `json:"messageId"`
			}
			if err := json.Unmarshal(payload, &message); err != nil {
				t.Fatalf("decoding delivered payload: %v", err)
			}
			if message.MessageID != "m1" {
				t.Errorf("unexpected messageId: %q", message.MessageID)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event delivery")
		}
	})

	t.Run("malformed frames are dropped without breaking the loop", func(t *testing.T) {
		server := newChatServer(t, func(conn *websocket.Conn, f frame) {
			conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
			payload, _ := json.Marshal(map[string]any{"messageId": "m2"})
			conn.WriteJSON(frame{Event: "new_message", Data: payload})
		})
		transport := dialTest(t, server)

		received := make(chan struct{}, 1)
		transport.Subscribe("new_message", func(json.RawMessage) {
			received <- struct{}{}
		})

		if err := transport.Emit("typing", struct{}{}); err != nil {
			t.Fatalf("Emit failed: %v", err)
		}

		select {
		case <-received:
		case <-time.After(5 * time.Second):
			t.Fatal("valid frame after malformed frame was not delivered")
		}
	})
}

func TestDisconnect(t *testing.T) {
	t.Run("server close flips Connected and fails pending acks", func(t *testing.T) {
		server := newChatServer(t, func(conn *websocket.Conn, f frame) {
			conn.Close() // drop without acking
		})
		transport := dialTest(t, server)

		err := transport.EmitWithAck(context.Background(), "send_message", struct{}{})
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("EmitWithAck error = %v, want ErrClosed", err)
		}

		// The read loop has observed the error by the time the
		// pending ack failed.
		if transport.Connected() {
			t.Error("Connected() = true after server closed the connection")
		}
	})

	t.Run("Close is idempotent", func(t *testing.T) {
		server := newChatServer(t, nil)
		transport := dialTest(t, server)
		if err := transport.Close(); err != nil {
			t.Fatalf("first Close failed: %v", err)
		}
		if err := transport.Close(); err != nil {
			t.Errorf("second Close failed: %v", err)
		}
	})
}
