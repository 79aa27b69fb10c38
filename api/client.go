// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nhachung/chatsync/chat"
)

// Compile-time interface check.
var _ chat.MessageAPI = (*Client)(nil)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the API root (e.g., "https://api.nhachung.vn").
	BaseURL string
	// AuthToken is the session's bearer token. Sent on every request
	// when non-empty.
	AuthToken string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client is an authenticated REST client for the chat endpoints. Safe
// for concurrent use.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("api: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		authToken:  config.AuthToken,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// GetMessages returns one page of the conversation's messages,
// ascending by createdAt.
func (c *Client) GetMessages(ctx context.Context, conversationID, viewerID int64, page, pageSize int) ([]chat.Message, error) {
	query := url.Values{
		"viewerId": {strconv.FormatInt(viewerID, 10)},
		"page":     {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(pageSize)},
	}
	path := fmt.Sprintf("/api/conversations/%d/messages", conversationID)
	body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, fmt.Errorf("api: fetching messages for conversation %d: %w", conversationID, err)
	}

	var response struct {
		Items []chat.Message `json:"items"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("api: parsing messages response: %w", err)
	}
	return response.Items, nil
}

// GetConversations returns the viewer's conversation list with
// authoritative unread counts.
func (c *Client) GetConversations(ctx context.Context, viewerID int64) ([]chat.Conversation, error) {
	query := url.Values{"viewerId": {strconv.FormatInt(viewerID, 10)}}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/conversations", query, nil)
	if err != nil {
		return nil, fmt.Errorf("api: fetching conversations: %w", err)
	}

	var conversations []chat.Conversation
	if err := json.Unmarshal(body, &conversations); err != nil {
		return nil, fmt.Errorf("api: parsing conversations response: %w", err)
	}
	return conversations, nil
}

// MarkAsRead records that the viewer has read the conversation.
func (c *Client) MarkAsRead(ctx context.Context, conversationID, viewerID int64) error {
	path := fmt.Sprintf("/api/conversations/%d/read", conversationID)
	request := map[string]int64{"viewerId": viewerID}
	if _, err := c.doRequest(ctx, http.MethodPost, path, nil, request); err != nil {
		return fmt.Errorf("api: marking conversation %d read: %w", conversationID, err)
	}
	return nil
}

// doRequest performs one HTTP request and returns the response body.
// The URL is built by string concatenation on the already-validated
// base URL. Non-2xx responses are decoded into *APIError; a body that
// does not decode still produces an *APIError with the status code.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var requestBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		requestBody = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, requestBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		request.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: response.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = ErrCodeInternal
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}
	return body, nil
}
