// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Compile-time interface check.
var _ Transport = (*WebSocket)(nil)

// writeTimeout bounds each WebSocket write. A peer that stops reading
// must not wedge the sender forever.
const writeTimeout = 10 * time.Second

// frame is the JSON envelope for every WebSocket message in both
// directions. Client-to-server frames carry an event name, a payload
// and, for acknowledged sends, an AckID the server echoes back.
// Server-to-client frames are either events (Event + Data) or
// acknowledgements (Event "ack" + AckID + optional Error).
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ackId,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ackEvent is the reserved event name for acknowledgement frames.
const ackEvent = "ack"

// DialConfig holds configuration for Dial.
type DialConfig struct {
	// URL is the WebSocket endpoint (e.g., "wss://chat.nhachung.vn/ws").
	URL string
	// Header is sent with the handshake request. Carries the
	// Authorization header in production.
	Header http.Header
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// WebSocket is a Transport over one WebSocket connection. A single
// read loop fans incoming events out to subscribers and resolves
// pending acknowledgements; a write mutex serializes outgoing frames.
//
// There is no automatic reconnection. When the connection drops,
// Connected turns false, in-flight acknowledged sends fail with
// ErrClosed, and reconnection policy is left to the caller.
type WebSocket struct {
	conn   *websocket.Conn
	logger *slog.Logger

	// writeMu serializes writes; gorilla/websocket allows at most one
	// concurrent writer.
	writeMu sync.Mutex

	mu        sync.Mutex
	connected bool
	closed    bool
	nextID    int
	handlers  map[string][]subscriber
	pending   map[string]chan error
}

// Dial connects to the chat server's WebSocket endpoint and starts the
// read loop. The context bounds the handshake only.
func Dial(ctx context.Context, config DialConfig) (*WebSocket, error) {
	if config.URL == "" {
		return nil, errors.New("transport: URL is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.URL, config.Header)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing %s: %w", config.URL, err)
	}

	t := &WebSocket{
		conn:      conn,
		logger:    logger,
		connected: true,
		handlers:  make(map[string][]subscriber),
		pending:   make(map[string]chan error),
	}
	go t.readLoop()
	return t, nil
}

func (t *WebSocket) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *WebSocket) Subscribe(event string, handler func(payload json.RawMessage)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.handlers[event] = append(t.handlers[event], subscriber{id: id, handler: handler})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		subscribers := t.handlers[event]
		for i, s := range subscribers {
			if s.id == id {
				t.handlers[event] = append(subscribers[:i], subscribers[i+1:]...)
				return
			}
		}
	}
}

func (t *WebSocket) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: encoding %s payload: %w", event, err)
	}
	return t.write(frame{Event: event, Data: data})
}

func (t *WebSocket) EmitWithAck(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: encoding %s payload: %w", event, err)
	}

	ackID := uuid.NewString()
	ack := make(chan error, 1)

	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return ErrClosed
	}
	t.pending[ackID] = ack
	t.mu.Unlock()

	if err := t.write(frame{Event: event, Data: data, AckID: ackID}); err != nil {
		t.dropPending(ackID)
		return err
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		t.dropPending(ackID)
		return ctx.Err()
	}
}

// Close tears down the connection. The read loop exits on the closed
// socket and fails any remaining pending acknowledgements. Idempotent.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	t.mu.Unlock()

	// Best-effort close handshake; the peer may already be gone.
	deadline := time.Now().Add(writeTimeout)
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage, message, deadline)
	t.writeMu.Unlock()

	return t.conn.Close()
}

// readLoop is the single reader. It dispatches event frames to
// subscribers, resolves acknowledgements, and on read error marks the
// transport disconnected and fails every pending acknowledged send.
func (t *WebSocket) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.connected = false
			pending := t.pending
			t.pending = make(map[string]chan error)
			t.mu.Unlock()

			if !closed {
				t.logger.Warn("chat transport disconnected", "error", err)
			}
			for _, ack := range pending {
				ack <- ErrClosed
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			t.logger.Debug("dropping malformed transport frame", "error", err)
			continue
		}

		if f.Event == ackEvent {
			t.resolveAck(f)
			continue
		}
		t.dispatch(f)
	}
}

// dispatch fans one event frame out to its subscribers. Handlers run
// on the read-loop goroutine without the transport lock held, so a
// handler may re-enter the transport.
func (t *WebSocket) dispatch(f frame) {
	t.mu.Lock()
	subscribers := make([]subscriber, len(t.handlers[f.Event]))
	copy(subscribers, t.handlers[f.Event])
	t.mu.Unlock()

	for _, s := range subscribers {
		s.handler(f.Data)
	}
}

// resolveAck completes the pending send matching the acknowledgement's
// AckID. Unknown IDs (ack for a send that timed out and was dropped)
// are ignored.
func (t *WebSocket) resolveAck(f frame) {
	t.mu.Lock()
	ack, ok := t.pending[f.AckID]
	delete(t.pending, f.AckID)
	t.mu.Unlock()
	if !ok {
		return
	}
	if f.Error != "" {
		ack <- &AckError{Message: f.Error}
		return
	}
	ack <- nil
}

func (t *WebSocket) dropPending(ackID string) {
	t.mu.Lock()
	delete(t.pending, ackID)
	t.mu.Unlock()
}

func (t *WebSocket) write(f frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if !t.Connected() {
		return ErrClosed
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := t.conn.WriteJSON(f); err != nil {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
		return fmt.Errorf("transport: writing %s frame: %w", f.Event, err)
	}
	return nil
}
