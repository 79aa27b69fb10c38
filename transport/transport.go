// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned when emitting on a transport whose connection
// is gone — never dialed, already closed, or dropped by the peer.
var ErrClosed = errors.New("transport: connection closed")

// AckError is a failure the server reported in an acknowledgement
// frame. The send reached the server; the server rejected it.
type AckError struct {
	Message string
}

func (e *AckError) Error() string {
	return "transport: server rejected frame: " + e.Message
}

// Transport is one persistent bidirectional connection to the chat
// server. Implementations must be safe for concurrent use: the engine
// emits from command goroutines while the read loop delivers events.
type Transport interface {
	// Connected reports whether the connection is currently usable.
	// Emissions on a disconnected transport fail with ErrClosed.
	Connected() bool

	// Subscribe registers handler for the named event. Every
	// subscriber of an event receives every delivery of it, in
	// subscription order. The returned function removes the
	// subscription and is safe to call more than once.
	//
	// Handlers run on the delivery goroutine and must not block.
	Subscribe(event string, handler func(payload json.RawMessage)) (unsubscribe func())

	// Emit sends a fire-and-forget frame. No delivery confirmation.
	Emit(event string, payload any) error

	// EmitWithAck sends a frame and waits for the server's
	// acknowledgement, bounded by ctx. A nil return means the server
	// accepted the frame; a server-side rejection is returned as an
	// *AckError.
	EmitWithAck(ctx context.Context, event string, payload any) error

	// Close tears down the connection. Idempotent.
	Close() error
}
