// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send when the transport has no
	// usable connection. Nothing is mutated and no retry is scheduled.
	ErrNotConnected = errors.New("chat: transport not connected")

	// ErrNotParticipant is returned when the sender is neither the
	// tenant nor the landlord of the conversation. This is a session
	// error — a stale or mismatched identity — caught before any
	// network call.
	ErrNotParticipant = errors.New("chat: sender is not a conversation participant")

	// ErrClosed is returned by commands on an engine after Close.
	ErrClosed = errors.New("chat: engine is closed")
)

// PartError wraps the failure of one part of a multi-part send. Other
// parts are still dispatched; SendParts joins the individual failures.
type PartError struct {
	// Index is the part's position in the original parts slice.
	Index int
	Err   error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("chat: part %d: %v", e.Index, e.Err)
}

func (e *PartError) Unwrap() error { return e.Err }
