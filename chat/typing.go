// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"time"

	"github.com/nhachung/chatsync/lib/clock"
)

// typingTracker holds per-conversation remote-typing state with a
// bounded lifetime. Each conversation runs Idle -> Typing -> Idle:
// a typing event arms (or re-arms) an expiry timer; the state clears
// when the timer fires, an explicit stop event arrives, the selection
// changes, or the engine shuts down.
//
// Not safe for concurrent use; the engine serializes access. Expiry
// timers fire through the expired hook, which must re-acquire the
// engine's lock before calling expire.
type typingTracker struct {
	clk    clock.Clock
	expiry time.Duration
	// expired is invoked from the timer goroutine when a typing state
	// times out. It receives the conversation and the generation the
	// timer was armed for.
	expired func(conversationID int64, generation uint64)

	typing     map[int64]bool
	timers     map[int64]*clock.Timer
	generation map[int64]uint64
}

func newTypingTracker(clk clock.Clock, expiry time.Duration, expired func(conversationID int64, generation uint64)) *typingTracker {
	return &typingTracker{
		clk:        clk,
		expiry:     expiry,
		expired:    expired,
		typing:     make(map[int64]bool),
		timers:     make(map[int64]*clock.Timer),
		generation: make(map[int64]uint64),
	}
}

// setTyping transitions the conversation to Typing and schedules
// expiry. A pre-existing timer is cancelled first, so a burst of
// typing events keeps pushing the deadline out.
func (t *typingTracker) setTyping(conversationID int64) {
	if timer := t.timers[conversationID]; timer != nil {
		timer.Stop()
	}
	t.generation[conversationID]++
	generation := t.generation[conversationID]

	t.typing[conversationID] = true
	t.timers[conversationID] = t.clk.AfterFunc(t.expiry, func() {
		t.expired(conversationID, generation)
	})
}

// expire handles a fired timer. A stale generation means the timer was
// superseded between firing and acquiring the engine lock; it must not
// clear state a newer event re-armed. Returns whether state changed.
func (t *typingTracker) expire(conversationID int64, generation uint64) bool {
	if t.generation[conversationID] != generation {
		return false
	}
	return t.clear(conversationID)
}

// clear transitions the conversation to Idle, cancelling any pending
// timer. Returns whether state changed.
func (t *typingTracker) clear(conversationID int64) bool {
	if timer := t.timers[conversationID]; timer != nil {
		timer.Stop()
		delete(t.timers, conversationID)
	}
	t.generation[conversationID]++
	if !t.typing[conversationID] {
		return false
	}
	delete(t.typing, conversationID)
	return true
}

// clearAll tears down every timer and state. Used on engine shutdown
// so no callback fires against a dead engine.
func (t *typingTracker) clearAll() {
	for conversationID := range t.timers {
		t.timers[conversationID].Stop()
	}
	t.timers = make(map[int64]*clock.Timer)
	t.typing = make(map[int64]bool)
	for conversationID := range t.generation {
		t.generation[conversationID]++
	}
}

// snapshot returns a copy of the typing state.
func (t *typingTracker) snapshot() map[int64]bool {
	out := make(map[int64]bool, len(t.typing))
	for conversationID, isTyping := range t.typing {
		out[conversationID] = isTyping
	}
	return out
}
