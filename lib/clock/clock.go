// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock provides the two time operations the engine performs: reading
// the current time and scheduling a cancellable callback.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f in its own
	// goroutine (real) or synchronously during Advance (fake). The
	// returned Timer cancels the pending call with Stop. If d <= 0,
	// f runs immediately.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a scheduled callback. Stop prevents it from firing.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns true if the call stops
// the timer, false if the timer has already fired or been stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
