// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for the sync engine's timers.
//
// The engine schedules two kinds of deferred work: typing-indicator
// expiry and delayed conversation-list reconciliation. Both need to be
// cancellable and both need to be testable without real waits, so every
// component that schedules work accepts a [Clock] instead of calling
// the time package directly.
//
// Production code injects [Real]. Tests inject [Fake], which holds time
// still until Advance is called and fires pending callbacks
// synchronously in deadline order.
package clock
