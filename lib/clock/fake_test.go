// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeAfterFunc(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fires in deadline order", func(t *testing.T) {
		clk := Fake(start)
		var order []string
		clk.AfterFunc(3*time.Second, func() { order = append(order, "late") })
		clk.AfterFunc(1*time.Second, func() { order = append(order, "early") })

		clk.Advance(5 * time.Second)

		if len(order) != 2 || order[0] != "early" || order[1] != "late" {
			t.Fatalf("unexpected firing order: %v", order)
		}
		if got := clk.Now(); !got.Equal(start.Add(5 * time.Second)) {
			t.Errorf("clock settled at %v, want %v", got, start.Add(5*time.Second))
		}
	})

	t.Run("does not fire before deadline", func(t *testing.T) {
		clk := Fake(start)
		fired := false
		clk.AfterFunc(3*time.Second, func() { fired = true })

		clk.Advance(2 * time.Second)
		if fired {
			t.Fatal("callback fired before its deadline")
		}
		clk.Advance(time.Second)
		if !fired {
			t.Fatal("callback did not fire at its deadline")
		}
	})

	t.Run("stop prevents firing", func(t *testing.T) {
		clk := Fake(start)
		fired := false
		timer := clk.AfterFunc(time.Second, func() { fired = true })

		if !timer.Stop() {
			t.Fatal("Stop on a pending timer returned false")
		}
		clk.Advance(5 * time.Second)
		if fired {
			t.Fatal("stopped timer fired")
		}
		if timer.Stop() {
			t.Error("second Stop returned true")
		}
	})

	t.Run("stop after firing returns false", func(t *testing.T) {
		clk := Fake(start)
		timer := clk.AfterFunc(time.Second, func() {})
		clk.Advance(time.Second)
		if timer.Stop() {
			t.Error("Stop after firing returned true")
		}
	})

	t.Run("non-positive duration fires immediately", func(t *testing.T) {
		clk := Fake(start)
		fired := false
		clk.AfterFunc(0, func() { fired = true })
		if !fired {
			t.Fatal("zero-duration callback did not fire synchronously")
		}
	})

	t.Run("callback observes its deadline as now", func(t *testing.T) {
		clk := Fake(start)
		var observed time.Time
		clk.AfterFunc(2*time.Second, func() { observed = clk.Now() })
		clk.Advance(10 * time.Second)
		if !observed.Equal(start.Add(2 * time.Second)) {
			t.Errorf("callback saw %v, want %v", observed, start.Add(2*time.Second))
		}
	})

	t.Run("callback may schedule another timer", func(t *testing.T) {
		clk := Fake(start)
		var chained bool
		clk.AfterFunc(time.Second, func() {
			clk.AfterFunc(time.Second, func() { chained = true })
		})
		clk.Advance(3 * time.Second)
		if !chained {
			t.Fatal("timer scheduled from a callback did not fire in the same Advance")
		}
	})
}
