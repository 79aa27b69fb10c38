// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Compile-time interface check.
var _ Transport = (*Memory)(nil)

// Memory is an in-process Transport for tests. Server events are
// injected with Deliver, emitted frames are recorded for inspection,
// and acknowledgement behavior is scripted with SetAckFunc — all
// bypassing the network entirely.
type Memory struct {
	mu        sync.Mutex
	connected bool
	nextID    int
	handlers  map[string][]subscriber
	emitted   []Frame
	ackFunc   func(event string, payload json.RawMessage) error
}

// subscriber pairs a handler with its registration ID so unsubscribe
// can remove it while preserving subscription order for the rest.
type subscriber struct {
	id      int
	handler func(json.RawMessage)
}

// Frame is one recorded emission.
type Frame struct {
	Event   string
	Payload json.RawMessage
}

// NewMemory creates a connected in-process transport.
func NewMemory() *Memory {
	return &Memory{
		connected: true,
		handlers:  make(map[string][]subscriber),
	}
}

// SetConnected flips the reported connection state. Emissions while
// disconnected fail with ErrClosed, matching the real transport.
func (m *Memory) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// SetAckFunc scripts EmitWithAck's acknowledgement. A nil function
// (the default) acknowledges every frame successfully.
func (m *Memory) SetAckFunc(f func(event string, payload json.RawMessage) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ackFunc = f
}

func (m *Memory) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Memory) Subscribe(event string, handler func(payload json.RawMessage)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.handlers[event] = append(m.handlers[event], subscriber{id: id, handler: handler})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subscribers := m.handlers[event]
		for i, s := range subscribers {
			if s.id == id {
				m.handlers[event] = append(subscribers[:i], subscribers[i+1:]...)
				return
			}
		}
	}
}

func (m *Memory) Emit(event string, payload any) error {
	_, err := m.record(event, payload)
	return err
}

func (m *Memory) EmitWithAck(_ context.Context, event string, payload any) error {
	data, err := m.record(event, payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	ackFunc := m.ackFunc
	m.mu.Unlock()
	if ackFunc != nil {
		return ackFunc(event, data)
	}
	return nil
}

func (m *Memory) Close() error {
	m.SetConnected(false)
	return nil
}

// Deliver injects a server event, fanning out to every subscriber of
// the named event. The payload is marshaled once; a payload that does
// not marshal panics, since only tests call Deliver.
func (m *Memory) Deliver(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("transport: Deliver payload does not marshal: %v", err))
	}
	m.DeliverRaw(event, data)
}

// DeliverRaw injects a server event with an already-encoded payload.
// Lets tests deliver malformed JSON that Deliver could not produce.
func (m *Memory) DeliverRaw(event string, payload json.RawMessage) {
	m.mu.Lock()
	subscribers := make([]subscriber, len(m.handlers[event]))
	copy(subscribers, m.handlers[event])
	m.mu.Unlock()

	// Handlers run without the lock so they can re-enter the
	// transport (emit, subscribe) from within the callback.
	for _, s := range subscribers {
		s.handler(payload)
	}
}

// Emitted returns a copy of every frame sent through Emit or
// EmitWithAck, in order.
func (m *Memory) Emitted() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	frames := make([]Frame, len(m.emitted))
	copy(frames, m.emitted)
	return frames
}

func (m *Memory) record(event string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("transport: encoding %s payload: %w", event, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, ErrClosed
	}
	m.emitted = append(m.emitted, Frame{Event: event, Payload: data})
	return data, nil
}
