// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the push channel the chat engine receives
// server events through.
//
// [Transport] is the contract: a single persistent bidirectional
// connection exposing connected state, per-event subscription with
// fan-out, fire-and-forget emission, and send-with-acknowledgement.
// The connection is a session-wide resource — one Transport is created
// after authentication and shared by every surface that wants chat
// updates, never one connection per component.
//
// [WebSocket] is the production implementation over a WebSocket
// connection with a small JSON frame envelope. [Memory] is an
// in-process implementation for tests: events are injected with
// Deliver and emitted frames are recorded for inspection.
//
// Delivery is at least once. Subscribers must tolerate duplicate
// events; the engine deduplicates messages by their server-assigned ID.
package transport
