// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat keeps a local view of conversations and messages
// consistent with the server.
//
// The server delivers updates through two uncoordinated channels: a
// push transport (socket events) and pull REST calls. [Engine] is the
// single entry point UI surfaces use — it owns one subscription per
// transport event, fans deliveries out to internal stores, and exposes
// an immutable [Snapshot] plus a small command API (select a
// conversation, send, set typing). UI surfaces never talk to the
// transport or the REST client directly.
//
// Consistency model: message buffers are totally ordered by
// (createdAt, messageId) and deduplicated by messageId, so at-least-
// once delivery from the transport is harmless. Unread counts are
// updated optimistically (zeroed the moment a conversation is opened)
// and reconciled shortly afterwards against an authoritative
// conversation-list fetch; the server's answer always wins. Typing
// indicators are best-effort ephemeral state with a bounded lifetime.
//
// Errors from direct commands (Send, SelectConversation) return to the
// caller. Errors from the passive event stream are absorbed: a
// malformed payload is dropped with a debug log, a failed reconcile
// fetch leaves the previous state untouched.
package chat
