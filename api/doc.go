// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

// Package api wraps the NhaChung REST endpoints the chat engine pulls
// from: message pages, the conversation list, and read receipts.
//
// [Client] holds the base URL, the bearer token, and the HTTP
// transport for one authenticated session. It implements
// chat.MessageAPI. Non-2xx responses decode into [APIError] carrying
// the server's error code and the HTTP status; use errors.As (or
// [IsAPIError]) to branch on them.
package api
