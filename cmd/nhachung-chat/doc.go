// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

// Command nhachung-chat is a terminal chat client for the NhaChung
// rental marketplace.
//
// It is also the reference consumer of the sync engine: the TUI talks
// only to chat.Engine — snapshots in, commands out — and never touches
// the transport or the REST client directly. Anything this client can
// render, any other surface (a notification badge, a web view) can
// render from the same snapshot.
//
// Configuration comes from a single YAML file named by --config or the
// NHACHUNG_CONFIG environment variable; individual flags override file
// values. Logs go to --log-file since stderr belongs to the TUI.
package main
