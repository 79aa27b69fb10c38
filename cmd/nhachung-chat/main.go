// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/nhachung/chatsync/api"
	"github.com/nhachung/chatsync/chat"
	"github.com/nhachung/chatsync/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("nhachung-chat", pflag.ContinueOnError)
	configPath := flags.String("config", os.Getenv("NHACHUNG_CONFIG"), "path to the YAML config file")
	serverURL := flags.String("server", "", "REST API root (overrides config)")
	socketURL := flags.String("socket", "", "WebSocket endpoint (overrides config)")
	userID := flags.Int64("user", 0, "authenticated user ID (overrides config)")
	token := flags.String("token", "", "session bearer token (overrides config)")
	logFile := flags.String("log-file", "", "slog output file (overrides config)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "nhachung-chat: %v\n", err)
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nhachung-chat: %v\n", err)
		return 1
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *socketURL != "" {
		cfg.SocketURL = *socketURL
	}
	if *userID != 0 {
		cfg.UserID = *userID
	}
	if *token != "" {
		cfg.Token = *token
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "nhachung-chat: %v\n", err)
		return 2
	}

	logger, closeLog, err := newLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nhachung-chat: %v\n", err)
		return 1
	}
	defer closeLog()

	client, err := api.NewClient(api.Config{
		BaseURL:   cfg.ServerURL,
		AuthToken: cfg.Token,
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "nhachung-chat: %v\n", err)
		return 1
	}

	// One socket per session, shared by everything that wants push
	// updates.
	dialCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	push, err := transport.Dial(dialCtx, transport.DialConfig{
		URL:    cfg.SocketURL,
		Header: header,
		Logger: logger,
	})
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "nhachung-chat: %v\n", err)
		return 1
	}
	defer push.Close()

	engine, err := chat.New(chat.Config{
		Transport: push,
		API:       client,
		UserID:    cfg.UserID,
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "nhachung-chat: %v\n", err)
		return 1
	}
	defer engine.Close()

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := engine.Start(startCtx); err != nil {
		// The engine is live with its subscriptions; the list will
		// catch up on the next reconcile. Tell the user anyway.
		logger.Warn("initial conversation fetch failed", "error", err)
	}
	cancel()

	program := tea.NewProgram(newModel(engine), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "nhachung-chat: %v\n", err)
		return 1
	}
	return 0
}

// newLogger builds the slog logger. The TUI owns stderr, so logs go to
// a file or nowhere.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { file.Close() }, nil
}
