// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhachung/chatsync/lib/clock"
	"github.com/nhachung/chatsync/transport"
)

// Default tuning. The reconcile delay gives the server time to catch
// up before the authoritative fetch; the typing expiry matches the
// sender-side emission interval.
const (
	defaultReconcileDelay = 300 * time.Millisecond
	defaultTypingExpiry   = 3 * time.Second
	defaultPageSize       = 50

	// backgroundCallTimeout bounds fire-and-forget REST calls
	// (mark-as-read, reconcile fetch) that run without a caller
	// context.
	backgroundCallTimeout = 15 * time.Second
)

// MessageAPI is the REST surface the engine pulls from. Implemented by
// api.Client; tests substitute a stub.
type MessageAPI interface {
	// GetMessages returns one page of a conversation's messages,
	// ascending by createdAt.
	GetMessages(ctx context.Context, conversationID, viewerID int64, page, pageSize int) ([]Message, error)

	// GetConversations returns the viewer's conversation list with
	// authoritative unread counts.
	GetConversations(ctx context.Context, viewerID int64) ([]Conversation, error)

	// MarkAsRead records that the viewer has read the conversation.
	// Fire-and-forget from the engine's perspective; errors are
	// non-fatal.
	MarkAsRead(ctx context.Context, conversationID, viewerID int64) error
}

// Config configures an Engine.
type Config struct {
	// Transport is the session's shared push connection. Required.
	Transport transport.Transport

	// API is the REST client. Required.
	API MessageAPI

	// UserID is the viewer's identity, fixed for the session. Required.
	UserID int64

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// Clock drives the typing-expiry and reconcile timers. If nil,
	// clock.Real() is used.
	Clock clock.Clock

	// ReconcileDelay is how long after an optimistic mutation the
	// authoritative conversation-list fetch runs. Zero means the
	// default (300ms).
	ReconcileDelay time.Duration

	// TypingExpiry is how long a remote typing indicator lives
	// without renewal. Zero means the default (3s).
	TypingExpiry time.Duration
}

// Engine is the sync facade: the only surface UI code touches. It
// composes the message buffers, the conversation list, the typing
// tracker, and the outbound dispatcher behind one mutex, the Go
// rendition of the source environment's single-threaded event loop.
// All exported methods are safe for concurrent use.
type Engine struct {
	transport      transport.Transport
	api            MessageAPI
	userID         int64
	logger         *slog.Logger
	clk            clock.Clock
	reconcileDelay time.Duration

	mu             sync.Mutex
	messages       *messageStore
	conversations  *conversationStore
	typing         *typingTracker
	selected       int64
	reconcileTimer *clock.Timer
	unsubscribe    []func()
	closed         bool

	dispatch *dispatcher

	// updates coalesces change notifications for UI surfaces.
	updates chan struct{}
}

// New creates an Engine. The engine is inert until Start.
func New(config Config) (*Engine, error) {
	if config.Transport == nil {
		return nil, errors.New("chat: Config.Transport is required")
	}
	if config.API == nil {
		return nil, errors.New("chat: Config.API is required")
	}
	if config.UserID == 0 {
		return nil, errors.New("chat: Config.UserID is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	reconcileDelay := config.ReconcileDelay
	if reconcileDelay == 0 {
		reconcileDelay = defaultReconcileDelay
	}
	typingExpiry := config.TypingExpiry
	if typingExpiry == 0 {
		typingExpiry = defaultTypingExpiry
	}

	e := &Engine{
		transport:      config.Transport,
		api:            config.API,
		userID:         config.UserID,
		logger:         logger,
		clk:            clk,
		reconcileDelay: reconcileDelay,
		messages:       newMessageStore(),
		conversations:  newConversationStore(),
		updates:        make(chan struct{}, 1),
	}
	e.typing = newTypingTracker(clk, typingExpiry, e.typingExpired)
	e.dispatch = &dispatcher{transport: config.Transport, scheduleReconcile: e.scheduleReconcile}
	return e, nil
}

// Start subscribes to the transport's event stream — one subscription
// per event name, fanned out to the internal stores — and performs the
// initial conversation-list fetch. A fetch failure is returned but
// leaves the engine running with its subscriptions active; the caller
// may retry with Refresh.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.unsubscribe == nil {
		e.unsubscribe = []func(){
			e.transport.Subscribe(EventNewMessage, e.handleIncomingMessage),
			e.transport.Subscribe(EventMessageSent, e.handleIncomingMessage),
			e.transport.Subscribe(EventConversationUpdated, e.handleConversationUpdated),
			e.transport.Subscribe(EventUserTyping, e.handleUserTyping),
		}
	}
	e.mu.Unlock()

	return e.Refresh(ctx)
}

// Refresh fetches the conversation list and applies it as server
// truth. On error the previous list is retained — stale but consistent
// beats empty.
func (e *Engine) Refresh(ctx context.Context) error {
	conversations, err := e.api.GetConversations(ctx, e.userID)
	if err != nil {
		return fmt.Errorf("chat: fetching conversations: %w", err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.conversations.reconcile(conversations)
	e.mu.Unlock()
	e.notify()
	return nil
}

// Close tears the engine down: transport subscriptions removed, typing
// and reconcile timers cancelled. Idempotent. The transport itself is
// an injected resource and stays open — it belongs to the session, not
// to any one engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	if e.reconcileTimer != nil {
		e.reconcileTimer.Stop()
		e.reconcileTimer = nil
	}
	e.typing.clearAll()
	e.mu.Unlock()

	for _, remove := range unsubscribe {
		remove()
	}
	return nil
}

// SelectConversation opens a conversation: deep-link merge into the
// list, optimistic mark-read, message-buffer load over REST with the
// system message merged once, and a scheduled reconcile. The previous
// conversation's typing timer is torn down so its callback cannot
// fire against the new selection.
//
// The conversation value is whatever the UI was routed with; when the
// list already contains the ID, the stored entry wins and the argument
// only identifies it. A load failure is returned to the caller; the
// selection and the optimistic read state stick, and the previous
// buffer is untouched.
func (e *Engine) SelectConversation(ctx context.Context, conversation Conversation) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.conversations.mergeDeepLinked(conversation)
	if e.selected != 0 && e.selected != conversation.ConversationID {
		e.typing.clear(e.selected)
	}
	e.selected = conversation.ConversationID
	e.conversations.markSelectedRead(conversation.ConversationID, e.userID)
	e.scheduleReconcileLocked()
	systemMessage := e.systemMessageLocked(conversation)
	e.mu.Unlock()
	e.notify()

	go e.markReadRemote(conversation.ConversationID)

	items, err := e.api.GetMessages(ctx, conversation.ConversationID, e.userID, 1, defaultPageSize)
	if err != nil {
		return fmt.Errorf("chat: loading messages for conversation %d: %w", conversation.ConversationID, err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	// The user may have moved on while the fetch was in flight; a
	// stale load must not clobber the buffer shown for the new
	// selection's conversation list state.
	if e.selected == conversation.ConversationID {
		e.messages.load(conversation.ConversationID, items, systemMessage)
		e.conversations.markSelectedRead(conversation.ConversationID, e.userID)
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// Send validates and transmits one message authored by the session's
// viewer. See the error taxonomy on ErrNotConnected, ErrNotParticipant
// and transport.AckError.
func (e *Engine) Send(ctx context.Context, conversation Conversation, content string, messageType MessageType) error {
	if e.isClosed() {
		return ErrClosed
	}
	return e.dispatch.send(ctx, conversation, content, messageType, e.userID)
}

// SendParts transmits a multi-part send (attachments plus a trailing
// text, for instance) as independent sequential sends. Failures are
// joined; successes are not rolled back.
func (e *Engine) SendParts(ctx context.Context, conversation Conversation, parts []Part) error {
	if e.isClosed() {
		return ErrClosed
	}
	return e.dispatch.sendParts(ctx, conversation, parts, e.userID)
}

// SetTyping broadcasts the viewer's own typing state. Fire and forget:
// failures are logged, never returned, and the typing tracker is not
// involved — it follows remote typing only.
func (e *Engine) SetTyping(conversationID int64, isTyping bool) {
	if e.isClosed() || !e.transport.Connected() {
		return
	}
	payload := TypingEvent{ConversationID: conversationID, SenderID: e.userID, IsTyping: isTyping}
	if err := e.transport.Emit(EventTyping, payload); err != nil {
		e.logger.Debug("typing emission failed", "conversation_id", conversationID, "error", err)
	}
}

// Snapshot returns an immutable view for rendering. Never mutated in
// place; every call copies.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Conversations:          e.conversations.all(),
		MessagesByConversation: e.messages.all(),
		TypingByConversation:   e.typing.snapshot(),
		Connected:              e.transport.Connected(),
		SelectedConversationID: e.selected,
	}
}

// UserID returns the viewer identity the engine was configured with.
func (e *Engine) UserID() int64 {
	return e.userID
}

// Updates returns a channel that receives a coalesced signal whenever
// the snapshot may have changed. UI surfaces block on it instead of
// polling; a slow consumer sees one pending signal, not a backlog.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

// handleIncomingMessage routes new_message and message_sent
// deliveries. Both carry a full Message; message_sent additionally
// covers transports that echo the sender's own message back.
func (e *Engine) handleIncomingMessage(payload json.RawMessage) {
	var message Message
	if err := json.Unmarshal(payload, &message); err != nil {
		e.logger.Debug("dropping malformed message event", "error", err)
		return
	}
	if message.MessageID == "" || message.ConversationID == 0 {
		e.logger.Debug("dropping message event with missing identity",
			"message_id", message.MessageID,
			"conversation_id", message.ConversationID,
		)
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	inserted := e.messages.ingest(message)
	if !inserted {
		// Duplicate delivery. Already counted, already reconciled.
		e.mu.Unlock()
		return
	}

	selected := e.selected == message.ConversationID
	e.conversations.touch(message, e.userID, selected)

	foreign := message.SenderID == nil || *message.SenderID != e.userID
	markRead := selected && foreign
	if markRead {
		e.conversations.markSelectedRead(message.ConversationID, e.userID)
	}
	e.scheduleReconcileLocked()
	e.mu.Unlock()

	if markRead {
		go e.markReadRemote(message.ConversationID)
	}
	e.notify()
}

// handleConversationUpdated schedules a reconcile. The payload itself
// is advisory; the delayed authoritative fetch is what lands.
func (e *Engine) handleConversationUpdated(json.RawMessage) {
	e.scheduleReconcile()
}

// handleUserTyping routes user_typing deliveries to the tracker. Only
// remote typing in the currently open conversation is tracked.
func (e *Engine) handleUserTyping(payload json.RawMessage) {
	var event TypingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		e.logger.Debug("dropping malformed typing event", "error", err)
		return
	}
	if event.ConversationID == 0 || event.SenderID == e.userID {
		return
	}

	e.mu.Lock()
	if e.closed || e.selected != event.ConversationID {
		e.mu.Unlock()
		return
	}
	var changed bool
	if event.IsTyping {
		e.typing.setTyping(event.ConversationID)
		changed = true
	} else {
		changed = e.typing.clear(event.ConversationID)
	}
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

// typingExpired is the tracker's timer hook. It re-acquires the engine
// lock, so it must never run while the lock is held — real timers fire
// on their own goroutine, fake clocks advance from test code.
func (e *Engine) typingExpired(conversationID int64, generation uint64) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	changed := e.typing.expire(conversationID, generation)
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

// scheduleReconcile arms the delayed authoritative conversation-list
// fetch. Re-arming while one is pending resets the delay, so the fetch
// is always strictly ordered after the most recent triggering event —
// reconciliation is the last writer.
func (e *Engine) scheduleReconcile() {
	e.mu.Lock()
	e.scheduleReconcileLocked()
	e.mu.Unlock()
}

func (e *Engine) scheduleReconcileLocked() {
	if e.closed {
		return
	}
	if e.reconcileTimer != nil {
		e.reconcileTimer.Stop()
	}
	e.reconcileTimer = e.clk.AfterFunc(e.reconcileDelay, e.runReconcile)
}

// runReconcile performs the authoritative fetch. Errors are absorbed:
// this runs on the passive timer path with no caller to report to, and
// the previous list stays.
func (e *Engine) runReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundCallTimeout)
	defer cancel()

	conversations, err := e.api.GetConversations(ctx, e.userID)
	if err != nil {
		e.logger.Debug("reconcile fetch failed", "error", err)
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.conversations.reconcile(conversations)
	e.mu.Unlock()
	e.notify()
}

// markReadRemote tells the server the viewer has read the
// conversation. Fire and forget; the optimistic local zero already
// happened and the reconcile will confirm.
func (e *Engine) markReadRemote(conversationID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundCallTimeout)
	defer cancel()

	if err := e.api.MarkAsRead(ctx, conversationID, e.userID); err != nil {
		e.logger.Debug("mark-as-read failed", "conversation_id", conversationID, "error", err)
	}
}

// systemMessageLocked picks the system message to merge on load: the
// routed conversation's if present, else whatever the stored entry
// carries.
func (e *Engine) systemMessageLocked(conversation Conversation) *Message {
	if conversation.SystemMessage != nil {
		return conversation.SystemMessage
	}
	if stored := e.conversations.find(conversation.ConversationID); stored != nil {
		return stored.SystemMessage
	}
	return nil
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}
