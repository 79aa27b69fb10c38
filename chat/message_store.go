// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "sort"

// messageStore maintains the canonical ordered, deduplicated message
// buffer for each conversation. Not safe for concurrent use; the
// engine serializes access.
type messageStore struct {
	buffers map[int64][]Message
}

func newMessageStore() *messageStore {
	return &messageStore{buffers: make(map[int64][]Message)}
}

// messageLess is the total order within a buffer: CreatedAt ascending,
// ties broken by MessageID.
func messageLess(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.MessageID < b.MessageID
}

// load replaces the conversation's buffer with a freshly fetched page.
// Items without a MessageID are dropped. If systemMessage is not
// already present (matched by MessageID) it is merged in, then the
// whole buffer is sorted.
func (s *messageStore) load(conversationID int64, items []Message, systemMessage *Message) {
	buffer := make([]Message, 0, len(items)+1)
	seen := make(map[string]struct{}, len(items)+1)
	for _, message := range items {
		if message.MessageID == "" {
			continue
		}
		if _, ok := seen[message.MessageID]; ok {
			continue
		}
		seen[message.MessageID] = struct{}{}
		buffer = append(buffer, message)
	}

	if systemMessage != nil && systemMessage.MessageID != "" {
		if _, ok := seen[systemMessage.MessageID]; !ok {
			buffer = append(buffer, *systemMessage)
		}
	}

	sort.SliceStable(buffer, func(i, j int) bool { return messageLess(buffer[i], buffer[j]) })
	s.buffers[conversationID] = buffer
}

// ingest inserts one incoming message preserving sort order. Returns
// false without mutating state when the message has no MessageID or
// the ID is already present — at-least-once delivery from the
// transport never produces duplicates.
func (s *messageStore) ingest(message Message) bool {
	if message.MessageID == "" {
		return false
	}
	buffer := s.buffers[message.ConversationID]
	for _, existing := range buffer {
		if existing.MessageID == message.MessageID {
			return false
		}
	}

	at := sort.Search(len(buffer), func(i int) bool { return messageLess(message, buffer[i]) })
	buffer = append(buffer, Message{})
	copy(buffer[at+1:], buffer[at:])
	buffer[at] = message
	s.buffers[message.ConversationID] = buffer
	return true
}

// messages returns a copy of the conversation's buffer.
func (s *messageStore) messages(conversationID int64) []Message {
	buffer := s.buffers[conversationID]
	out := make([]Message, len(buffer))
	copy(out, buffer)
	return out
}

// all returns a copy of every buffer, keyed by conversation ID.
func (s *messageStore) all() map[int64][]Message {
	out := make(map[int64][]Message, len(s.buffers))
	for conversationID := range s.buffers {
		out[conversationID] = s.messages(conversationID)
	}
	return out
}
