// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "sort"

// conversationStore owns the conversation list, its ordering, and the
// unread-count bookkeeping. Not safe for concurrent use; the engine
// serializes access.
//
// Unread counts follow an optimistic-then-reconciled policy:
// markSelectedRead zeroes counters synchronously for immediate
// feedback, and a delayed authoritative fetch (reconcile) overwrites
// them with server truth. Optimism is a latency hint, never a source
// of truth.
type conversationStore struct {
	conversations []Conversation
}

func newConversationStore() *conversationStore {
	return &conversationStore{}
}

// sortConversations orders by LastMessageAt descending; conversations
// without a timestamp sort last. The sort is stable so equal
// timestamps keep their relative order.
func sortConversations(list []Conversation) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].LastMessageAt, list[j].LastMessageAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// setAll replaces the list. Duplicate conversation IDs in the input
// keep the first occurrence.
func (s *conversationStore) setAll(conversations []Conversation) {
	s.conversations = dedupeConversations(conversations)
	sortConversations(s.conversations)
}

// mergeDeepLinked prepends the conversation if its ID is not already
// in the list, and no-ops otherwise. This resolves a user routed
// directly into a conversation that a list refresh has not yet
// returned.
func (s *conversationStore) mergeDeepLinked(conversation Conversation) {
	if s.find(conversation.ConversationID) != nil {
		return
	}
	s.conversations = append([]Conversation{conversation}, s.conversations...)
}

// markSelectedRead optimistically zeroes the aggregate unread count
// and the viewer's role-specific counter, synchronously, before any
// network confirmation. Unknown conversation IDs are ignored.
func (s *conversationStore) markSelectedRead(conversationID, viewerID int64) {
	conversation := s.find(conversationID)
	if conversation == nil {
		return
	}
	conversation.UnreadCount = 0
	switch viewerID {
	case conversation.TenantID:
		conversation.UnreadCountTenant = 0
	case conversation.LandlordID:
		conversation.UnreadCountLandlord = 0
	}
}

// reconcile applies an authoritative fetch. The server's payload wins
// for every conversation it returns — counts, previews, ordering.
// Locally-known conversations absent from the payload are kept: a
// deep-linked conversation must not vanish between its creation and
// the server's list catching up.
func (s *conversationStore) reconcile(conversations []Conversation) {
	list := dedupeConversations(conversations)
	known := make(map[int64]struct{}, len(list))
	for _, conversation := range list {
		known[conversation.ConversationID] = struct{}{}
	}
	for _, existing := range s.conversations {
		if _, ok := known[existing.ConversationID]; !ok {
			list = append(list, existing)
		}
	}
	sortConversations(list)
	s.conversations = list
}

// touch updates a conversation's preview and timestamp for a message
// that just arrived on the push channel, resorting the list. When the
// message is foreign (not authored by the viewer) and the conversation
// is not the selected one, the viewer-relative unread counters bump.
func (s *conversationStore) touch(message Message, viewerID int64, selected bool) {
	conversation := s.find(message.ConversationID)
	if conversation == nil {
		return
	}

	at := message.CreatedAt
	conversation.LastMessage = &MessagePreview{Content: message.Content, Type: message.Type}
	conversation.LastMessageAt = &at

	foreign := message.SenderID == nil || *message.SenderID != viewerID
	if foreign && !selected {
		conversation.UnreadCount++
		switch viewerID {
		case conversation.TenantID:
			conversation.UnreadCountTenant++
		case conversation.LandlordID:
			conversation.UnreadCountLandlord++
		}
	}

	sortConversations(s.conversations)
}

// find returns a pointer into the list, or nil. Callers mutate through
// it under the engine's lock.
func (s *conversationStore) find(conversationID int64) *Conversation {
	for i := range s.conversations {
		if s.conversations[i].ConversationID == conversationID {
			return &s.conversations[i]
		}
	}
	return nil
}

// all returns a copy of the list.
func (s *conversationStore) all() []Conversation {
	out := make([]Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

func dedupeConversations(conversations []Conversation) []Conversation {
	list := make([]Conversation, 0, len(conversations))
	seen := make(map[int64]struct{}, len(conversations))
	for _, conversation := range conversations {
		if _, ok := seen[conversation.ConversationID]; ok {
			continue
		}
		seen[conversation.ConversationID] = struct{}{}
		list = append(list, conversation)
	}
	return list
}
