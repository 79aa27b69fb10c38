// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "time"

// MessageType classifies a message's payload.
type MessageType string

const (
	// MessageText is a plain text message.
	MessageText MessageType = "text"
	// MessageImage carries an image URL.
	MessageImage MessageType = "image"
	// MessageVideo carries a video URL.
	MessageVideo MessageType = "video"
	// MessageFile carries a file URL.
	MessageFile MessageType = "file"
	// MessageSystem is server-generated, has no human sender, and may
	// carry a ListingRef in Metadata.
	MessageSystem MessageType = "system"
)

// Transport event names. The engine subscribes to the first four;
// EventSendMessage and EventTyping are client-to-server emissions.
const (
	EventNewMessage          = "new_message"
	EventMessageSent         = "message_sent"
	EventConversationUpdated = "conversation_updated"
	EventUserTyping          = "user_typing"
	EventSendMessage         = "send_message"
	EventTyping              = "typing"
)

// ListingRef is the structured attachment on system messages: the
// rental listing a conversation was started about.
type ListingRef struct {
	Title   string `json:"title,omitempty"`
	Price   string `json:"price,omitempty"`
	Address string `json:"address,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Message is one entry in a conversation. MessageID is the
// server-assigned identity key used for deduplication; (CreatedAt,
// MessageID) is the total ordering within a conversation's buffer.
type Message struct {
	MessageID      string      `json:"messageId"`
	ConversationID int64       `json:"conversationId"`
	// SenderID is nil for system-generated messages.
	SenderID  *int64      `json:"senderId,omitempty"`
	Type      MessageType `json:"type"`
	// Content is raw text, or a URL for media and file types.
	Content   string      `json:"content"`
	Metadata  *ListingRef `json:"metadata,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	IsRead    bool        `json:"isRead"`
}

// MessagePreview is the last-message summary shown in the
// conversation list.
type MessagePreview struct {
	Content string      `json:"content"`
	Type    MessageType `json:"type"`
}

// Conversation is a fixed tenant/landlord pair plus its thread
// metadata and unread counters. UnreadCount is the viewer-relative
// aggregate; the role-specific counters track each participant.
type Conversation struct {
	ConversationID      int64           `json:"conversationId"`
	TenantID            int64           `json:"tenantId"`
	LandlordID          int64           `json:"landlordId"`
	UnreadCountTenant   int             `json:"unreadCountTenant"`
	UnreadCountLandlord int             `json:"unreadCountLandlord"`
	UnreadCount         int             `json:"unreadCount"`
	LastMessage         *MessagePreview `json:"lastMessage,omitempty"`
	LastMessageAt       *time.Time      `json:"lastMessageAt,omitempty"`
	// SystemMessage is the seed message delivered alongside
	// conversation creation. It is merged into the message buffer
	// exactly once on load.
	SystemMessage *Message `json:"systemMessage,omitempty"`
}

// Participant reports whether userID is one of the conversation's two
// fixed participants.
func (c *Conversation) Participant(userID int64) bool {
	return userID == c.TenantID || userID == c.LandlordID
}

// TypingEvent is the payload of EventUserTyping deliveries and
// EventTyping emissions.
type TypingEvent struct {
	ConversationID int64 `json:"conversationId"`
	SenderID       int64 `json:"senderId"`
	IsTyping       bool  `json:"isTyping"`
}

// SendPayload is the body of an EventSendMessage emission.
type SendPayload struct {
	ConversationID int64       `json:"conversationId"`
	SenderID       int64       `json:"senderId"`
	Type           MessageType `json:"type"`
	Content        string      `json:"content"`
}

// Part is one element of a multi-part send: several attachments
// followed by a trailing text message, each dispatched independently.
type Part struct {
	Type    MessageType
	Content string
}

// Snapshot is an immutable view of engine state for rendering. Maps
// and slices are copies; mutating a Snapshot never affects the engine.
type Snapshot struct {
	// Conversations is ordered by LastMessageAt descending;
	// conversations without a timestamp sort last.
	Conversations []Conversation
	// MessagesByConversation holds each loaded conversation's buffer,
	// ordered ascending by (CreatedAt, MessageID).
	MessagesByConversation map[int64][]Message
	// TypingByConversation reports remote typing state. Absent keys
	// mean not typing.
	TypingByConversation map[int64]bool
	// Connected is the transport's connection state.
	Connected bool
	// SelectedConversationID is the open conversation, or zero.
	SelectedConversationID int64
}
