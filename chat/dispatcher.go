// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhachung/chatsync/transport"
)

// dispatcher validates and transmits user-authored messages, then
// triggers post-send reconciliation.
type dispatcher struct {
	transport transport.Transport
	// scheduleReconcile is called after every acknowledged send so the
	// sender's own client converges on the server's updated
	// lastMessage/lastMessageAt. The sender does not necessarily
	// receive its own message back on the push channel; the delayed
	// pull is the correctness backstop.
	scheduleReconcile func()
}

// send validates and emits one message. Order of checks matters: the
// connection check and the participant check both reject before any
// network traffic or state mutation.
func (d *dispatcher) send(ctx context.Context, conversation Conversation, content string, messageType MessageType, senderID int64) error {
	if !d.transport.Connected() {
		return ErrNotConnected
	}
	if !conversation.Participant(senderID) {
		return fmt.Errorf("%w: sender %d in conversation %d", ErrNotParticipant, senderID, conversation.ConversationID)
	}

	payload := SendPayload{
		ConversationID: conversation.ConversationID,
		SenderID:       senderID,
		Type:           messageType,
		Content:        content,
	}
	if err := d.transport.EmitWithAck(ctx, EventSendMessage, payload); err != nil {
		return fmt.Errorf("chat: sending to conversation %d: %w", conversation.ConversationID, err)
	}

	d.scheduleReconcile()
	return nil
}

// sendParts dispatches each part as an independent send, in order. A
// failed part does not block the remaining parts; failures are
// reported individually, joined into one error.
func (d *dispatcher) sendParts(ctx context.Context, conversation Conversation, parts []Part, senderID int64) error {
	var errs []error
	for i, part := range parts {
		if err := d.send(ctx, conversation, part.Content, part.Type, senderID); err != nil {
			errs = append(errs, &PartError{Index: i, Err: err})
		}
	}
	return errors.Join(errs...)
}
