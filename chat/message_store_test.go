// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"math/rand"
	"testing"
	"time"
)

var storeBase = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func textMessage(id string, conversationID int64, at time.Time) Message {
	sender := int64(1)
	return Message{
		MessageID:      id,
		ConversationID: conversationID,
		SenderID:       &sender,
		Type:           MessageText,
		Content:        "content of " + id,
		CreatedAt:      at,
	}
}

func bufferIDs(t *testing.T, store *messageStore, conversationID int64) []string {
	t.Helper()
	buffer := store.messages(conversationID)
	ids := make([]string, len(buffer))
	for i, message := range buffer {
		ids[i] = message.MessageID
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIngest(t *testing.T) {
	t.Run("is idempotent", func(t *testing.T) {
		store := newMessageStore()
		message := textMessage("m1", 7, storeBase)

		if !store.ingest(message) {
			t.Fatal("first ingest returned false")
		}
		if store.ingest(message) {
			t.Fatal("second ingest of the same messageId returned true")
		}
		if ids := bufferIDs(t, store, 7); !equalIDs(ids, []string{"m1"}) {
			t.Errorf("buffer = %v, want [m1]", ids)
		}
	})

	t.Run("rejects missing messageId without mutating", func(t *testing.T) {
		store := newMessageStore()
		store.ingest(textMessage("m1", 7, storeBase))

		malformed := textMessage("", 7, storeBase.Add(time.Second))
		if store.ingest(malformed) {
			t.Fatal("ingest accepted a message with no messageId")
		}
		if ids := bufferIDs(t, store, 7); !equalIDs(ids, []string{"m1"}) {
			t.Errorf("buffer mutated by rejected message: %v", ids)
		}
	})

	t.Run("preserves order under any arrival interleaving", func(t *testing.T) {
		want := []string{"m01", "m02", "m03", "m04", "m05", "m06", "m07", "m08"}
		messages := make([]Message, len(want))
		for i, id := range want {
			messages[i] = textMessage(id, 7, storeBase.Add(time.Duration(i)*time.Minute))
		}

		rng := rand.New(rand.NewSource(42))
		for trial := 0; trial < 20; trial++ {
			store := newMessageStore()
			shuffled := make([]Message, len(messages))
			copy(shuffled, messages)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			for _, message := range shuffled {
				store.ingest(message)
			}
			if ids := bufferIDs(t, store, 7); !equalIDs(ids, want) {
				t.Fatalf("trial %d: buffer = %v, want %v", trial, ids, want)
			}
		}
	})

	t.Run("ties on createdAt break by messageId", func(t *testing.T) {
		store := newMessageStore()
		store.ingest(textMessage("b", 7, storeBase))
		store.ingest(textMessage("a", 7, storeBase))
		store.ingest(textMessage("c", 7, storeBase))

		if ids := bufferIDs(t, store, 7); !equalIDs(ids, []string{"a", "b", "c"}) {
			t.Errorf("buffer = %v, want [a b c]", ids)
		}
	})

	t.Run("conversations do not share buffers", func(t *testing.T) {
		store := newMessageStore()
		store.ingest(textMessage("m1", 7, storeBase))
		store.ingest(textMessage("m2", 8, storeBase))

		if ids := bufferIDs(t, store, 7); !equalIDs(ids, []string{"m1"}) {
			t.Errorf("conversation 7 buffer = %v", ids)
		}
		if ids := bufferIDs(t, store, 8); !equalIDs(ids, []string{"m2"}) {
			t.Errorf("conversation 8 buffer = %v", ids)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("replaces buffer sorted ascending", func(t *testing.T) {
		store := newMessageStore()
		store.ingest(textMessage("old", 7, storeBase))

		store.load(7, []Message{
			textMessage("m2", 7, storeBase.Add(2*time.Minute)),
			textMessage("m1", 7, storeBase.Add(time.Minute)),
		}, nil)

		if ids := bufferIDs(t, store, 7); !equalIDs(ids, []string{"m1", "m2"}) {
			t.Errorf("buffer = %v, want [m1 m2]", ids)
		}
	})

	t.Run("merges the system message exactly once", func(t *testing.T) {
		system := Message{
			MessageID:      "sys",
			ConversationID: 7,
			Type:           MessageSystem,
			Content:        "Conversation started about listing",
			Metadata:       &ListingRef{Title: "Studio on Le Loi", Price: "4.5M VND"},
			CreatedAt:      storeBase,
		}
		page := []Message{textMessage("m1", 7, storeBase.Add(time.Minute))}

		store := newMessageStore()
		store.load(7, page, &system)
		if ids := bufferIDs(t, store, 7); !equalIDs(ids, []string{"sys", "m1"}) {
			t.Fatalf("buffer = %v, want [sys m1]", ids)
		}

		// A page that already contains the system message must not
		// duplicate it.
		store.load(7, append([]Message{system}, page...), &system)
		if ids := bufferIDs(t, store, 7); !equalIDs(ids, []string{"sys", "m1"}) {
			t.Errorf("buffer = %v, want [sys m1]", ids)
		}
	})

	t.Run("drops items without messageId", func(t *testing.T) {
		store := newMessageStore()
		store.load(7, []Message{
			textMessage("m1", 7, storeBase),
			textMessage("", 7, storeBase.Add(time.Minute)),
		}, nil)

		if ids := bufferIDs(t, store, 7); !equalIDs(ids, []string{"m1"}) {
			t.Errorf("buffer = %v, want [m1]", ids)
		}
	})
}

func TestMessagesCopies(t *testing.T) {
	store := newMessageStore()
	store.ingest(textMessage("m1", 7, storeBase))

	first := store.messages(7)
	first[0].Content = "mutated"

	if got := store.messages(7)[0].Content; got == "mutated" {
		t.Error("mutating a returned buffer leaked into the store")
	}
}
