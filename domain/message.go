package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversationSeparator joins the two nicknames of a conversation key.
// It is excluded from the nickname alphabet, so a key can never be
// forged by a well-formed nickname.
const ConversationSeparator = "#"

// Message is an immutable, durable chat event between two nicknames.
type Message struct {
	ID              uuid.UUID `json:"id"`
	ConversationKey string    `json:"conversationKey"`
	Sender          string    `json:"sender"`
	Body            string    `json:"body"`
	Lang            string    `json:"lang,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ConversationKey derives the order-independent partition key for a
// pair of nicknames: the pair is sorted lexicographically, so
// ConversationKey(a, b) == ConversationKey(b, a).
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ConversationSeparator + b
}
