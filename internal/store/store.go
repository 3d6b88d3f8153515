// Package store defines the durable data layer behind the chat core: users,
// two-party conversations, and messages.
//
// The interfaces are split by concern so consumers can declare exactly what
// they need: the router persists and flips messages ([MessageStore]), resolves
// recipients ([ConversationStore], [UserStore]), and the registry stamps
// last-seen times ([UserStore]). [Store] bundles all three for wiring.
//
// Implementations live in subpackages: postgres (production), mock (tests).
// Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/wordwire/pkg/types"
)

// ErrNotFound is returned when a referenced user, conversation, or message
// does not exist. Callers should match it with errors.Is; implementations
// wrap it with operation context.
var ErrNotFound = errors.New("store: not found")

// MessageStore persists chat messages and their delivery/read flags.
type MessageStore interface {
	// SaveMessage inserts msg. An empty msg.ID is replaced with a fresh UUID
	// and a zero msg.CreatedAt with the current time, both written back to
	// msg. Saving the same ID again updates the translation fields instead of
	// failing, so a retried save after an ambiguous error is harmless.
	SaveMessage(ctx context.Context, msg *types.Message) error

	// EmergencySaveMessage is the last-resort write used after SaveMessage
	// has been given up on: it stores only the original text, marking the
	// message translation-failed, and does nothing if the ID already exists.
	// msg is normalized in place the same way SaveMessage does.
	EmergencySaveMessage(ctx context.Context, msg *types.Message) error

	// MarkDelivered records delivery of a single message to the recipient's
	// live connection. Returns an error wrapping [ErrNotFound] when no such
	// message exists.
	MarkDelivered(ctx context.Context, messageID string, at time.Time) error

	// MarkConversationRead flips every unread message in the conversation
	// that was not sent by readerID, and returns the affected messages in
	// chronological order so the caller can notify their senders.
	MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]types.Message, error)

	// RecentMessages returns up to limit messages of the conversation,
	// newest first. Returns an empty (non-nil) slice when the conversation
	// has no messages.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]types.Message, error)
}

// UserStore reads and maintains user accounts.
type UserStore interface {
	// User retrieves a user by ID. Returns an error wrapping [ErrNotFound]
	// when the user does not exist.
	User(ctx context.Context, id string) (*types.User, error)

	// TouchLastSeen updates the user's last-seen timestamp. Returns an error
	// wrapping [ErrNotFound] when the user does not exist.
	TouchLastSeen(ctx context.Context, userID string, at time.Time) error

	// DeleteUserData removes the user and, transitively, every conversation
	// the user participates in together with its messages. Deleting an
	// unknown user is not an error.
	DeleteUserData(ctx context.Context, userID string) error
}

// ConversationStore reads conversations.
type ConversationStore interface {
	// Conversation retrieves a conversation by ID. Returns an error wrapping
	// [ErrNotFound] when the conversation does not exist.
	Conversation(ctx context.Context, id string) (*types.Conversation, error)
}

// Store bundles the full data layer for wiring.
type Store interface {
	MessageStore
	UserStore
	ConversationStore
}

// DeadLetter records messages that could not be persisted at all, after both
// the retried save and the emergency save failed. Implementations must retain
// enough of the message for manual recovery.
type DeadLetter interface {
	Append(msg types.Message, cause error) error
}
