// Package mock provides an in-memory test double for the store interfaces.
//
// The mock records every method call for assertion in tests and exposes
// exported fields that control what it returns. It is safe for concurrent
// use via an internal [sync.Mutex].
//
// Typical usage:
//
//	st := &mock.Store{
//	    Users:         map[string]types.User{"bruno": {ID: "bruno", PreferredLanguage: "pt"}},
//	    Conversations: map[string]types.Conversation{"c1": {ID: "c1", ParticipantA: "alice", ParticipantB: "bruno"}},
//	}
//
//	// inject st into the system under test …
//
//	if got := st.CallCount("SaveMessage"); got != 1 {
//	    t.Errorf("expected 1 SaveMessage call, got %d", got)
//	}
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/wordwire/internal/store"
	"github.com/MrWong99/wordwire/pkg/types"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// errSaveFailed is the default error used when FailSaves is positive and no
// SaveMessageErr was configured.
var errSaveFailed = errors.New("mock store: save failed")

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Store is a configurable test double for [store.Store]. All exported *Err
// fields default to nil (success); lookup maps default to empty (not found).
type Store struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// Users backs the User lookup. Missing IDs yield store.ErrNotFound.
	Users map[string]types.User

	// Conversations backs the Conversation lookup. Missing IDs yield
	// store.ErrNotFound.
	Conversations map[string]types.Conversation

	// Saved accumulates every message successfully stored by SaveMessage.
	Saved []types.Message

	// EmergencySaved accumulates every message stored by EmergencySaveMessage.
	EmergencySaved []types.Message

	// FailSaves makes the next N SaveMessage calls fail with SaveMessageErr
	// (or a default error) before the mock starts succeeding. Lets tests
	// exercise the retry path deterministically.
	FailSaves int

	// SaveMessageErr, when non-nil, is returned by every failing SaveMessage
	// call. When FailSaves is zero a non-nil SaveMessageErr fails all calls.
	SaveMessageErr error

	// EmergencySaveErr is returned by EmergencySaveMessage when non-nil.
	EmergencySaveErr error

	// MarkDeliveredErr is returned by MarkDelivered when non-nil.
	MarkDeliveredErr error

	// MarkConversationReadResult is returned by MarkConversationRead.
	// When nil, an empty non-nil slice is returned.
	MarkConversationReadResult []types.Message

	// MarkConversationReadErr is returned by MarkConversationRead when non-nil.
	MarkConversationReadErr error

	// RecentMessagesResult is returned by RecentMessages. When nil, an empty
	// non-nil slice is returned.
	RecentMessagesResult []types.Message

	// RecentMessagesErr is returned by RecentMessages when non-nil.
	RecentMessagesErr error

	// UserErr overrides the Users lookup when non-nil.
	UserErr error

	// ConversationErr overrides the Conversations lookup when non-nil.
	ConversationErr error

	// TouchLastSeenErr is returned by TouchLastSeen when non-nil.
	TouchLastSeenErr error

	// DeleteUserDataErr is returned by DeleteUserData when non-nil.
	DeleteUserDataErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls and accumulated messages without altering
// response configuration.
func (m *Store) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.Saved = nil
	m.EmergencySaved = nil
}

// SaveMessage implements [store.MessageStore]. Like the real store it assigns
// an ID and CreatedAt when empty; IDs are "msg-1", "msg-2", … in save order.
func (m *Store) SaveMessage(_ context.Context, msg *types.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "SaveMessage", Args: []any{*msg}})

	if m.FailSaves > 0 {
		m.FailSaves--
		if m.SaveMessageErr != nil {
			return m.SaveMessageErr
		}
		return errSaveFailed
	}
	if m.SaveMessageErr != nil {
		return m.SaveMessageErr
	}

	m.normalize(msg)
	m.Saved = append(m.Saved, *msg)
	return nil
}

// EmergencySaveMessage implements [store.MessageStore].
func (m *Store) EmergencySaveMessage(_ context.Context, msg *types.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "EmergencySaveMessage", Args: []any{*msg}})

	if m.EmergencySaveErr != nil {
		return m.EmergencySaveErr
	}

	m.normalize(msg)
	msg.TranslatedText = msg.OriginalText
	msg.TranslationFailed = true
	m.EmergencySaved = append(m.EmergencySaved, *msg)
	return nil
}

// MarkDelivered implements [store.MessageStore].
func (m *Store) MarkDelivered(_ context.Context, messageID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "MarkDelivered", Args: []any{messageID, at}})
	return m.MarkDeliveredErr
}

// MarkConversationRead implements [store.MessageStore].
func (m *Store) MarkConversationRead(_ context.Context, conversationID, readerID string, at time.Time) ([]types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "MarkConversationRead", Args: []any{conversationID, readerID, at}})
	if m.MarkConversationReadResult == nil {
		return []types.Message{}, m.MarkConversationReadErr
	}
	out := make([]types.Message, len(m.MarkConversationReadResult))
	copy(out, m.MarkConversationReadResult)
	return out, m.MarkConversationReadErr
}

// RecentMessages implements [store.MessageStore].
func (m *Store) RecentMessages(_ context.Context, conversationID string, limit int) ([]types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "RecentMessages", Args: []any{conversationID, limit}})
	if m.RecentMessagesResult == nil {
		return []types.Message{}, m.RecentMessagesErr
	}
	out := make([]types.Message, len(m.RecentMessagesResult))
	copy(out, m.RecentMessagesResult)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, m.RecentMessagesErr
}

// User implements [store.UserStore].
func (m *Store) User(_ context.Context, id string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "User", Args: []any{id}})
	if m.UserErr != nil {
		return nil, m.UserErr
	}
	u, ok := m.Users[id]
	if !ok {
		return nil, fmt.Errorf("mock store: user %q: %w", id, store.ErrNotFound)
	}
	cp := u
	return &cp, nil
}

// TouchLastSeen implements [store.UserStore]. On success the user's LastSeen
// in the Users map is updated so later lookups observe it.
func (m *Store) TouchLastSeen(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "TouchLastSeen", Args: []any{userID, at}})
	if m.TouchLastSeenErr != nil {
		return m.TouchLastSeenErr
	}
	u, ok := m.Users[userID]
	if !ok {
		return fmt.Errorf("mock store: user %q: %w", userID, store.ErrNotFound)
	}
	u.LastSeen = at
	m.Users[userID] = u
	return nil
}

// DeleteUserData implements [store.UserStore].
func (m *Store) DeleteUserData(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "DeleteUserData", Args: []any{userID}})
	if m.DeleteUserDataErr != nil {
		return m.DeleteUserDataErr
	}
	delete(m.Users, userID)
	return nil
}

// Conversation implements [store.ConversationStore].
func (m *Store) Conversation(_ context.Context, id string) (*types.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Conversation", Args: []any{id}})
	if m.ConversationErr != nil {
		return nil, m.ConversationErr
	}
	c, ok := m.Conversations[id]
	if !ok {
		return nil, fmt.Errorf("mock store: conversation %q: %w", id, store.ErrNotFound)
	}
	cp := c
	return &cp, nil
}

// normalize must be called with m.mu held.
func (m *Store) normalize(msg *types.Message) {
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("msg-%d", len(m.Saved)+len(m.EmergencySaved)+1)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = types.MessageText
	}
}
