package postgres

import (
	"context"
	"fmt"

	"github.com/MrWong99/wordwire/internal/store"
	"github.com/MrWong99/wordwire/pkg/types"
)

// Conversation implements [store.ConversationStore].
func (s *Store) Conversation(ctx context.Context, id string) (*types.Conversation, error) {
	const q = `
		SELECT id, participant_a, participant_b, translation_enabled
		FROM   conversations
		WHERE  id = $1`

	var c types.Conversation
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&c.ID,
		&c.ParticipantA,
		&c.ParticipantB,
		&c.TranslationEnabled,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("store: conversation %q: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("store: get conversation: %w", err)
	}
	return &c, nil
}
