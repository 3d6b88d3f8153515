package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/wordwire/internal/store"
	"github.com/MrWong99/wordwire/pkg/types"
)

// User implements [store.UserStore].
func (s *Store) User(ctx context.Context, id string) (*types.User, error) {
	const q = `
		SELECT id, display_name, preferred_language, last_seen
		FROM   users
		WHERE  id = $1`

	var (
		u        types.User
		lastSeen *time.Time
	)
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&u.ID,
		&u.DisplayName,
		&u.PreferredLanguage,
		&lastSeen,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("store: user %q: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	if lastSeen != nil {
		u.LastSeen = *lastSeen
	}
	return &u, nil
}

// TouchLastSeen implements [store.UserStore].
func (s *Store) TouchLastSeen(ctx context.Context, userID string, at time.Time) error {
	const q = `
		UPDATE users
		SET    last_seen = $2
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, userID, at)
	if err != nil {
		return fmt.Errorf("store: touch last seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: touch last seen: user %q: %w", userID, store.ErrNotFound)
	}
	return nil
}

// DeleteUserData implements [store.UserStore]. The foreign keys cascade: the
// user's conversations go with the account, and each conversation takes its
// messages.
func (s *Store) DeleteUserData(ctx context.Context, userID string) error {
	const q = `DELETE FROM users WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("store: delete user data: %w", err)
	}
	return nil
}
