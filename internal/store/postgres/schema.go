// Package postgres provides the PostgreSQL-backed implementation of the
// wordwire data layer (users, conversations, messages).
//
// All operations share a single [pgxpool.Pool]. [Migrate] applies the schema
// idempotently and is safe to run on every application start.
//
// Usage:
//
//	st, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.SaveMessage(ctx, &msg)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
    id                 TEXT         PRIMARY KEY,
    display_name       TEXT         NOT NULL DEFAULT '',
    preferred_language TEXT         NOT NULL DEFAULT 'en',
    last_seen          TIMESTAMPTZ
);
`

const ddlConversations = `
CREATE TABLE IF NOT EXISTS conversations (
    id                  TEXT     PRIMARY KEY,
    participant_a       TEXT     NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    participant_b       TEXT     NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    translation_enabled BOOLEAN  NOT NULL DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_conversations_participant_a
    ON conversations (participant_a);

CREATE INDEX IF NOT EXISTS idx_conversations_participant_b
    ON conversations (participant_b);
`

const ddlMessages = `
CREATE TABLE IF NOT EXISTS messages (
    id                 TEXT         PRIMARY KEY,
    conversation_id    TEXT         NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
    sender_id          TEXT         NOT NULL,
    original_text      TEXT         NOT NULL,
    translated_text    TEXT         NOT NULL DEFAULT '',
    source_language    TEXT         NOT NULL DEFAULT '',
    target_language    TEXT         NOT NULL DEFAULT '',
    kind               TEXT         NOT NULL DEFAULT 'text',
    file_url           TEXT         NOT NULL DEFAULT '',
    reply_to           TEXT         NOT NULL DEFAULT '',
    translation_failed BOOLEAN      NOT NULL DEFAULT false,
    delivered          BOOLEAN      NOT NULL DEFAULT false,
    delivered_at       TIMESTAMPTZ,
    read               BOOLEAN      NOT NULL DEFAULT false,
    read_at            TIMESTAMPTZ,
    created_at         TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
    ON messages (conversation_id, created_at);

CREATE INDEX IF NOT EXISTS idx_messages_unread
    ON messages (conversation_id) WHERE NOT read;
`

// Migrate creates or ensures all required tables and indexes exist. It is
// idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlUsers,
		ddlConversations,
		ddlMessages,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
