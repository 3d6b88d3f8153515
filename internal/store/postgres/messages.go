package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/wordwire/internal/store"
	"github.com/MrWong99/wordwire/pkg/types"
)

// messageColumns is the canonical select list for the messages table, matched
// by scanMessage.
const messageColumns = `id, conversation_id, sender_id, original_text, translated_text,
       source_language, target_language, kind, file_url, reply_to,
       translation_failed, delivered, delivered_at, read, read_at, created_at`

// SaveMessage implements [store.MessageStore]. The insert is an upsert on the
// message ID so a retried save after an ambiguous failure cannot duplicate
// the row; on conflict only the translation fields are refreshed.
func (s *Store) SaveMessage(ctx context.Context, msg *types.Message) error {
	normalizeMessage(msg)

	const q = `
		INSERT INTO messages
		    (id, conversation_id, sender_id, original_text, translated_text,
		     source_language, target_language, kind, file_url, reply_to,
		     translation_failed, delivered, delivered_at, read, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
		    translated_text    = EXCLUDED.translated_text,
		    source_language    = EXCLUDED.source_language,
		    target_language    = EXCLUDED.target_language,
		    translation_failed = EXCLUDED.translation_failed`

	_, err := s.pool.Exec(ctx, q,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.OriginalText,
		msg.TranslatedText,
		msg.SourceLanguage,
		msg.TargetLanguage,
		string(msg.Kind),
		msg.FileURL,
		msg.ReplyTo,
		msg.TranslationFailed,
		msg.Delivered,
		nullableTime(msg.DeliveredAt),
		msg.Read,
		nullableTime(msg.ReadAt),
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save message: %w", err)
	}
	return nil
}

// EmergencySaveMessage implements [store.MessageStore]. It writes only the
// original text, marks the message translation-failed, and leaves an already
// existing row untouched.
func (s *Store) EmergencySaveMessage(ctx context.Context, msg *types.Message) error {
	normalizeMessage(msg)
	msg.TranslatedText = msg.OriginalText
	msg.TranslationFailed = true

	const q = `
		INSERT INTO messages
		    (id, conversation_id, sender_id, original_text, translated_text,
		     kind, file_url, reply_to, translation_failed, created_at)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7, true, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.OriginalText,
		string(msg.Kind),
		msg.FileURL,
		msg.ReplyTo,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: emergency save message: %w", err)
	}
	return nil
}

// MarkDelivered implements [store.MessageStore].
func (s *Store) MarkDelivered(ctx context.Context, messageID string, at time.Time) error {
	const q = `
		UPDATE messages
		SET    delivered = true, delivered_at = $2
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, messageID, at)
	if err != nil {
		return fmt.Errorf("store: mark delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: mark delivered: message %q: %w", messageID, store.ErrNotFound)
	}
	return nil
}

// MarkConversationRead implements [store.MessageStore]. Only messages the
// reader did not send are flipped, so a sender checking their own
// conversation never consumes the recipient's receipts.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]types.Message, error) {
	const q = `
		WITH flipped AS (
		    UPDATE messages
		    SET    read = true, read_at = $3
		    WHERE  conversation_id = $1
		      AND  sender_id <> $2
		      AND  NOT read
		    RETURNING *
		)
		SELECT ` + messageColumns + `
		FROM   flipped
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, conversationID, readerID, at)
	if err != nil {
		return nil, fmt.Errorf("store: mark conversation read: %w", err)
	}
	return collectMessages(rows)
}

// RecentMessages implements [store.MessageStore]. Results are newest first;
// callers wanting chronological order must reverse.
func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]types.Message, error) {
	const q = `
		SELECT ` + messageColumns + `
		FROM   messages
		WHERE  conversation_id = $1
		ORDER  BY created_at DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	return collectMessages(rows)
}

// normalizeMessage backfills the generated fields a caller may leave empty.
func normalizeMessage(msg *types.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = types.MessageText
	}
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// collectMessages scans pgx rows into a slice of Message values.
func collectMessages(rows pgx.Rows) ([]types.Message, error) {
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Message, error) {
		var (
			m           types.Message
			kind        string
			deliveredAt *time.Time
			readAt      *time.Time
		)
		if err := row.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.OriginalText,
			&m.TranslatedText,
			&m.SourceLanguage,
			&m.TargetLanguage,
			&kind,
			&m.FileURL,
			&m.ReplyTo,
			&m.TranslationFailed,
			&m.Delivered,
			&deliveredAt,
			&m.Read,
			&readAt,
			&m.CreatedAt,
		); err != nil {
			return types.Message{}, err
		}
		m.Kind = types.MessageKind(kind)
		if deliveredAt != nil {
			m.DeliveredAt = *deliveredAt
		}
		if readAt != nil {
			m.ReadAt = *readAt
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan messages: %w", err)
	}
	if messages == nil {
		messages = []types.Message{}
	}
	return messages, nil
}
