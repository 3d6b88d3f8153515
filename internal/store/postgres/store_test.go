package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/wordwire/internal/store"
	"github.com/MrWong99/wordwire/internal/store/postgres"
	"github.com/MrWong99/wordwire/pkg/types"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if WORDWIRE_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("WORDWIRE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WORDWIRE_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema and two
// seeded users sharing one conversation.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	dropSchema(t, ctx, pool)

	st, err := postgres.New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(st.Close)

	seedUser(t, ctx, pool, "alice", "Alice", "en")
	seedUser(t, ctx, pool, "bruno", "Bruno", "pt")
	seedConversation(t, ctx, pool, "conv-1", "alice", "bruno", true)

	return st
}

// dropSchema removes all tables created by Migrate in reverse dependency order.
func dropSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS messages CASCADE",
		"DROP TABLE IF EXISTS conversations CASCADE",
		"DROP TABLE IF EXISTS users CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema: %v", err)
		}
	}
}

func seedUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, id, name, lang string) {
	t.Helper()
	_, err := pool.Exec(ctx,
		"INSERT INTO users (id, display_name, preferred_language) VALUES ($1, $2, $3)",
		id, name, lang)
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func seedConversation(t *testing.T, ctx context.Context, pool *pgxpool.Pool, id, a, b string, translate bool) {
	t.Helper()
	_, err := pool.Exec(ctx,
		"INSERT INTO conversations (id, participant_a, participant_b, translation_enabled) VALUES ($1, $2, $3, $4)",
		id, a, b, translate)
	if err != nil {
		t.Fatalf("seed conversation %s: %v", id, err)
	}
}

func TestSaveMessage_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	msg := types.Message{
		ConversationID: "conv-1",
		SenderID:       "alice",
		OriginalText:   "Hello!",
		TranslatedText: "Olá!",
		SourceLanguage: "en",
		TargetLanguage: "pt",
		Kind:           types.MessageText,
	}
	if err := st.SaveMessage(ctx, &msg); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("SaveMessage did not assign an ID")
	}
	if msg.CreatedAt.IsZero() {
		t.Fatal("SaveMessage did not assign CreatedAt")
	}

	got, err := st.RecentMessages(ctx, "conv-1", 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(got))
	}
	m := got[0]
	if m.ID != msg.ID {
		t.Errorf("ID = %q, want %q", m.ID, msg.ID)
	}
	if m.TranslatedText != "Olá!" {
		t.Errorf("TranslatedText = %q, want %q", m.TranslatedText, "Olá!")
	}
	if m.Kind != types.MessageText {
		t.Errorf("Kind = %q, want %q", m.Kind, types.MessageText)
	}
	if m.Delivered || m.Read {
		t.Errorf("fresh message delivered=%v read=%v, want false/false", m.Delivered, m.Read)
	}
}

func TestSaveMessage_RetryIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	msg := types.Message{
		ConversationID: "conv-1",
		SenderID:       "alice",
		OriginalText:   "Hi",
		TranslatedText: "first try",
	}
	if err := st.SaveMessage(ctx, &msg); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	// A second save of the same ID must update rather than duplicate.
	msg.TranslatedText = "second try"
	if err := st.SaveMessage(ctx, &msg); err != nil {
		t.Fatalf("SaveMessage (retry): %v", err)
	}

	got, err := st.RecentMessages(ctx, "conv-1", 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(messages) = %d, want 1 (retry must not duplicate)", len(got))
	}
	if got[0].TranslatedText != "second try" {
		t.Errorf("TranslatedText = %q, want %q", got[0].TranslatedText, "second try")
	}
}

func TestEmergencySaveMessage(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	msg := types.Message{
		ConversationID: "conv-1",
		SenderID:       "alice",
		OriginalText:   "urgent",
	}
	if err := st.EmergencySaveMessage(ctx, &msg); err != nil {
		t.Fatalf("EmergencySaveMessage: %v", err)
	}
	if !msg.TranslationFailed {
		t.Error("EmergencySaveMessage did not mark the message translation-failed")
	}

	got, err := st.RecentMessages(ctx, "conv-1", 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(got))
	}
	if !got[0].TranslationFailed {
		t.Error("stored message not marked translation-failed")
	}
	if got[0].TranslatedText != "urgent" {
		t.Errorf("TranslatedText = %q, want the original text", got[0].TranslatedText)
	}

	// Re-running the emergency save must not clobber or duplicate.
	if err := st.EmergencySaveMessage(ctx, &msg); err != nil {
		t.Fatalf("EmergencySaveMessage (again): %v", err)
	}
	got, _ = st.RecentMessages(ctx, "conv-1", 10)
	if len(got) != 1 {
		t.Fatalf("len(messages) = %d after second emergency save, want 1", len(got))
	}
}

func TestMarkDelivered(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	msg := types.Message{ConversationID: "conv-1", SenderID: "alice", OriginalText: "ping"}
	if err := st.SaveMessage(ctx, &msg); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	if err := st.MarkDelivered(ctx, msg.ID, at); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}

	got, _ := st.RecentMessages(ctx, "conv-1", 1)
	if len(got) != 1 || !got[0].Delivered {
		t.Fatal("message not marked delivered")
	}
	if !got[0].DeliveredAt.Equal(at) {
		t.Errorf("DeliveredAt = %v, want %v", got[0].DeliveredAt, at)
	}

	err := st.MarkDelivered(ctx, "no-such-message", at)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMarkConversationRead(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	save := func(sender, text string, at time.Time) types.Message {
		m := types.Message{
			ConversationID: "conv-1",
			SenderID:       sender,
			OriginalText:   text,
			CreatedAt:      at,
		}
		if err := st.SaveMessage(ctx, &m); err != nil {
			t.Fatalf("SaveMessage(%s): %v", text, err)
		}
		return m
	}
	save("alice", "first", base)
	save("alice", "second", base.Add(time.Minute))
	save("bruno", "mine", base.Add(2*time.Minute))

	at := base.Add(3 * time.Minute)
	flipped, err := st.MarkConversationRead(ctx, "conv-1", "bruno", at)
	if err != nil {
		t.Fatalf("MarkConversationRead: %v", err)
	}
	if len(flipped) != 2 {
		t.Fatalf("flipped %d messages, want 2 (bruno's own must stay)", len(flipped))
	}
	// Chronological order.
	if flipped[0].OriginalText != "first" || flipped[1].OriginalText != "second" {
		t.Errorf("flipped order = %q, %q; want first, second",
			flipped[0].OriginalText, flipped[1].OriginalText)
	}
	for _, m := range flipped {
		if !m.Read || !m.ReadAt.Equal(at) {
			t.Errorf("message %q read=%v readAt=%v, want true/%v", m.OriginalText, m.Read, m.ReadAt, at)
		}
	}

	// A second pass finds nothing unread.
	flipped, err = st.MarkConversationRead(ctx, "conv-1", "bruno", at.Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkConversationRead (second): %v", err)
	}
	if len(flipped) != 0 {
		t.Fatalf("second pass flipped %d messages, want 0", len(flipped))
	}
}

func TestRecentMessages_NewestFirstWithLimit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	for i, text := range []string{"oldest", "middle", "newest"} {
		m := types.Message{
			ConversationID: "conv-1",
			SenderID:       "alice",
			OriginalText:   text,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.SaveMessage(ctx, &m); err != nil {
			t.Fatalf("SaveMessage(%s): %v", text, err)
		}
	}

	got, err := st.RecentMessages(ctx, "conv-1", 2)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(got))
	}
	if got[0].OriginalText != "newest" || got[1].OriginalText != "middle" {
		t.Errorf("order = %q, %q; want newest, middle", got[0].OriginalText, got[1].OriginalText)
	}
}

func TestUserLookupAndTouch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u, err := st.User(ctx, "bruno")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if u.PreferredLanguage != "pt" {
		t.Errorf("PreferredLanguage = %q, want pt", u.PreferredLanguage)
	}
	if !u.LastSeen.IsZero() {
		t.Errorf("LastSeen = %v, want zero before first touch", u.LastSeen)
	}

	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	if err := st.TouchLastSeen(ctx, "bruno", at); err != nil {
		t.Fatalf("TouchLastSeen: %v", err)
	}
	u, _ = st.User(ctx, "bruno")
	if !u.LastSeen.Equal(at) {
		t.Errorf("LastSeen = %v, want %v", u.LastSeen, at)
	}

	if _, err := st.User(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("User(nobody) err = %v, want ErrNotFound", err)
	}
	if err := st.TouchLastSeen(ctx, "nobody", at); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("TouchLastSeen(nobody) err = %v, want ErrNotFound", err)
	}
}

func TestConversationLookup(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	c, err := st.Conversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if !c.HasParticipant("alice") || !c.HasParticipant("bruno") {
		t.Errorf("participants = %q, %q; want alice and bruno", c.ParticipantA, c.ParticipantB)
	}
	if !c.TranslationEnabled {
		t.Error("TranslationEnabled = false, want true")
	}

	if _, err := st.Conversation(ctx, "conv-404"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteUserData_Cascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	msg := types.Message{ConversationID: "conv-1", SenderID: "alice", OriginalText: "bye"}
	if err := st.SaveMessage(ctx, &msg); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	if err := st.DeleteUserData(ctx, "alice"); err != nil {
		t.Fatalf("DeleteUserData: %v", err)
	}

	if _, err := st.User(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("user survived deletion: %v", err)
	}
	if _, err := st.Conversation(ctx, "conv-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("conversation survived deletion: %v", err)
	}
	got, err := st.RecentMessages(ctx, "conv-1", 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("messages survived deletion: %d", len(got))
	}

	// Deleting an unknown user is not an error.
	if err := st.DeleteUserData(ctx, "nobody"); err != nil {
		t.Fatalf("DeleteUserData(nobody): %v", err)
	}
}
