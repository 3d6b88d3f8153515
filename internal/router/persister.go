package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/wordwire/internal/observe"
	"github.com/MrWong99/wordwire/internal/resilience"
	"github.com/MrWong99/wordwire/internal/store"
	"github.com/MrWong99/wordwire/pkg/types"
)

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithRetry overrides the retry schedule for the normal save. Zero fields
// keep the resilience package defaults (3 attempts, 1s doubling to 3s).
func WithRetry(cfg resilience.RetryConfig) PersisterOption {
	return func(p *Persister) {
		p.cfg = cfg
	}
}

// WithDeadLetter sets the journal that records messages lost by every other
// path.
func WithDeadLetter(journal store.DeadLetter) PersisterOption {
	return func(p *Persister) {
		p.journal = journal
	}
}

// WithPersisterMetrics overrides the metrics instance, mainly for tests.
func WithPersisterMetrics(m *observe.Metrics) PersisterOption {
	return func(p *Persister) {
		p.metrics = m
	}
}

// Persister is the single write path for chat and voice messages: a
// bounded-backoff retry of the normal save, then one degraded emergency save
// (original text only), then the dead-letter journal. It has no knowledge of
// what the message means — the text router and the voice pipeline share one
// instance.
type Persister struct {
	messages store.MessageStore
	journal  store.DeadLetter
	metrics  *observe.Metrics
	retryer  *resilience.Retryer
	cfg      resilience.RetryConfig
}

// NewPersister creates a Persister writing through messages.
func NewPersister(messages store.MessageStore, opts ...PersisterOption) *Persister {
	p := &Persister{messages: messages}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}

	cfg := p.cfg
	hook := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error) {
		p.metrics.RecordRetry(context.Background(), "save message")
		if hook != nil {
			hook(attempt, err)
		}
	}
	p.retryer = resilience.NewRetryer(cfg)
	return p
}

// Save persists msg, retrying with backoff and degrading on exhaustion. On
// return with a nil error the message is stored in some form and msg reflects
// it: ID and CreatedAt are backfilled, and after an emergency save the
// translation fields are reset to the original text with the failed flag set.
// A non-nil error means the message could not be stored at all; it has then
// been appended to the dead-letter journal, if one is configured.
func (p *Persister) Save(ctx context.Context, msg *types.Message) error {
	err := p.retryer.Do(ctx, "save message", func(ctx context.Context) error {
		return p.messages.SaveMessage(ctx, msg)
	})
	if err == nil {
		return nil
	}

	slog.Error("message save exhausted retries, attempting emergency save",
		"conversation_id", msg.ConversationID,
		"error", err)
	p.metrics.RecordEmergencySave(ctx)
	emErr := p.messages.EmergencySaveMessage(ctx, msg)
	if emErr == nil {
		return nil
	}

	slog.Error("emergency save failed, dead-lettering message",
		"conversation_id", msg.ConversationID,
		"error", emErr)
	if p.journal != nil {
		if jErr := p.journal.Append(*msg, emErr); jErr != nil {
			slog.Warn("dead-letter append failed",
				"conversation_id", msg.ConversationID,
				"error", jErr)
		}
	}
	return fmt.Errorf("router: save message: %w", emErr)
}
