// Package router implements the chat core's message routing: every
// authenticated event that touches a conversation lands here.
//
// For a send event the router runs a fixed sequence — validate the
// conversation and sender, resolve the recipient and their preferred
// language, translate when needed, persist through the retry ladder, fan out
// to the live connections, acknowledge delivery. Every degradation on that
// path ends in a defined user-visible outcome: worst case a message arrives
// untranslated or flagged as failed, it is never silently dropped.
//
// The router owns no sockets and no storage. It coordinates the connection
// registry, the translation orchestrator, and the store; the [Persister] it
// writes through is shared with the voice pipeline so audio messages take
// exactly the same retry and fallback path as text.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/wordwire/internal/event"
	"github.com/MrWong99/wordwire/internal/observe"
	"github.com/MrWong99/wordwire/internal/registry"
	"github.com/MrWong99/wordwire/internal/store"
	"github.com/MrWong99/wordwire/pkg/provider/mt"
	"github.com/MrWong99/wordwire/pkg/types"
)

// defaultContextDepth is how many prior messages are offered to the
// translation backend as conversation context.
const defaultContextDepth = 3

// Translator is the translation surface the router consumes. It is satisfied
// by translate.Orchestrator; results never carry an error, degradation is
// encoded in the result itself.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) types.TranslationResult
	TranslateWithContext(ctx context.Context, text, targetLanguage, sourceLanguage string, history []mt.Turn) types.TranslationResult
}

// Option configures a Router.
type Option func(*Router)

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithContextDepth sets how many prior messages are fetched as translation
// context. Zero disables context fetching.
func WithContextDepth(n int) Option {
	return func(r *Router) {
		r.contextDepth = n
	}
}

// Router routes chat events between participants. It is stateless apart from
// its collaborators and safe for concurrent use.
type Router struct {
	store        store.Store
	translator   Translator
	registry     *registry.Registry
	persister    *Persister
	metrics      *observe.Metrics
	contextDepth int
}

// New creates a Router.
func New(st store.Store, translator Translator, reg *registry.Registry, persister *Persister, opts ...Option) *Router {
	r := &Router{
		store:        st,
		translator:   translator,
		registry:     reg,
		persister:    persister,
		contextDepth: defaultContextDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// HandleSend runs the send state machine for one message from senderID.
// Failures are reported to the sender on their own connection as
// message_error events; the returned error repeats them for the caller's
// log. A nil return means the message was stored (possibly degraded) and
// echoed to the sender.
func (r *Router) HandleSend(ctx context.Context, sender registry.Conn, senderID string, p event.SendMessage) error {
	kind := p.Kind
	if kind == "" {
		kind = types.MessageText
	}
	if !kind.Valid() {
		return r.reject(ctx, sender, p.ConversationID, fmt.Sprintf("unknown message kind %q", kind))
	}
	if strings.TrimSpace(p.Text) == "" && p.FileURL == "" {
		return r.reject(ctx, sender, p.ConversationID, "message has no text or file")
	}

	conv, err := r.store.Conversation(ctx, p.ConversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return r.reject(ctx, sender, p.ConversationID, "conversation not found")
		}
		r.metrics.RecordMessageRouted(ctx, "failed")
		r.sendError(ctx, sender, p.ConversationID, "message could not be processed")
		return fmt.Errorf("router: load conversation: %w", err)
	}
	recipientID, ok := conv.OtherParticipant(senderID)
	if !ok {
		return r.reject(ctx, sender, conv.ID, "not a participant in this conversation")
	}

	msg := &types.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		OriginalText:   p.Text,
		TranslatedText: p.Text,
		Kind:           kind,
		FileURL:        p.FileURL,
		ReplyTo:        p.ReplyTo,
	}
	r.translateFor(ctx, conv, recipientID, msg)

	if err := r.persister.Save(ctx, msg); err != nil {
		r.metrics.RecordMessageRouted(ctx, "failed")
		r.sendError(ctx, sender, conv.ID, "message could not be saved")
		return err
	}

	outcome := r.fanOut(ctx, sender, recipientID, msg)
	r.metrics.RecordMessageRouted(ctx, outcome)
	slog.Debug("message routed",
		"message_id", msg.ID,
		"conversation_id", conv.ID,
		"outcome", outcome)
	return nil
}

// translateFor fills msg's translation fields for the recipient. Any failure
// on this path leaves the original text in place and never blocks delivery.
func (r *Router) translateFor(ctx context.Context, conv *types.Conversation, recipientID string, msg *types.Message) {
	if !conv.TranslationEnabled || msg.OriginalText == "" {
		return
	}
	recipient, err := r.store.User(ctx, recipientID)
	if err != nil {
		slog.Warn("recipient lookup failed, delivering untranslated",
			"user_id", recipientID,
			"error", err)
		return
	}
	if recipient.PreferredLanguage == "" {
		return
	}

	history := r.history(ctx, conv.ID, msg.SenderID)
	res := r.translator.TranslateWithContext(ctx, msg.OriginalText, recipient.PreferredLanguage, "", history)
	msg.TranslatedText = res.TranslatedText
	msg.SourceLanguage = res.SourceLanguage
	msg.TargetLanguage = res.TargetLanguage
	msg.TranslationFailed = res.Failed()
	r.metrics.RecordTranslation(ctx, res.Outcome())
}

// history loads up to contextDepth prior messages in chronological order.
func (r *Router) history(ctx context.Context, conversationID, senderID string) []mt.Turn {
	if r.contextDepth <= 0 {
		return nil
	}
	recent, err := r.store.RecentMessages(ctx, conversationID, r.contextDepth)
	if err != nil {
		slog.Warn("context fetch failed, translating without history",
			"conversation_id", conversationID,
			"error", err)
		return nil
	}

	// RecentMessages is newest-first; the backend wants reading order.
	turns := make([]mt.Turn, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		turns = append(turns, mt.Turn{
			FromSender: recent[i].SenderID == senderID,
			Text:       recent[i].OriginalText,
		})
	}
	return turns
}

// fanOut echoes msg to the sender, delivers it to the recipient when they
// are connected, and acknowledges the delivery to the sender. It reports
// "delivered" or "queued" — an offline or failing recipient socket leaves
// the message pending for a later fetch path.
func (r *Router) fanOut(ctx context.Context, sender registry.Conn, recipientID string, msg *types.Message) string {
	if err := sender.Send(ctx, event.New(event.KindNewMessage, *msg)); err != nil {
		slog.Warn("message echo failed",
			"message_id", msg.ID,
			"error", err)
	}

	rconn, ok := r.registry.Lookup(recipientID)
	if !ok {
		return "queued"
	}
	if err := rconn.Send(ctx, event.New(event.KindNewMessage, *msg)); err != nil {
		slog.Warn("recipient delivery failed",
			"message_id", msg.ID,
			"user_id", recipientID,
			"error", err)
		return "queued"
	}

	now := time.Now().UTC()
	if err := r.store.MarkDelivered(ctx, msg.ID, now); err != nil {
		slog.Warn("delivery flag not stored",
			"message_id", msg.ID,
			"error", err)
	} else {
		msg.Delivered = true
		msg.DeliveredAt = now
	}
	if err := sender.Send(ctx, event.New(event.KindMessageDelivered, event.MessageDelivered{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		DeliveredAt:    now,
	})); err != nil {
		slog.Warn("delivery receipt not sent",
			"message_id", msg.ID,
			"error", err)
	}
	return "delivered"
}

// HandleMarkRead flips every unread message in the conversation that was not
// sent by readerID and notifies each affected message's sender, if live.
func (r *Router) HandleMarkRead(ctx context.Context, caller registry.Conn, readerID string, p event.MarkRead) error {
	conv, err := r.store.Conversation(ctx, p.ConversationID)
	if err != nil {
		r.sendError(ctx, caller, p.ConversationID, "conversation not found")
		return fmt.Errorf("router: mark read: %w", err)
	}
	if !conv.HasParticipant(readerID) {
		r.sendError(ctx, caller, conv.ID, "not a participant in this conversation")
		return fmt.Errorf("router: mark read: user %s is not a participant of %s", readerID, conv.ID)
	}

	affected, err := r.store.MarkConversationRead(ctx, conv.ID, readerID, time.Now().UTC())
	if err != nil {
		r.sendError(ctx, caller, conv.ID, "read receipts could not be stored")
		return fmt.Errorf("router: mark read: %w", err)
	}

	for _, m := range affected {
		conn, ok := r.registry.Lookup(m.SenderID)
		if !ok {
			continue
		}
		ev := event.New(event.KindMessageRead, event.MessageRead{
			MessageID:      m.ID,
			ConversationID: m.ConversationID,
			ReadAt:         m.ReadAt,
		})
		if err := conn.Send(ctx, ev); err != nil {
			slog.Warn("read receipt not delivered",
				"message_id", m.ID,
				"user_id", m.SenderID,
				"error", err)
		}
	}
	slog.Debug("conversation marked read",
		"conversation_id", conv.ID,
		"reader_id", readerID,
		"messages", len(affected))
	return nil
}

// UserStatus answers a presence query: live connection state from the
// registry, last-seen from the store. Unknown users read as offline with a
// zero last-seen.
func (r *Router) UserStatus(ctx context.Context, userID string) types.UserStatus {
	status := types.UserStatus{UserID: userID}
	if _, ok := r.registry.Lookup(userID); ok {
		status.IsOnline = true
	}
	u, err := r.store.User(ctx, userID)
	if err != nil {
		slog.Debug("status query for unknown user",
			"user_id", userID,
			"error", err)
		return status
	}
	status.LastSeen = u.LastSeen
	return status
}

// HandleActivity relays a transient activity signal (typing, recording).
// With a conversation it goes to the other participant only; without one it
// is broadcast to every other connected user. The sender gets no
// acknowledgement and delivery is best-effort.
func (r *Router) HandleActivity(ctx context.Context, fromUserID string, p event.UserActivity) error {
	p.UserID = fromUserID
	ev := event.New(event.KindUserActivity, p)

	if p.ConversationID == "" {
		r.registry.Broadcast(ctx, ev, fromUserID)
		return nil
	}

	conv, err := r.store.Conversation(ctx, p.ConversationID)
	if err != nil {
		return fmt.Errorf("router: activity: %w", err)
	}
	other, ok := conv.OtherParticipant(fromUserID)
	if !ok {
		return fmt.Errorf("router: activity: user %s is not a participant of %s", fromUserID, conv.ID)
	}
	conn, ok := r.registry.Lookup(other)
	if !ok {
		return nil
	}
	if err := conn.Send(ctx, ev); err != nil {
		slog.Warn("activity not delivered",
			"user_id", other,
			"error", err)
	}
	return nil
}

// reject reports a validation failure to the sender and the metrics.
func (r *Router) reject(ctx context.Context, conn registry.Conn, conversationID, reason string) error {
	r.metrics.RecordMessageRouted(ctx, "rejected")
	r.sendError(ctx, conn, conversationID, reason)
	return fmt.Errorf("router: %s", reason)
}

// sendError delivers a message_error event, best-effort.
func (r *Router) sendError(ctx context.Context, conn registry.Conn, conversationID, message string) {
	ev := event.New(event.KindMessageError, event.MessageError{
		ConversationID: conversationID,
		Message:        message,
	})
	if err := conn.Send(ctx, ev); err != nil {
		slog.Warn("error event not delivered", "error", err)
	}
}
