// Package registry tracks which users currently hold a live connection.
//
// The registry is the single source of truth for "is this user reachable
// right now". A connection registers once its owner is authenticated and
// unregisters from its close handler. Registration is last-writer-wins: a
// reconnect immediately supersedes a half-dead predecessor without waiting
// for the old socket to notice, and the stale close handler that eventually
// fires must not evict the replacement — Unregister therefore requires the
// caller to present the connection it is tearing down.
//
// Presence transitions (online/offline plus a last-seen timestamp) are fanned
// out to every other registered connection. The fan-out is best-effort: a
// socket that fails to accept the event is logged and skipped, and its own
// close handler is left to clean it up.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/MrWong99/wordwire/internal/event"
	"github.com/MrWong99/wordwire/internal/observe"
	"github.com/MrWong99/wordwire/internal/store"
	"github.com/MrWong99/wordwire/pkg/types"
)

// Conn is the live socket handle the registry manages. Implementations must
// be safe for concurrent use; the registry compares them by identity, so the
// gateway must pass the same value to Register and Unregister.
type Conn interface {
	// Send writes one event to the connection.
	Send(ctx context.Context, ev event.Envelope) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithUserStore makes the registry stamp a user's last-seen time through
// users when their connection unregisters. The write is best-effort.
func WithUserStore(users store.UserStore) Option {
	return func(r *Registry) {
		r.users = users
	}
}

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// Registry maps authenticated user IDs to their live connections. It is safe
// for concurrent use. The zero value is not usable; call New.
type Registry struct {
	users   store.UserStore
	metrics *observe.Metrics

	mu    sync.RWMutex
	conns map[string]Conn
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{conns: make(map[string]Conn)}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Register binds userID to conn, replacing any prior connection for the same
// user. The replaced connection is not closed here; its writes will fail and
// its own close handler runs Unregister, which recognizes it as stale. Other
// users are notified that userID came online.
func (r *Registry) Register(ctx context.Context, userID string, conn Conn) {
	r.mu.Lock()
	_, replaced := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if !replaced {
		r.metrics.ConnectedUsers.Add(ctx, 1)
	}
	slog.Info("user connected", "user_id", userID, "replaced", replaced)

	r.Broadcast(ctx, event.New(event.KindPresence, event.Presence{
		UserID:   userID,
		Status:   types.PresenceOnline,
		LastSeen: time.Now().UTC(),
	}), userID)
}

// Unregister removes userID's binding, but only if conn is still the
// registered connection — a close handler firing after its user reconnected
// must not evict the newer socket. It is idempotent. On an actual removal the
// user's last-seen time is stamped through the store (best-effort) and other
// users are notified that userID went offline.
func (r *Registry) Unregister(ctx context.Context, userID string, conn Conn) {
	r.mu.Lock()
	cur, ok := r.conns[userID]
	if !ok || cur != conn {
		r.mu.Unlock()
		return
	}
	delete(r.conns, userID)
	r.mu.Unlock()

	r.metrics.ConnectedUsers.Add(ctx, -1)
	slog.Info("user disconnected", "user_id", userID)

	lastSeen := time.Now().UTC()
	if r.users != nil {
		if err := r.users.TouchLastSeen(ctx, userID, lastSeen); err != nil {
			slog.Warn("last-seen update failed", "user_id", userID, "error", err)
		}
	}

	r.Broadcast(ctx, event.New(event.KindPresence, event.Presence{
		UserID:   userID,
		Status:   types.PresenceOffline,
		LastSeen: lastSeen,
	}), userID)
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Snapshot returns the IDs of all currently connected users, sorted.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Broadcast sends ev to every registered connection except exceptUserID.
// Sends are best-effort: a failing socket is logged and skipped, never
// propagated. The connection map is snapshotted first so slow sockets do not
// block registration.
func (r *Registry) Broadcast(ctx context.Context, ev event.Envelope, exceptUserID string) {
	r.mu.RLock()
	targets := make(map[string]Conn, len(r.conns))
	for id, conn := range r.conns {
		if id == exceptUserID {
			continue
		}
		targets[id] = conn
	}
	r.mu.RUnlock()

	for id, conn := range targets {
		if err := conn.Send(ctx, ev); err != nil {
			slog.Warn("broadcast send failed", "user_id", id, "event", ev.Type, "error", err)
			r.metrics.RecordEvent(ctx, string(ev.Type), "error")
			continue
		}
		r.metrics.RecordEvent(ctx, string(ev.Type), "ok")
	}
}
