// Package gateway is the client-facing surface: the WebSocket endpoint every
// chat client holds open, plus the HTTP endpoints for single-shot voice work
// and the operational probes.
//
// A connection's life: accept → first-frame auth → register with the
// connection registry → dispatch events until the socket closes → unregister.
// The first event on every socket must be auth; anything else is answered
// with auth_error and the socket is closed. After auth, events dispatch to
// the message router, the voice intake, or the signaling relay; an unknown
// event kind is answered with an error event naming the kind.
//
// Other subsystems write to a connection through the registry's view of it
// (presence fan-out, message delivery, voice results); the connection
// serializes those writes internally.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrWong99/wordwire/internal/auth"
	"github.com/MrWong99/wordwire/internal/event"
	"github.com/MrWong99/wordwire/internal/observe"
	"github.com/MrWong99/wordwire/internal/registry"
	"github.com/MrWong99/wordwire/internal/router"
	"github.com/MrWong99/wordwire/internal/voice"
	"github.com/MrWong99/wordwire/pkg/provider/tts"
	"github.com/coder/websocket"
)

const (
	// defaultWriteTimeout caps one frame write to one client.
	defaultWriteTimeout = 10 * time.Second

	// defaultAuthTimeout is how long a fresh socket may take to present its
	// auth event before being dropped.
	defaultAuthTimeout = 30 * time.Second

	// defaultVoiceTimeout caps one full voice pipeline cycle (three external
	// calls) triggered from the background intake.
	defaultVoiceTimeout = 2 * time.Minute

	// defaultMaxUpload caps the /voice/translate request body.
	defaultMaxUpload = 32 << 20
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithVoice enables voice processing: streamed chunks are debounced through
// an intake aggregator configured by aggOpts and run through coord, and the
// single-shot /voice/translate endpoint comes alive.
func WithVoice(coord *voice.Coordinator, aggOpts ...voice.AggregatorOption) Option {
	return func(g *Gateway) {
		g.voice = coord
		g.aggOpts = aggOpts
	}
}

// WithTTS enables the /voice/tts endpoint backed by p.
func WithTTS(p tts.Provider) Option {
	return func(g *Gateway) { g.tts = p }
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithWriteTimeout overrides the per-frame write timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.writeTimeout = d }
}

// WithAuthTimeout overrides how long a fresh socket may take to authenticate.
func WithAuthTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.authTimeout = d }
}

// WithOriginPatterns sets the origins the WebSocket accept allows. Without
// it only same-origin browsers connect.
func WithOriginPatterns(patterns ...string) Option {
	return func(g *Gateway) { g.origins = patterns }
}

// WithMaxUpload overrides the /voice/translate body cap in bytes.
func WithMaxUpload(n int64) Option {
	return func(g *Gateway) { g.maxUpload = n }
}

// Gateway owns the client-facing surface. Create with [New], mount through
// [Gateway.Routes], and Close on shutdown to drain the voice intake.
type Gateway struct {
	verifier auth.Verifier
	registry *registry.Registry
	router   *router.Router

	voice   *voice.Coordinator
	aggOpts []voice.AggregatorOption
	intake  *voice.Aggregator
	tts     tts.Provider

	metrics      *observe.Metrics
	writeTimeout time.Duration
	authTimeout  time.Duration
	voiceTimeout time.Duration
	maxUpload    int64
	origins      []string
}

// New creates a Gateway. verifier resolves connection tokens, reg tracks live
// connections, and rt handles the chat events. Voice processing stays off
// until [WithVoice] provides a coordinator.
func New(verifier auth.Verifier, reg *registry.Registry, rt *router.Router, opts ...Option) *Gateway {
	g := &Gateway{
		verifier:     verifier,
		registry:     reg,
		router:       rt,
		metrics:      observe.DefaultMetrics(),
		writeTimeout: defaultWriteTimeout,
		authTimeout:  defaultAuthTimeout,
		voiceTimeout: defaultVoiceTimeout,
		maxUpload:    defaultMaxUpload,
	}
	for _, o := range opts {
		o(g)
	}
	if g.voice != nil {
		g.intake = voice.NewAggregator(g.deliverUtterance, g.aggOpts...)
	}
	return g
}

// Close drains the voice intake: pending debounce windows are cancelled and
// running pipeline cycles are waited out.
func (g *Gateway) Close() {
	if g.intake != nil {
		g.intake.Close()
	}
}

// handleWS upgrades the request and runs the connection to completion.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.origins,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer ws.CloseNow()

	ctx := r.Context()
	conn := &wsConn{ws: ws, timeout: g.writeTimeout}

	userID, err := g.authenticate(ctx, conn, ws)
	if err != nil {
		g.metrics.RecordEvent(ctx, string(event.KindAuth), "error")
		slog.Info("connection rejected", "remote", r.RemoteAddr, "error", err)
		ws.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	// Register before acking so a client holding auth_success is already
	// discoverable by everyone else.
	g.registry.Register(ctx, userID, conn)
	// The close path still has work to do (last-seen, offline fan-out) after
	// the request context is gone.
	defer g.registry.Unregister(context.WithoutCancel(ctx), userID, conn)

	if err := conn.Send(ctx, event.New(event.KindAuthSuccess, event.AuthSuccess{UserID: userID})); err != nil {
		slog.Warn("auth ack not delivered", "user_id", userID, "error", err)
		return
	}
	g.metrics.RecordEvent(ctx, string(event.KindAuth), "ok")

	g.readLoop(ctx, conn, userID, ws)
	ws.Close(websocket.StatusNormalClosure, "")
}

// authenticate performs the first-frame handshake. Any outcome other than a
// valid auth event answers auth_error; the caller closes the socket.
func (g *Gateway) authenticate(ctx context.Context, conn *wsConn, ws *websocket.Conn) (string, error) {
	actx, cancel := context.WithTimeout(ctx, g.authTimeout)
	defer cancel()

	_, data, err := ws.Read(actx)
	if err != nil {
		return "", fmt.Errorf("gateway: read auth frame: %w", err)
	}

	in, err := event.ParseInbound(data)
	if err != nil {
		g.sendAuthError(ctx, conn, "malformed frame")
		return "", err
	}
	if in.Type != event.KindAuth {
		g.sendAuthError(ctx, conn, "authentication required")
		return "", fmt.Errorf("gateway: first event is %q, want %q", in.Type, event.KindAuth)
	}

	var p event.Auth
	if err := in.Decode(&p); err != nil {
		g.sendAuthError(ctx, conn, "malformed auth payload")
		return "", err
	}

	userID, err := g.verifier.Verify(ctx, p.Token)
	if err != nil {
		g.sendAuthError(ctx, conn, "invalid token")
		return "", fmt.Errorf("gateway: verify token: %w", err)
	}
	return userID, nil
}

// readLoop pulls frames until the socket closes or the request context ends.
func (g *Gateway) readLoop(ctx context.Context, conn *wsConn, userID string, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			slog.Debug("read loop ended", "user_id", userID, "error", err)
			return
		}

		in, err := event.ParseInbound(data)
		if err != nil {
			g.sendProtocolError(ctx, conn, "malformed frame")
			continue
		}

		if err := g.dispatch(ctx, conn, userID, in); err != nil {
			g.metrics.RecordEvent(ctx, string(in.Type), "error")
			slog.Warn("event failed", "kind", in.Type, "user_id", userID, "error", err)
			continue
		}
		g.metrics.RecordEvent(ctx, string(in.Type), "ok")
	}
}

// dispatch routes one authenticated frame to its handler. Handler errors are
// reported to the user on the spot (by the router or by a protocol error
// event) and returned for the caller's log.
func (g *Gateway) dispatch(ctx context.Context, conn *wsConn, userID string, in event.Inbound) error {
	switch in.Type {
	case event.KindSendMessage:
		var p event.SendMessage
		if err := in.Decode(&p); err != nil {
			g.sendProtocolError(ctx, conn, "malformed send_message payload")
			return err
		}
		return g.router.HandleSend(ctx, conn, userID, p)

	case event.KindMarkRead:
		var p event.MarkRead
		if err := in.Decode(&p); err != nil {
			g.sendProtocolError(ctx, conn, "malformed mark_read payload")
			return err
		}
		return g.router.HandleMarkRead(ctx, conn, userID, p)

	case event.KindUserActivity:
		var p event.UserActivity
		if err := in.Decode(&p); err != nil {
			g.sendProtocolError(ctx, conn, "malformed user_activity payload")
			return err
		}
		return g.router.HandleActivity(ctx, userID, p)

	case event.KindGetUserStatus:
		var p event.GetUserStatus
		if err := in.Decode(&p); err != nil {
			g.sendProtocolError(ctx, conn, "malformed get_user_status payload")
			return err
		}
		status := g.router.UserStatus(ctx, p.UserID)
		return conn.Send(ctx, event.New(event.KindUserStatus, status))

	case event.KindVoiceChunk:
		var p event.VoiceChunk
		if err := in.Decode(&p); err != nil {
			g.sendProtocolError(ctx, conn, "malformed voice_audio_chunk payload")
			return err
		}
		return g.handleVoiceChunk(ctx, conn, userID, p)

	case event.KindCallCleanup:
		var p event.CallCleanup
		if err := in.Decode(&p); err != nil {
			g.sendProtocolError(ctx, conn, "malformed call_cleanup payload")
			return err
		}
		if g.intake != nil {
			g.intake.Clear(userID, p.ConversationID)
		}
		return nil

	case event.KindWebRTCSignal:
		var p event.WebRTCSignal
		if err := in.Decode(&p); err != nil {
			g.sendProtocolError(ctx, conn, "malformed webrtc_signal payload")
			return err
		}
		return g.relaySignal(ctx, userID, p)

	case event.KindAuth:
		g.sendProtocolError(ctx, conn, "already authenticated")
		return nil

	default:
		g.sendProtocolError(ctx, conn, fmt.Sprintf("unknown event kind %q", in.Type))
		return fmt.Errorf("gateway: unknown event kind %q", in.Type)
	}
}

// handleVoiceChunk feeds one audio fragment into the debounce intake.
func (g *Gateway) handleVoiceChunk(ctx context.Context, conn *wsConn, userID string, p event.VoiceChunk) error {
	if g.intake == nil {
		g.sendProtocolError(ctx, conn, "voice processing is disabled")
		return errors.New("gateway: voice processing is disabled")
	}
	if p.ConversationID == "" || len(p.AudioData) == 0 {
		g.sendProtocolError(ctx, conn, "malformed voice_audio_chunk payload")
		return errors.New("gateway: voice chunk needs a conversation and audio data")
	}
	g.intake.Add(voice.Chunk{
		UserID:         userID,
		ConversationID: p.ConversationID,
		TargetUserID:   p.TargetUserID,
		TargetLanguage: p.TargetLanguage,
		Sequence:       p.SequenceNumber,
		Data:           p.AudioData,
	})
	return nil
}

// relaySignal forwards an opaque WebRTC blob to its target, stamped with the
// sender. Offline targets are routine during call teardown and not an error.
func (g *Gateway) relaySignal(ctx context.Context, fromUserID string, p event.WebRTCSignal) error {
	target, ok := g.registry.Lookup(p.TargetUserID)
	if !ok {
		slog.Debug("signal target offline", "from", fromUserID, "target", p.TargetUserID)
		return nil
	}
	out := event.WebRTCSignal{Signal: p.Signal, FromUserID: fromUserID}
	if err := target.Send(ctx, event.New(event.KindWebRTCSignal, out)); err != nil {
		return fmt.Errorf("gateway: relay signal to %s: %w", p.TargetUserID, err)
	}
	return nil
}

// deliverUtterance is the intake sink: one debounced utterance in, one
// pipeline cycle out, results delivered to whoever is still connected. Runs
// on the intake's timer goroutine, detached from any request context.
func (g *Gateway) deliverUtterance(u voice.Utterance) {
	ctx, cancel := context.WithTimeout(context.Background(), g.voiceTimeout)
	defer cancel()

	res, err := g.voice.Process(ctx, u)
	if err != nil {
		slog.Warn("voice cycle failed",
			"user_id", u.UserID,
			"conversation_id", u.ConversationID,
			"error", err)
		g.notifySpeaker(ctx, u, false)
		return
	}
	if res == nil {
		// No speech in the window; nothing to deliver.
		return
	}

	if target, ok := g.registry.Lookup(u.TargetUserID); ok {
		ev := event.New(event.KindVoiceResult, event.VoiceResult{
			ConversationID:         u.ConversationID,
			FromUserID:             u.UserID,
			VoiceTranslationResult: *res,
		})
		if err := target.Send(ctx, ev); err != nil {
			slog.Warn("voice result not delivered", "target", u.TargetUserID, "error", err)
		}
	} else {
		slog.Debug("voice target offline", "target", u.TargetUserID)
	}

	g.notifySpeaker(ctx, u, true)
}

// notifySpeaker tells the speaker their utterance finished a cycle.
func (g *Gateway) notifySpeaker(ctx context.Context, u voice.Utterance, success bool) {
	speaker, ok := g.registry.Lookup(u.UserID)
	if !ok {
		return
	}
	ev := event.New(event.KindVoiceProcessed, event.VoiceProcessed{
		ConversationID: u.ConversationID,
		Success:        success,
	})
	if err := speaker.Send(ctx, ev); err != nil {
		slog.Warn("voice ack not delivered", "user_id", u.UserID, "error", err)
	}
}

func (g *Gateway) sendAuthError(ctx context.Context, conn *wsConn, msg string) {
	if err := conn.Send(ctx, event.New(event.KindAuthError, event.AuthError{Message: msg})); err != nil {
		slog.Warn("auth error not delivered", "error", err)
	}
}

func (g *Gateway) sendProtocolError(ctx context.Context, conn *wsConn, msg string) {
	if err := conn.Send(ctx, event.New(event.KindError, event.Error{Message: msg})); err != nil {
		slog.Warn("protocol error not delivered", "error", err)
	}
}
