package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/wordwire/internal/auth"
	"github.com/MrWong99/wordwire/internal/event"
	"github.com/MrWong99/wordwire/internal/health"
	"github.com/MrWong99/wordwire/internal/registry"
	"github.com/MrWong99/wordwire/internal/router"
	"github.com/MrWong99/wordwire/internal/store/mock"
	"github.com/MrWong99/wordwire/internal/voice"
	"github.com/MrWong99/wordwire/pkg/provider/mt"
	"github.com/MrWong99/wordwire/pkg/provider/stt"
	"github.com/MrWong99/wordwire/pkg/provider/tts"
	"github.com/MrWong99/wordwire/pkg/types"
	"github.com/coder/websocket"
)

// fakeTranslator satisfies both the router's and the voice pipeline's
// translator slices with a recognizable echo translation.
type fakeTranslator struct{}

func (fakeTranslator) Translate(_ context.Context, text, target, source string) types.TranslationResult {
	if source == "" {
		source = "en"
	}
	return types.TranslationResult{
		OriginalText:   text,
		TranslatedText: "[" + target + "] " + text,
		SourceLanguage: source,
		TargetLanguage: target,
		Confidence:     0.9,
	}
}

func (f fakeTranslator) TranslateWithContext(ctx context.Context, text, target, source string, _ []mt.Turn) types.TranslationResult {
	return f.Translate(ctx, text, target, source)
}

type fakeSTT struct {
	text string
	err  error
}

func (f fakeSTT) Transcribe(_ context.Context, _ stt.Request) (*stt.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stt.Transcript{Text: f.text, Language: "en"}, nil
}

type fakeTTS struct {
	audio []byte
	err   error
}

func (f fakeTTS) Synthesize(_ context.Context, _ tts.Request) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

var testTokens = map[string]string{
	"tok-alice": "alice",
	"tok-bruno": "bruno",
}

// newFixture wires a gateway over an in-memory store and serves it from an
// httptest server.
func newFixture(t *testing.T, opts ...Option) (*httptest.Server, *mock.Store) {
	t.Helper()

	st := &mock.Store{
		Users: map[string]types.User{
			"alice": {ID: "alice", DisplayName: "Alice", PreferredLanguage: "en"},
			"bruno": {ID: "bruno", DisplayName: "Bruno", PreferredLanguage: "pt"},
		},
		Conversations: map[string]types.Conversation{
			"c1": {ID: "c1", ParticipantA: "alice", ParticipantB: "bruno", TranslationEnabled: true},
		},
	}
	reg := registry.New(registry.WithUserStore(st))
	rt := router.New(st, fakeTranslator{}, reg, router.NewPersister(st))

	gw := New(auth.NewStaticVerifier(testTokens), reg, rt, opts...)
	t.Cleanup(gw.Close)

	srv := httptest.NewServer(gw.Routes(health.New(), http.NotFoundHandler()))
	t.Cleanup(srv.Close)
	return srv, st
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, ev event.Envelope) {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// readUntil reads frames until one of the wanted kind arrives, skipping
// interleaved fan-out such as presence, and decodes it into v (when non-nil).
func readUntil(t *testing.T, conn *websocket.Conn, kind event.Kind, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %s: read: %v", kind, err)
		}
		in, err := event.ParseInbound(data)
		if err != nil {
			t.Fatalf("waiting for %s: parse: %v", kind, err)
		}
		if in.Type != kind {
			continue
		}
		if v != nil {
			if err := in.Decode(v); err != nil {
				t.Fatalf("decode %s: %v", kind, err)
			}
		}
		return
	}
}

func authAs(t *testing.T, conn *websocket.Conn, token string) {
	t.Helper()
	writeFrame(t, conn, event.New(event.KindAuth, event.Auth{Token: token}))
	readUntil(t, conn, event.KindAuthSuccess, nil)
}

func TestWS_AuthSuccess(t *testing.T) {
	srv, _ := newFixture(t)
	conn := dial(t, srv)

	writeFrame(t, conn, event.New(event.KindAuth, event.Auth{Token: "tok-alice"}))

	var ack event.AuthSuccess
	readUntil(t, conn, event.KindAuthSuccess, &ack)
	if ack.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", ack.UserID)
	}
}

func TestWS_FirstEventMustBeAuth(t *testing.T) {
	srv, st := newFixture(t)
	conn := dial(t, srv)

	writeFrame(t, conn, event.New(event.KindSendMessage, event.SendMessage{ConversationID: "c1", Text: "hi"}))

	var authErr event.AuthError
	readUntil(t, conn, event.KindAuthError, &authErr)
	if authErr.Message == "" {
		t.Error("auth_error carries no message")
	}

	// The server closes the socket after rejecting the handshake.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := conn.Read(ctx); err == nil {
		t.Error("Read() after rejection succeeded, want closed socket")
	}

	if got := len(st.Saved); got != 0 {
		t.Errorf("stored messages = %d, want 0", got)
	}
}

func TestWS_InvalidTokenRejected(t *testing.T) {
	srv, _ := newFixture(t)
	conn := dial(t, srv)

	writeFrame(t, conn, event.New(event.KindAuth, event.Auth{Token: "tok-nobody"}))

	var authErr event.AuthError
	readUntil(t, conn, event.KindAuthError, &authErr)
	if authErr.Message != "invalid token" {
		t.Errorf("message = %q, want %q", authErr.Message, "invalid token")
	}
}

func TestWS_MessageFlow(t *testing.T) {
	srv, st := newFixture(t)

	alice := dial(t, srv)
	authAs(t, alice, "tok-alice")
	bruno := dial(t, srv)
	authAs(t, bruno, "tok-bruno")

	writeFrame(t, alice, event.New(event.KindSendMessage, event.SendMessage{
		ConversationID: "c1",
		Text:           "Hello",
	}))

	var echo types.Message
	readUntil(t, alice, event.KindNewMessage, &echo)
	if echo.SenderID != "alice" || echo.OriginalText != "Hello" {
		t.Errorf("echo = %+v, want alice/Hello", echo)
	}
	if echo.TranslatedText != "[pt] Hello" {
		t.Errorf("echo TranslatedText = %q, want translated for recipient", echo.TranslatedText)
	}

	var receipt event.MessageDelivered
	readUntil(t, alice, event.KindMessageDelivered, &receipt)
	if receipt.ConversationID != "c1" || receipt.MessageID == "" {
		t.Errorf("receipt = %+v, want conversation c1 with message ID", receipt)
	}

	var delivered types.Message
	readUntil(t, bruno, event.KindNewMessage, &delivered)
	if delivered.TranslatedText != "[pt] Hello" {
		t.Errorf("delivered TranslatedText = %q, want [pt] Hello", delivered.TranslatedText)
	}

	if got := len(st.Saved); got != 1 {
		t.Errorf("stored messages = %d, want 1", got)
	}
}

func TestWS_UnknownKindAnswersError(t *testing.T) {
	srv, _ := newFixture(t)
	conn := dial(t, srv)
	authAs(t, conn, "tok-alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"frob"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var protoErr event.Error
	readUntil(t, conn, event.KindError, &protoErr)
	if !strings.Contains(protoErr.Message, `"frob"`) {
		t.Errorf("error message = %q, want the unknown kind named", protoErr.Message)
	}
}

func TestWS_GetUserStatus(t *testing.T) {
	srv, _ := newFixture(t)

	alice := dial(t, srv)
	authAs(t, alice, "tok-alice")
	bruno := dial(t, srv)
	authAs(t, bruno, "tok-bruno")

	writeFrame(t, alice, event.New(event.KindGetUserStatus, event.GetUserStatus{UserID: "bruno"}))

	var status types.UserStatus
	readUntil(t, alice, event.KindUserStatus, &status)
	if status.UserID != "bruno" || !status.IsOnline {
		t.Errorf("status = %+v, want bruno online", status)
	}
}

func TestWS_WebRTCSignalRelay(t *testing.T) {
	srv, _ := newFixture(t)

	alice := dial(t, srv)
	authAs(t, alice, "tok-alice")
	bruno := dial(t, srv)
	authAs(t, bruno, "tok-bruno")

	signal := json.RawMessage(`{"sdp":"v=0...","kind":"offer"}`)
	writeFrame(t, alice, event.New(event.KindWebRTCSignal, event.WebRTCSignal{
		Signal:       signal,
		TargetUserID: "bruno",
	}))

	var relayed event.WebRTCSignal
	readUntil(t, bruno, event.KindWebRTCSignal, &relayed)
	if relayed.FromUserID != "alice" {
		t.Errorf("FromUserID = %q, want alice", relayed.FromUserID)
	}
	if !strings.Contains(string(relayed.Signal), `"offer"`) {
		t.Errorf("Signal = %s, want the original blob", relayed.Signal)
	}
}

func TestWS_DisconnectBroadcastsOffline(t *testing.T) {
	srv, _ := newFixture(t)

	alice := dial(t, srv)
	authAs(t, alice, "tok-alice")
	bruno := dial(t, srv)
	authAs(t, bruno, "tok-bruno")

	if err := bruno.Close(websocket.StatusNormalClosure, ""); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Alice first sees bruno come online, then go offline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, data, err := alice.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for offline presence: %v", err)
		}
		in, err := event.ParseInbound(data)
		if err != nil || in.Type != event.KindPresence {
			continue
		}
		var p event.Presence
		if err := in.Decode(&p); err != nil {
			t.Fatalf("decode presence: %v", err)
		}
		if p.UserID == "bruno" && p.Status == types.PresenceOffline {
			if p.LastSeen.IsZero() {
				t.Error("offline presence has zero lastSeen")
			}
			return
		}
	}
}

func TestWS_VoiceChunkPipeline(t *testing.T) {
	coord := voice.NewCoordinator(fakeSTT{text: "hello"}, fakeTranslator{}, fakeTTS{audio: []byte("SYNTH")})
	srv, _ := newFixture(t, WithVoice(coord, voice.WithWindow(20*time.Millisecond)))

	alice := dial(t, srv)
	authAs(t, alice, "tok-alice")
	bruno := dial(t, srv)
	authAs(t, bruno, "tok-bruno")

	writeFrame(t, alice, event.New(event.KindVoiceChunk, event.VoiceChunk{
		ConversationID: "c1",
		TargetUserID:   "bruno",
		AudioData:      []byte("raw-frame"),
		TargetLanguage: "pt",
		SequenceNumber: 1,
	}))

	var res event.VoiceResult
	readUntil(t, bruno, event.KindVoiceResult, &res)
	if res.FromUserID != "alice" || res.ConversationID != "c1" {
		t.Errorf("result = from %q conversation %q, want alice/c1", res.FromUserID, res.ConversationID)
	}
	if res.TranslatedText != "[pt] hello" {
		t.Errorf("TranslatedText = %q, want [pt] hello", res.TranslatedText)
	}
	if string(res.Audio) != "SYNTH" {
		t.Errorf("Audio = %q, want synthesized bytes", res.Audio)
	}

	var ack event.VoiceProcessed
	readUntil(t, alice, event.KindVoiceProcessed, &ack)
	if !ack.Success {
		t.Error("Success = false, want true")
	}
}

func TestWS_CallCleanupDiscardsBufferedAudio(t *testing.T) {
	coord := voice.NewCoordinator(fakeSTT{text: "hello"}, fakeTranslator{}, fakeTTS{audio: []byte("SYNTH")})
	srv, _ := newFixture(t, WithVoice(coord, voice.WithWindow(40*time.Millisecond)))

	alice := dial(t, srv)
	authAs(t, alice, "tok-alice")
	bruno := dial(t, srv)
	authAs(t, bruno, "tok-bruno")

	writeFrame(t, alice, event.New(event.KindVoiceChunk, event.VoiceChunk{
		ConversationID: "c1",
		TargetUserID:   "bruno",
		AudioData:      []byte("raw-frame"),
		TargetLanguage: "pt",
		SequenceNumber: 1,
	}))
	writeFrame(t, alice, event.New(event.KindCallCleanup, event.CallCleanup{ConversationID: "c1"}))

	// Past the debounce window nothing may arrive: the cleanup dropped the
	// buffered fragment.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	for {
		_, data, err := bruno.Read(ctx)
		if err != nil {
			return // timed out with no voice result, as intended
		}
		if in, err := event.ParseInbound(data); err == nil && in.Type == event.KindVoiceResult {
			t.Fatal("voice result delivered after call_cleanup")
		}
	}
}

func TestWS_VoiceChunkWithoutVoiceStack(t *testing.T) {
	srv, _ := newFixture(t)
	conn := dial(t, srv)
	authAs(t, conn, "tok-alice")

	writeFrame(t, conn, event.New(event.KindVoiceChunk, event.VoiceChunk{
		ConversationID: "c1",
		AudioData:      []byte("raw"),
	}))

	var protoErr event.Error
	readUntil(t, conn, event.KindError, &protoErr)
	if !strings.Contains(protoErr.Message, "disabled") {
		t.Errorf("error message = %q, want voice disabled", protoErr.Message)
	}
}
