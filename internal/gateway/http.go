package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrWong99/wordwire/internal/health"
	"github.com/MrWong99/wordwire/internal/observe"
	"github.com/MrWong99/wordwire/internal/voice"
	"github.com/MrWong99/wordwire/pkg/provider/tts"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes assembles the HTTP surface: the WebSocket endpoint, the bearer-token
// voice endpoints, and the operational probes. metricsHandler is mounted on
// /metrics (typically promhttp).
func (g *Gateway) Routes(probes *health.Handler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(g.metrics))

	r.Get("/ws", g.handleWS)

	r.Route("/voice", func(vr chi.Router) {
		vr.Use(g.requireBearer)
		vr.Post("/translate", g.handleVoiceTranslate)
		vr.Post("/tts", g.handleTTS)
	})

	r.Get("/healthz", probes.Healthz)
	r.Get("/readyz", probes.Readyz)
	r.Handle("/metrics", metricsHandler)

	return r
}

type ctxKey int

const userKey ctxKey = iota

// requireBearer authenticates HTTP voice requests with the same tokens the
// auth event carries, via "Authorization: Bearer <token>".
func (g *Gateway) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "bearer token required")
			return
		}
		userID, err := g.verifier.Verify(r.Context(), token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, userID)))
	})
}

// userFrom returns the user requireBearer resolved for this request.
func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

// handleVoiceTranslate runs one uploaded recording through the full pipeline:
// multipart fields "audio" (file) and "target_language", optionally
// "source_language". Responds with the synthesized audio bytes, with the
// degraded result as JSON when synthesis failed, or 204 when the recording
// contained no speech.
func (g *Gateway) handleVoiceTranslate(w http.ResponseWriter, r *http.Request) {
	if g.voice == nil {
		respondError(w, http.StatusServiceUnavailable, "voice processing is disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, g.maxUpload)
	if err := r.ParseMultipartForm(g.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}

	target := r.FormValue("target_language")
	if target == "" {
		respondError(w, http.StatusBadRequest, "target_language is required")
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "audio file unreadable")
		return
	}

	res, err := g.voice.Process(r.Context(), voice.Utterance{
		UserID:         userFrom(r.Context()),
		TargetLanguage: target,
		SourceLanguage: r.FormValue("source_language"),
		Audio:          audio,
		Fragments:      1,
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if res.SynthesisFailed {
		respondJSON(w, http.StatusOK, res)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Audio); err != nil {
		slog.Warn("voice response write failed", "error", err)
	}
}

// ttsRequest is the /voice/tts body.
type ttsRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// handleTTS synthesizes one text and answers with the audio bytes.
func (g *Gateway) handleTTS(w http.ResponseWriter, r *http.Request) {
	if g.tts == nil {
		respondError(w, http.StatusServiceUnavailable, "synthesis is disabled")
		return
	}

	var req ttsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	audio, err := g.tts.Synthesize(r.Context(), tts.Request{Text: req.Text, Language: req.Language})
	if err != nil {
		g.metrics.RecordProviderError(r.Context(), "tts", "synthesize")
		respondError(w, http.StatusBadGateway, "synthesis failed")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		slog.Warn("tts response write failed", "error", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encoding failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
