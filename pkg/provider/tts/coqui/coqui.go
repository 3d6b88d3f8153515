// Package coqui provides a tts.Provider backed by a Coqui XTTS v2 HTTP
// service.
//
// The service exposes a single JSON endpoint: POST /api/tts accepts the text,
// a language id, an optional reference speaker sample and an optional speed
// factor, and responds with a complete RIFF/WAVE file. The provider validates
// the container header before handing the audio on, so a misconfigured server
// returning JSON or HTML surfaces as an error rather than as unplayable bytes.
//
// Usage:
//
//	p, err := coqui.New("http://localhost:5002",
//	    coqui.WithTimeout(60*time.Second),
//	)
//	wav, err := p.Synthesize(ctx, tts.Request{Text: "Olá", Language: "pt"})
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/wordwire/pkg/audio"
	"github.com/MrWong99/wordwire/pkg/provider/tts"
)

const (
	ttsEndpoint    = "/api/tts"
	healthEndpoint = "/health"

	defaultTimeout = 60 * time.Second
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request timeout. Synthesis of a long utterance on
// CPU can take tens of seconds; defaults to 60 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client, for tests or custom
// transports. The client's own timeout is then authoritative.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithDefaultSpeaker sets a reference speaker sample name sent with every
// request that does not carry its own.
func WithDefaultSpeaker(speakerWAV string) Option {
	return func(p *Provider) {
		p.speakerWAV = speakerWAV
	}
}

// Provider implements tts.Provider against a Coqui XTTS HTTP service.
// Safe for concurrent use; Synthesize calls are independent.
type Provider struct {
	serverURL  string
	speakerWAV string
	httpClient *http.Client
}

// New creates a Provider that targets the TTS service at serverURL
// (e.g. "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ttsRequest is the JSON body sent to POST /api/tts.
type ttsRequest struct {
	Text       string  `json:"text"`
	LanguageID string  `json:"language_id"`
	SpeakerWAV string  `json:"speaker_wav,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
}

// Synthesize calls POST /api/tts and returns the WAV bytes.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if req.Text == "" {
		return nil, errors.New("coqui: empty text")
	}

	body := ttsRequest{
		Text:       req.Text,
		LanguageID: req.Language,
		SpeakerWAV: req.SpeakerWAV,
		Speed:      req.Speed,
	}
	if body.LanguageID == "" {
		body.LanguageID = "en"
	}
	if body.SpeakerWAV == "" {
		body.SpeakerWAV = p.speakerWAV
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("coqui: http request: %w", err)
	}
	defer resp.Body.Close()

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: server returned HTTP %d: %s", resp.StatusCode, serverError(wav))
	}

	if _, err := audio.ParseWAV(wav); err != nil {
		return nil, fmt.Errorf("coqui: response is not playable audio: %w", err)
	}
	return wav, nil
}

// Healthy probes GET /health and returns nil on HTTP 200.
func (p *Provider) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+healthEndpoint, nil)
	if err != nil {
		return fmt.Errorf("coqui: create health request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coqui: health request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coqui: health returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// serverError extracts the {"error": "..."} message the service attaches to
// failure responses.
func serverError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return fmt.Sprintf("(%d-byte body)", len(body))
}
