// Package whisper provides an stt.Provider backed by a Whisper HTTP service.
//
// The service exposes a batch REST API: POST /api/transcribe accepts one audio
// file as multipart/form-data (field "audio", optional "language" form field)
// and responds with the transcribed text, the detected language, and optional
// timed segments. The server performs its own container decoding, so the
// provider forwards recorded audio bytes untouched.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:5001",
//	    whisper.WithTimeout(45*time.Second),
//	)
//	tr, err := p.Transcribe(ctx, stt.Request{Audio: utterance})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/MrWong99/wordwire/pkg/provider/stt"
)

const (
	transcribeEndpoint = "/api/transcribe"
	healthEndpoint     = "/health"

	defaultTimeout  = 45 * time.Second
	defaultFilename = "utterance.webm"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request timeout for transcription calls. A timeout
// is reported like any other transport failure. Defaults to 45 s; transcription
// of a long utterance on CPU can take tens of seconds.
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

// WithDefaultLanguage pins a language hint sent with every request that does
// not carry its own. Empty (the default) lets the server auto-detect.
func WithDefaultLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// Provider implements stt.Provider against a Whisper HTTP service.
// Safe for concurrent use; Transcribe calls are independent.
type Provider struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

// New creates a Provider that connects to the Whisper service at serverURL
// (e.g. "http://localhost:5001"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// transcribeResponse mirrors the service's JSON response. Segment times are
// seconds as floats.
type transcribeResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe uploads req.Audio and returns the transcript. Empty text in the
// response means the utterance held no recognizable speech; that is returned
// as a Transcript with empty Text, not as an error.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("whisper: empty audio")
	}

	filename := req.Filename
	if filename == "" {
		filename = defaultFilename
	}
	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("whisper: write audio: %w", err)
	}
	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return nil, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+transcribeEndpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, serverError(data))
	}

	var result transcribeResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	tr := &stt.Transcript{
		Text:     result.Text,
		Language: result.Language,
	}
	for _, s := range result.Segments {
		tr.Segments = append(tr.Segments, stt.Segment{
			Text:  s.Text,
			Start: time.Duration(s.Start * float64(time.Second)),
			End:   time.Duration(s.End * float64(time.Second)),
		})
	}
	return tr, nil
}

// Healthy probes GET /health and returns nil on HTTP 200.
func (p *Provider) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+healthEndpoint, nil)
	if err != nil {
		return fmt.Errorf("whisper: create health request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper: health request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper: health returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// serverError extracts the {"error": "..."} message the service attaches to
// failure responses, falling back to a byte-count note for opaque bodies.
func serverError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return fmt.Sprintf("(%d-byte body)", len(body))
}
