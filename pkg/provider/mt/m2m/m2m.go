// Package m2m provides an mt.Provider backed by an M2M100 translation HTTP
// service.
//
// The service exposes two JSON endpoints: POST /api/translate renders a text
// into a target language (detecting the source when none is given) and
// POST /api/detect identifies a text's language. The backend is context-free;
// it translates each text in isolation, so this provider deliberately does not
// implement mt.ContextTranslator.
//
// Usage:
//
//	p, err := m2m.New("http://localhost:5000")
//	res, err := p.Translate(ctx, mt.Request{Text: "Hello", TargetLanguage: "pt"})
package m2m

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrWong99/wordwire/pkg/provider/mt"
)

const (
	translateEndpoint = "/api/translate"
	detectEndpoint    = "/api/detect"
	healthEndpoint    = "/health"

	defaultTimeout = 30 * time.Second
)

// Compile-time assertion that Provider implements mt.Provider.
var _ mt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request timeout. Defaults to 30 s.
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

// Provider implements mt.Provider against an M2M100 HTTP service.
// Safe for concurrent use.
type Provider struct {
	serverURL  string
	httpClient *http.Client
}

// New creates a Provider that connects to the translation service at serverURL
// (e.g. "http://localhost:5000"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("m2m: serverURL must not be empty")
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

// translateResponse mirrors the service's JSON response. processing_time is
// seconds as a float.
type translateResponse struct {
	OriginalText   string  `json:"original_text"`
	TranslatedText string  `json:"translated_text"`
	SourceLanguage string  `json:"source_language"`
	TargetLanguage string  `json:"target_language"`
	ProcessingTime float64 `json:"processing_time"`
}

// Translate calls POST /api/translate.
func (p *Provider) Translate(ctx context.Context, req mt.Request) (*mt.Result, error) {
	if req.Text == "" {
		return nil, errors.New("m2m: empty text")
	}
	if req.TargetLanguage == "" {
		return nil, errors.New("m2m: empty target language")
	}

	body := map[string]string{
		"text":            req.Text,
		"target_language": req.TargetLanguage,
	}
	if req.SourceLanguage != "" {
		body["source_language"] = req.SourceLanguage
	}

	var result translateResponse
	if err := p.postJSON(ctx, translateEndpoint, body, &result); err != nil {
		return nil, err
	}

	return &mt.Result{
		OriginalText:   result.OriginalText,
		TranslatedText: result.TranslatedText,
		SourceLanguage: result.SourceLanguage,
		TargetLanguage: result.TargetLanguage,
		ProcessingTime: time.Duration(result.ProcessingTime * float64(time.Second)),
	}, nil
}

// DetectLanguage calls POST /api/detect.
func (p *Provider) DetectLanguage(ctx context.Context, text string) (*mt.Detection, error) {
	if text == "" {
		return nil, errors.New("m2m: empty text")
	}

	var result struct {
		Language string `json:"language"`
	}
	if err := p.postJSON(ctx, detectEndpoint, map[string]string{"text": text}, &result); err != nil {
		return nil, err
	}
	if result.Language == "" {
		return nil, errors.New("m2m: detect response carried no language")
	}
	return &mt.Detection{Language: result.Language}, nil
}

// Healthy probes GET /health and returns nil on HTTP 200.
func (p *Provider) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+healthEndpoint, nil)
	if err != nil {
		return fmt.Errorf("m2m: create health request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("m2m: health request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("m2m: health returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// postJSON marshals body, POSTs it to endpoint and decodes the 200 response
// into out. Non-2xx responses are reported with the service's error message.
func (p *Provider) postJSON(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("m2m: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("m2m: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("m2m: http request: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("m2m: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("m2m: server returned HTTP %d: %s", resp.StatusCode, serverError(respData))
	}
	if err := json.Unmarshal(respData, out); err != nil {
		return fmt.Errorf("m2m: parse JSON response: %w", err)
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
