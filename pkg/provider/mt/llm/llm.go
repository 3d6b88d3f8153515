// Package llm provides an mt.Provider that prompts a large language model to
// translate, backed by github.com/mozilla-ai/any-llm-go, a unified
// multi-provider client (OpenAI, Anthropic, Gemini, Ollama, Mistral,
// llama.cpp, and more).
//
// Unlike the dedicated M2M backend, an LLM can take prior conversation turns
// into account, so this provider also implements mt.ContextTranslator. It is
// typically wired as the fallback behind M2M and as the engine for
// context-aware translation.
//
// Usage:
//
//	p, err := llm.New("ollama", "qwen2.5:7b")
//	res, err := p.TranslateWithContext(ctx, req, history)
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllm "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	"github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/wordwire/pkg/provider/mt"
)

// Compile-time assertions.
var (
	_ mt.Provider          = (*Provider)(nil)
	_ mt.ContextTranslator = (*Provider)(nil)
)

// maxContextTurns bounds how many history turns are inlined into the prompt.
const maxContextTurns = 8

// Provider implements mt.Provider and mt.ContextTranslator by prompting an
// LLM through any-llm-go. Safe for concurrent use.
type Provider struct {
	backend anyllm.Provider
	model   string
}

// New creates a Provider backed by the given LLM vendor.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "mistral", "llamacpp". model names the specific model (e.g. "gpt-4o-mini",
// "qwen2.5:7b"). opts are any-llm-go options such as anyllm.WithAPIKey and
// anyllm.WithBaseURL; without an API key option the vendor's usual
// environment variable applies.
func New(providerName, model string, opts ...anyllm.Option) (*Provider, error) {
	if providerName == "" {
		return nil, errors.New("llm: providerName must not be empty")
	}
	if model == "" {
		return nil, errors.New("llm: model must not be empty")
	}
	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

// NewFromBackend wraps an existing any-llm-go provider. Used by tests and by
// callers that build the backend themselves.
func NewFromBackend(backend anyllm.Provider, model string) (*Provider, error) {
	if backend == nil {
		return nil, errors.New("llm: backend must not be nil")
	}
	if model == "" {
		return nil, errors.New("llm: model must not be empty")
	}
	return &Provider{backend: backend, model: model}, nil
}

func createBackend(providerName string, opts ...anyllm.Option) (anyllm.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return openai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, mistral, llamacpp", providerName)
	}
}

// Translate implements mt.Provider.
func (p *Provider) Translate(ctx context.Context, req mt.Request) (*mt.Result, error) {
	return p.translate(ctx, req, nil)
}

// TranslateWithContext implements mt.ContextTranslator. History is ordered
// oldest first; only the newest maxContextTurns turns are used.
func (p *Provider) TranslateWithContext(ctx context.Context, req mt.Request, history []mt.Turn) (*mt.Result, error) {
	return p.translate(ctx, req, history)
}

func (p *Provider) translate(ctx context.Context, req mt.Request, history []mt.Turn) (*mt.Result, error) {
	if req.Text == "" {
		return nil, errors.New("llm: empty text")
	}
	if req.TargetLanguage == "" {
		return nil, errors.New("llm: empty target language")
	}

	temperature := 0.0 // translation wants determinism, not creativity
	params := anyllm.CompletionParams{
		Model:       p.model,
		Temperature: &temperature,
		Messages: []anyllm.Message{
			{Role: anyllm.RoleSystem, Content: systemPrompt(req, history)},
			{Role: anyllm.RoleUser, Content: req.Text},
		},
	}

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: empty choices in response")
	}

	translated := cleanCompletion(resp.Choices[0].Message.ContentString())
	if translated == "" {
		return nil, errors.New("llm: model returned no translation")
	}

	return &mt.Result{
		OriginalText:   req.Text,
		TranslatedText: translated,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
	}, nil
}

// DetectLanguage implements mt.Provider by asking the model for an ISO 639-1
// code.
func (p *Provider) DetectLanguage(ctx context.Context, text string) (*mt.Detection, error) {
	if text == "" {
		return nil, errors.New("llm: empty text")
	}

	temperature := 0.0
	params := anyllm.CompletionParams{
		Model:       p.model,
		Temperature: &temperature,
		Messages: []anyllm.Message{
			{Role: anyllm.RoleSystem, Content: "Identify the language of the user's message. Reply with only the ISO 639-1 two-letter code, nothing else."},
			{Role: anyllm.RoleUser, Content: text},
		},
	}

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: empty choices in response")
	}

	code := strings.ToLower(cleanCompletion(resp.Choices[0].Message.ContentString()))
	if len(code) != 2 || !isAlpha(code) {
		return nil, fmt.Errorf("llm: model returned %q, not a language code", code)
	}
	return &mt.Detection{Language: code}, nil
}

// systemPrompt builds the translation instruction, inlining recent history so
// the model can resolve pronouns and references across turns.
func systemPrompt(req mt.Request, history []mt.Turn) string {
	var b strings.Builder
	b.WriteString("You are a translation engine for a chat application. ")
	if req.SourceLanguage != "" {
		fmt.Fprintf(&b, "Translate the user's message from %q to %q. ", req.SourceLanguage, req.TargetLanguage)
	} else {
		fmt.Fprintf(&b, "Detect the language of the user's message and translate it to %q. ", req.TargetLanguage)
	}
	b.WriteString("Preserve tone, emoji and formatting. Reply with only the translation, no commentary and no quotes.")

	if len(history) > maxContextTurns {
		history = history[len(history)-maxContextTurns:]
	}
	if len(history) > 0 {
		b.WriteString("\n\nRecent conversation, oldest first, for reference only — do not translate it:\n")
		for _, turn := range history {
			speaker := "other"
			if turn.FromSender {
				speaker = "sender"
			}
			fmt.Fprintf(&b, "[%s] %s\n", speaker, turn.Text)
		}
	}
	return b.String()
}

// cleanCompletion strips the wrapping whitespace and quote characters models
// like to add despite instructions.
func cleanCompletion(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
