// Package translate decides whether, and how, a piece of text gets
// translated. It wraps a machine-translation provider with the policy the
// chat core relies on: skip work that is not needed (same language,
// emoji-only), detect the source language when the sender did not declare
// one, and degrade to the original text instead of failing — a message is
// always deliverable, translated or not.
package translate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MrWong99/wordwire/pkg/provider/mt"
	"github.com/MrWong99/wordwire/pkg/types"
)

// externalDetectConfidence is reported when the external detector answered.
// It sits above the heuristic cap so an external answer always outranks a
// marker-word guess.
const externalDetectConfidence = 0.9

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithDefaultLanguage sets the language reported when detection has nothing
// to go on. Defaults to "en".
func WithDefaultLanguage(code string) Option {
	return func(o *Orchestrator) {
		o.defaultLanguage = Normalize(code)
	}
}

// Orchestrator applies the translation policy on top of an [mt.Provider].
// All methods are safe for concurrent use; the orchestrator is read-only
// after construction.
type Orchestrator struct {
	provider        mt.Provider
	defaultLanguage string
}

// New creates an [Orchestrator] around provider.
func New(provider mt.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:        provider,
		defaultLanguage: "en",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DetectLanguage identifies the language of text. It prefers the external
// detector and falls back to the marker-word heuristic when that call fails,
// so it never returns an error — at worst it reports the default language at
// floor confidence.
func (o *Orchestrator) DetectLanguage(ctx context.Context, text string) (language string, confidence float64) {
	if strings.TrimSpace(text) == "" {
		return o.defaultLanguage, heuristicFloor
	}

	det, err := o.provider.DetectLanguage(ctx, text)
	if err == nil && det.Language != "" {
		return Normalize(det.Language), externalDetectConfidence
	}
	if err != nil {
		slog.Warn("language detection failed, using heuristic",
			"error", err)
	}
	return heuristicDetect(text)
}

// Translate converts text into targetLanguage. An empty sourceLanguage means
// "detect it". The call never fails: when every translation path errors the
// result carries the original text with confidence 0 so callers can deliver
// it anyway and mark the failure.
func (o *Orchestrator) Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) types.TranslationResult {
	return o.translate(ctx, text, targetLanguage, sourceLanguage, nil)
}

// TranslateWithContext is [Orchestrator.Translate] with prior conversation
// turns supplied to the backend for pronoun and reference resolution. When
// the context-aware call fails — or the backend cannot use context at all —
// it degrades to a plain translation before giving up.
func (o *Orchestrator) TranslateWithContext(ctx context.Context, text, targetLanguage, sourceLanguage string, history []mt.Turn) types.TranslationResult {
	return o.translate(ctx, text, targetLanguage, sourceLanguage, history)
}

func (o *Orchestrator) translate(ctx context.Context, text, targetLanguage, sourceLanguage string, history []mt.Turn) types.TranslationResult {
	target := Normalize(targetLanguage)

	result := types.TranslationResult{
		OriginalText:   text,
		TranslatedText: text,
		TargetLanguage: target,
		Confidence:     1.0,
	}

	// Emoji carry no language; there is nothing to translate.
	if EmojiOnly(text) {
		result.SourceLanguage = sourceLanguage
		return result
	}

	source := ""
	confidence := 1.0
	if sourceLanguage != "" {
		source = Normalize(sourceLanguage)
	} else {
		source, confidence = o.DetectLanguage(ctx, text)
	}
	result.SourceLanguage = source

	// Already in the recipient's language.
	if source == target {
		return result
	}

	req := mt.Request{
		Text:           text,
		SourceLanguage: source,
		TargetLanguage: target,
	}

	res, err := o.callProvider(ctx, req, history)
	if err != nil {
		slog.Warn("translation failed, returning original text",
			"source", source,
			"target", target,
			"error", err)
		result.Confidence = 0
		return result
	}

	result.TranslatedText = res.TranslatedText
	if res.SourceLanguage != "" {
		result.SourceLanguage = Normalize(res.SourceLanguage)
	}
	result.Confidence = confidence
	return result
}

// callProvider runs the context-aware path when history is present and the
// backend supports it, then falls back to a plain translation.
func (o *Orchestrator) callProvider(ctx context.Context, req mt.Request, history []mt.Turn) (*mt.Result, error) {
	if len(history) > 0 {
		if ct, ok := o.provider.(mt.ContextTranslator); ok {
			res, err := ct.TranslateWithContext(ctx, req, history)
			if err == nil {
				return res, nil
			}
			slog.Warn("context translation failed, retrying without context",
				"error", err)
		}
	}
	return o.provider.Translate(ctx, req)
}
