// Package mt defines the Provider interface for machine-translation backends.
//
// An MT provider wraps a translation service (e.g. an M2M100 server, or an LLM
// prompted to translate) behind two one-shot operations: translate a text into
// a target language, and detect a text's language. Providers that can make use
// of prior conversation turns additionally implement ContextTranslator.
//
// Providers report transport and backend failures as errors; deciding what a
// failure means for the user (skip, substitute the original text, try another
// backend) is the translation orchestrator's job, not the provider's.
//
// Implementations must be safe for concurrent use.
package mt

import "context"

// Provider is the abstraction over any translation backend.
//
// Backends with a reachable health endpoint expose a concrete
// Healthy(ctx) error method alongside this interface; readiness probes are
// wired from the concrete type, not through the interface.
type Provider interface {
	// Translate renders req.Text into req.TargetLanguage. Language codes are
	// expected in canonical short form ("en", "pt"); callers normalize before
	// calling. An empty req.SourceLanguage asks the backend to detect it.
	Translate(ctx context.Context, req Request) (*Result, error)

	// DetectLanguage returns the language of text as a short code.
	DetectLanguage(ctx context.Context, text string) (*Detection, error)
}

// ContextTranslator is implemented by backends that can use prior conversation
// turns to resolve pronouns and references. Backends without context support
// simply do not implement it; callers fall back to plain Translate.
type ContextTranslator interface {
	// TranslateWithContext behaves like Provider.Translate with history as
	// additional conversation context, ordered oldest first.
	TranslateWithContext(ctx context.Context, req Request, history []Turn) (*Result, error)
}
