package resilience

import (
	"context"

	"github.com/MrWong99/wordwire/pkg/provider/mt"
)

// MTFallback implements [mt.Provider] with ordered failover across multiple
// translation backends. Each backend has its own circuit breaker, so a dead
// primary stops being consulted after a few failures.
type MTFallback struct {
	chain *Chain[mt.Provider]
}

// Compile-time interface assertions.
var (
	_ mt.Provider          = (*MTFallback)(nil)
	_ mt.ContextTranslator = (*MTFallback)(nil)
)

// NewMTFallback creates an [MTFallback] with primary as the preferred backend.
func NewMTFallback(primaryName string, primary mt.Provider, cfg ChainConfig) *MTFallback {
	return &MTFallback{
		chain: NewChain(primaryName, primary, cfg),
	}
}

// Add registers an additional translation backend as a fallback.
func (f *MTFallback) Add(name string, provider mt.Provider) {
	f.chain.Add(name, provider)
}

// Translate runs the request against the first healthy backend.
func (f *MTFallback) Translate(ctx context.Context, req mt.Request) (*mt.Result, error) {
	return DoWithResult(f.chain, func(p mt.Provider) (*mt.Result, error) {
		return p.Translate(ctx, req)
	})
}

// DetectLanguage runs detection against the first healthy backend.
func (f *MTFallback) DetectLanguage(ctx context.Context, text string) (*mt.Detection, error) {
	return DoWithResult(f.chain, func(p mt.Provider) (*mt.Detection, error) {
		return p.DetectLanguage(ctx, text)
	})
}

// TranslateWithContext runs a context-aware translation against the first
// healthy backend. Backends that cannot use conversation history serve the
// request as a plain translation.
func (f *MTFallback) TranslateWithContext(ctx context.Context, req mt.Request, history []mt.Turn) (*mt.Result, error) {
	return DoWithResult(f.chain, func(p mt.Provider) (*mt.Result, error) {
		if ct, ok := p.(mt.ContextTranslator); ok {
			return ct.TranslateWithContext(ctx, req, history)
		}
		return p.Translate(ctx, req)
	})
}
