// Package mock provides a test double for the mt.Provider and
// mt.ContextTranslator interfaces.
//
// Example:
//
//	p := &mock.Provider{
//	    TranslateResult: &mt.Result{TranslatedText: "Olá"},
//	    DetectResult:    &mt.Detection{Language: "en"},
//	}
//	res, _ := p.Translate(ctx, mt.Request{Text: "Hello", TargetLanguage: "pt"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/wordwire/pkg/provider/mt"
)

// TranslateCall records a single invocation of Translate.
type TranslateCall struct {
	// Ctx is the context passed to Translate.
	Ctx context.Context
	// Req is the request passed to Translate.
	Req mt.Request
}

// DetectCall records a single invocation of DetectLanguage.
type DetectCall struct {
	// Ctx is the context passed to DetectLanguage.
	Ctx context.Context
	// Text is the text passed to DetectLanguage.
	Text string
}

// ContextCall records a single invocation of TranslateWithContext.
type ContextCall struct {
	// Ctx is the context passed to TranslateWithContext.
	Ctx context.Context
	// Req is the request passed to TranslateWithContext.
	Req mt.Request
	// History is a copy of the turns passed to TranslateWithContext.
	History []mt.Turn
}

// Provider is a mock implementation of mt.Provider and mt.ContextTranslator.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// TranslateResult is returned by Translate and TranslateWithContext when
	// the corresponding error field is nil. When nil, the mock echoes the
	// request: TranslatedText equals the input text.
	TranslateResult *mt.Result

	// TranslateErr, if non-nil, is returned as the error from Translate.
	TranslateErr error

	// TranslateWithContextErr, if non-nil, is returned as the error from
	// TranslateWithContext. Independent from TranslateErr so tests can fail
	// the context path while the plain path still works.
	TranslateWithContextErr error

	// DetectResult is returned by DetectLanguage when DetectErr is nil. When
	// nil, DetectLanguage reports "en".
	DetectResult *mt.Detection

	// DetectErr, if non-nil, is returned as the error from DetectLanguage.
	DetectErr error

	// --- Call records ---

	// TranslateCalls records every call to Translate in order.
	TranslateCalls []TranslateCall

	// DetectCalls records every call to DetectLanguage in order.
	DetectCalls []DetectCall

	// ContextCalls records every call to TranslateWithContext in order.
	ContextCalls []ContextCall
}

// Translate records the call and returns TranslateResult, TranslateErr.
func (p *Provider) Translate(ctx context.Context, req mt.Request) (*mt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranslateCalls = append(p.TranslateCalls, TranslateCall{Ctx: ctx, Req: req})
	if p.TranslateErr != nil {
		return nil, p.TranslateErr
	}
	return p.result(req), nil
}

// TranslateWithContext records the call and returns TranslateResult,
// TranslateWithContextErr.
func (p *Provider) TranslateWithContext(ctx context.Context, req mt.Request, history []mt.Turn) (*mt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	historyCopy := make([]mt.Turn, len(history))
	copy(historyCopy, history)
	p.ContextCalls = append(p.ContextCalls, ContextCall{Ctx: ctx, Req: req, History: historyCopy})
	if p.TranslateWithContextErr != nil {
		return nil, p.TranslateWithContextErr
	}
	return p.result(req), nil
}

// DetectLanguage records the call and returns DetectResult, DetectErr.
func (p *Provider) DetectLanguage(ctx context.Context, text string) (*mt.Detection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DetectCalls = append(p.DetectCalls, DetectCall{Ctx: ctx, Text: text})
	if p.DetectErr != nil {
		return nil, p.DetectErr
	}
	if p.DetectResult == nil {
		return &mt.Detection{Language: "en"}, nil
	}
	cp := *p.DetectResult
	return &cp, nil
}

// result must be called with p.mu held.
func (p *Provider) result(req mt.Request) *mt.Result {
	if p.TranslateResult == nil {
		return &mt.Result{
			OriginalText:   req.Text,
			TranslatedText: req.Text,
			SourceLanguage: req.SourceLanguage,
			TargetLanguage: req.TargetLanguage,
		}
	}
	cp := *p.TranslateResult
	if cp.OriginalText == "" {
		cp.OriginalText = req.Text
	}
	if cp.SourceLanguage == "" {
		cp.SourceLanguage = req.SourceLanguage
	}
	if cp.TargetLanguage == "" {
		cp.TargetLanguage = req.TargetLanguage
	}
	return &cp
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranslateCalls = nil
	p.DetectCalls = nil
	p.ContextCalls = nil
}

// Compile-time interface assertions.
var (
	_ mt.Provider          = (*Provider)(nil)
	_ mt.ContextTranslator = (*Provider)(nil)
)
