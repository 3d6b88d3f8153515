// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech-synthesis service (e.g. a local Coqui XTTS
// server) behind a one-shot interface: one text in, one complete audio buffer
// out. Wordwire delivers whole translated utterances to listeners rather than
// streaming partial audio, so no streaming session state is needed here.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Backends with a reachable health endpoint expose a concrete
// Healthy(ctx) error method alongside this interface; readiness probes are
// wired from the concrete type, not through the interface.
type Provider interface {
	// Synthesize renders req.Text as speech and returns the full audio buffer
	// (a RIFF/WAVE container). Returns an error when the backend could not
	// produce audio; callers degrade to a documented fallback rather than
	// failing the surrounding operation.
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
