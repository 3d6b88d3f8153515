// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (e.g. a local Whisper server)
// behind a one-shot interface: the voice pipeline hands over one complete
// utterance buffer and receives the transcribed text plus the detected
// language. Wordwire aggregates microphone fragments into utterances before
// transcription, so no streaming session state is needed here.
//
// Implementations must be safe for concurrent use; multiple utterances may be
// transcribed in parallel (one per active conversation).
package stt

import "context"

// Provider is the abstraction over any STT backend.
//
// Backends with a reachable health endpoint expose a concrete
// Healthy(ctx) error method alongside this interface; readiness probes are
// wired from the concrete type, not through the interface.
type Provider interface {
	// Transcribe submits one complete utterance and returns its transcript.
	// An empty Transcript.Text is a valid result meaning the audio contained
	// no recognizable speech; it must not be reported as an error.
	//
	// Returns an error only when the backend could not process the request at
	// all (unreachable, non-2xx, malformed response, ctx cancelled).
	Transcribe(ctx context.Context, req Request) (*Transcript, error)
}
