package stt

import "time"

// Request carries one utterance to transcribe.
type Request struct {
	// Audio is the complete utterance as recorded, in whatever container the
	// client produced (webm/ogg/wav). The backend handles decoding; Wordwire
	// never transcodes.
	Audio []byte

	// Filename hints the container format to the backend via the upload's file
	// name (e.g. "utterance.webm"). Optional; defaults to "utterance.webm".
	Filename string

	// Language optionally pins the spoken language (short code, e.g. "en").
	// Empty lets the backend auto-detect.
	Language string
}

// Transcript represents a speech-to-text result.
type Transcript struct {
	// Text is the transcribed speech content. Empty means the audio contained
	// no recognizable speech.
	Text string

	// Language is the language the backend detected (or was pinned to).
	Language string

	// Segments contains per-segment timing detail when the backend reports it.
	// May be nil.
	Segments []Segment
}

// Segment is one timed slice of a transcript.
type Segment struct {
	// Text is the segment's transcribed content.
	Text string

	// Start and End bound the segment within the utterance.
	Start time.Duration
	End   time.Duration
}
