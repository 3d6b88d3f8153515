package tts

// Request carries one text to synthesize.
type Request struct {
	// Text is the content to speak.
	Text string

	// Language is the short language code the text is in (e.g. "pt"). The
	// backend maps it onto its supported voices; unknown codes fall back to
	// the backend's default.
	Language string

	// SpeakerWAV optionally names a reference sample, resolvable by the
	// backend, whose voice the synthesis should imitate. Empty uses the
	// backend's default speaker.
	SpeakerWAV string

	// Speed adjusts the speaking rate (1.0 = native pace). Zero means "use
	// the backend default".
	Speed float64
}
