package mt

import "time"

// Request carries one text to translate.
type Request struct {
	// Text is the input in its original language.
	Text string

	// SourceLanguage is the input's language as a short code. Empty asks the
	// backend to detect it.
	SourceLanguage string

	// TargetLanguage is the requested output language as a short code.
	TargetLanguage string
}

// Result is one completed translation.
type Result struct {
	// OriginalText echoes the input.
	OriginalText string

	// TranslatedText is the rendered output.
	TranslatedText string

	// SourceLanguage is the language the backend translated from (detected
	// when the request left it empty).
	SourceLanguage string

	// TargetLanguage echoes the requested output language.
	TargetLanguage string

	// ProcessingTime is the backend-reported time spent translating, when the
	// backend reports one.
	ProcessingTime time.Duration
}

// Detection is the outcome of language identification.
type Detection struct {
	// Language is the detected short code.
	Language string
}

// Turn is one prior conversation message supplied as translation context.
type Turn struct {
	// FromSender is true when the turn was written by the same participant as
	// the text being translated.
	FromSender bool

	// Text is the turn's content, preferably in its original language.
	Text string
}
