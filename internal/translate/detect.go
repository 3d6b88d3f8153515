package translate

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// heuristicCap is the highest confidence the marker-word fallback may
	// claim; only the external detector can score above it.
	heuristicCap = 0.8

	// heuristicFloor is reported when the text matches no language at all.
	heuristicFloor = 0.5

	// heuristicStep is added per marker hit on top of the floor.
	heuristicStep = 0.05

	// nearMatchThreshold is the Jaro-Winkler similarity at which a token is
	// accepted as a misspelled marker word.
	nearMatchThreshold = 0.88
)

// markerLanguages lists the candidate languages in tie-breaking order: with
// equal scores the earlier entry wins, so the default language leads.
var markerLanguages = []string{"en", "es", "pt", "fr", "de", "it"}

// markerWords holds a fixed set of high-frequency words per candidate
// language. The scorer counts token hits per language; shared words (es/pt
// "por", es/fr/it "la") cancel out across the texts they co-occur in.
var markerWords = map[string][]string{
	"en": {"the", "and", "is", "are", "you", "for", "with", "have", "this", "that", "what", "not", "hello", "thanks"},
	"es": {"el", "la", "los", "las", "es", "que", "por", "con", "para", "pero", "como", "hola", "gracias", "está", "muy"},
	"pt": {"o", "os", "as", "é", "que", "não", "por", "com", "para", "mas", "como", "olá", "obrigado", "você", "muito"},
	"fr": {"le", "la", "les", "est", "que", "pour", "avec", "mais", "comme", "bonjour", "merci", "vous", "pas", "très"},
	"de": {"der", "die", "das", "ist", "und", "nicht", "mit", "für", "aber", "wie", "hallo", "danke", "ich", "sehr"},
	"it": {"il", "lo", "gli", "le", "è", "che", "per", "con", "ma", "come", "ciao", "grazie", "non", "sono", "molto"},
}

// heuristicDetect guesses the language of text by counting marker-word
// occurrences per candidate language. Tokens that miss every exact marker are
// retried with Jaro-Winkler near-matching so small misspellings still count.
// The winning language's confidence grows with its hit count but never
// exceeds the heuristic cap; when nothing matches, the default language is
// reported at the floor confidence.
func heuristicDetect(text string) (language string, confidence float64) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return markerLanguages[0], heuristicFloor
	}

	scores := make(map[string]int, len(markerLanguages))
	for _, token := range tokens {
		for _, lang := range markerLanguages {
			if markerHit(token, markerWords[lang]) {
				scores[lang]++
			}
		}
	}

	best := markerLanguages[0]
	for _, lang := range markerLanguages[1:] {
		if scores[lang] > scores[best] {
			best = lang
		}
	}
	if scores[best] == 0 {
		return markerLanguages[0], heuristicFloor
	}

	confidence = heuristicFloor + heuristicStep*float64(scores[best])
	if confidence > heuristicCap {
		confidence = heuristicCap
	}
	return best, confidence
}

// markerHit reports whether token matches any marker exactly or by
// Jaro-Winkler similarity above the near-match threshold.
func markerHit(token string, markers []string) bool {
	for _, m := range markers {
		if token == m {
			return true
		}
	}
	for _, m := range markers {
		if matchr.JaroWinkler(token, m, false) >= nearMatchThreshold {
			return true
		}
	}
	return false
}

// tokenize lowercases text and splits it into words, trimming surrounding
// punctuation so "gracias!" still hits the marker list.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := fields[:0]
	for _, f := range fields {
		t := strings.Trim(f, ".,;:!?¡¿\"'()[]{}")
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
