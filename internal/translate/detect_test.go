package translate

import (
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestHeuristicDetect(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantLang string
	}{
		{"spanish", "el perro está en la casa por favor", "es"},
		{"portuguese", "olá você não obrigado por favor", "pt"},
		{"french", "bonjour merci pour le café", "fr"},
		{"german", "der die das ist und nicht", "de"},
		{"italian", "ciao grazie per il caffè", "it"},
		{"english", "the cat is on the mat and you know it", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lang, conf := heuristicDetect(tt.text)
			if lang != tt.wantLang {
				t.Errorf("heuristicDetect(%q) = %q, want %q", tt.text, lang, tt.wantLang)
			}
			if conf <= heuristicFloor || conf > heuristicCap {
				t.Errorf("confidence = %v, want in (%v, %v]", conf, heuristicFloor, heuristicCap)
			}
		})
	}
}

func TestHeuristicDetect_NoMatchDefaults(t *testing.T) {
	for _, text := range []string{"", "   ", "qwrt zxcv bnmp"} {
		lang, conf := heuristicDetect(text)
		if lang != "en" {
			t.Errorf("heuristicDetect(%q) = %q, want en", text, lang)
		}
		if !almostEqual(conf, heuristicFloor) {
			t.Errorf("confidence for %q = %v, want %v", text, conf, heuristicFloor)
		}
	}
}

func TestHeuristicDetect_ConfidenceGrowsWithHits(t *testing.T) {
	_, one := heuristicDetect("gracias")
	_, three := heuristicDetect("hola gracias por")
	if !almostEqual(one, heuristicFloor+heuristicStep) {
		t.Errorf("single hit confidence = %v, want %v", one, heuristicFloor+heuristicStep)
	}
	if three <= one {
		t.Errorf("three hits (%v) should score above one hit (%v)", three, one)
	}
}

func TestHeuristicDetect_ConfidenceIsCapped(t *testing.T) {
	// Far more hits than the cap allows for.
	text := strings.Repeat("hola gracias por para pero como ", 3)
	lang, conf := heuristicDetect(text)
	if lang != "es" {
		t.Fatalf("lang = %q, want es", lang)
	}
	if !almostEqual(conf, heuristicCap) {
		t.Errorf("confidence = %v, want capped at %v", conf, heuristicCap)
	}
}

func TestHeuristicDetect_NearMatch(t *testing.T) {
	// "graciass" is not an exact marker but sits within Jaro-Winkler reach
	// of "gracias".
	lang, conf := heuristicDetect("graciass")
	if lang != "es" {
		t.Errorf("lang = %q, want es (near match)", lang)
	}
	if !almostEqual(conf, heuristicFloor+heuristicStep) {
		t.Errorf("confidence = %v, want %v", conf, heuristicFloor+heuristicStep)
	}
}

func TestHeuristicDetect_PunctuationTrimmed(t *testing.T) {
	lang, _ := heuristicDetect("¡Hola! ¿Gracias?")
	if lang != "es" {
		t.Errorf("lang = %q, want es", lang)
	}
}
