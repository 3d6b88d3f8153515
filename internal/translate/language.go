package translate

import (
	"strings"
	"unicode"
)

// languageAliases maps regional variants and English language names to the
// short codes the translation backends expect. Short codes already in
// canonical form map to themselves.
var languageAliases = map[string]string{
	"en": "en", "es": "es", "fr": "fr", "de": "de", "it": "it", "pt": "pt",
	"ru": "ru", "zh": "zh", "ja": "ja", "ko": "ko", "ar": "ar", "hi": "hi",
	"tr": "tr", "nl": "nl", "pl": "pl", "sv": "sv", "da": "da", "no": "no",
	"fi": "fi", "cs": "cs", "hu": "hu", "ro": "ro", "bg": "bg", "hr": "hr",
	"sk": "sk", "sl": "sl", "et": "et", "lv": "lv", "lt": "lt", "mt": "mt",
	"ga": "ga", "cy": "cy", "eu": "eu", "ca": "ca", "gl": "gl", "is": "is",
	"mk": "mk", "sq": "sq", "sr": "sr", "bs": "bs", "lb": "lb",

	// Regional variants collapse to their base language.
	"pt-br": "pt",
	"pt-pt": "pt",
	"zh-cn": "zh",
	"zh-tw": "zh",
	"en-us": "en",
	"en-gb": "en",
	"es-mx": "es",
	"es-es": "es",
	"fr-fr": "fr",
	"fr-ca": "fr",
	"de-de": "de",

	// English names, as submitted by older clients.
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"chinese":    "zh",
	"japanese":   "ja",
	"korean":     "ko",
	"arabic":     "ar",
	"hindi":      "hi",
	"turkish":    "tr",
	"dutch":      "nl",
	"polish":     "pl",
}

// Normalize maps a language code or name to the canonical short code used on
// every external call. Matching is case-insensitive; unknown codes (and the
// empty string) normalize to "en".
func Normalize(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if mapped, ok := languageAliases[c]; ok {
		return mapped
	}
	return "en"
}

// emojiRanges covers the Unicode blocks treated as emoji for the emoji-only
// check. Arrows and stars from Miscellaneous Symbols and Arrows are included
// because chat clients send them as emoji.
var emojiRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2600, Hi: 0x27BF, Stride: 1}, // misc symbols, dingbats
		{Lo: 0x2B00, Hi: 0x2BFF, Stride: 1}, // misc symbols and arrows
	},
	R32: []unicode.Range32{
		{Lo: 0x1F1E6, Hi: 0x1F1FF, Stride: 1}, // regional indicators (flags)
		{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1}, // pictographs
		{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1}, // emoticons
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1}, // transport and map
		{Lo: 0x1F900, Hi: 0x1F9FF, Stride: 1}, // supplemental pictographs
		{Lo: 0x1FA70, Hi: 0x1FAFF, Stride: 1}, // pictographs extended-A
	},
}

// EmojiOnly reports whether text contains no letters, digits, or punctuation
// but at least one symbol in the emoji ranges. Whitespace, joiners, and
// variation selectors are neutral: they neither qualify nor disqualify.
func EmojiOnly(text string) bool {
	sawEmoji := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			continue
		case unicode.Is(emojiRanges, r):
			sawEmoji = true
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r):
			return false
		}
	}
	return sawEmoji
}
