package translate

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"en", "en"},
		{"es", "es"},
		{" fr ", "fr"},
		{"pt-BR", "pt"},
		{"PT-PT", "pt"},
		{"zh-TW", "zh"},
		{"zh-cn", "zh"},
		{"en-US", "en"},
		{"Portuguese", "pt"},
		{"ENGLISH", "en"},
		{"german", "de"},
		{"xx", "en"},
		{"klingon", "en"},
		{"", "en"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.code); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestEmojiOnly(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"👍", true},
		{"👍🏼", true},
		{"🔥 🔥", true},
		{"❤️", true},
		{"🇧🇷", true},
		{"⭐", true},
		{"🎉🎊🎈", true},
		{"hello 👍", false},
		{"👍 ok", false},
		{"123", false},
		{"!!!", false},
		{":-)", false},
		{"", false},
		{"   ", false},
		{"olá", false},
	}
	for _, tt := range tests {
		if got := EmojiOnly(tt.text); got != tt.want {
			t.Errorf("EmojiOnly(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
