package auth

import (
	"context"
	"errors"
	"testing"
)

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier(map[string]string{"tok-alice": "alice"})

	user, err := v.Verify(context.Background(), "tok-alice")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user != "alice" {
		t.Errorf("user = %q, want alice", user)
	}

	if _, err := v.Verify(context.Background(), "tok-nobody"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(unknown) error = %v, want ErrInvalidToken", err)
	}
}

func TestStaticVerifier_Swap(t *testing.T) {
	v := NewStaticVerifier(map[string]string{"tok-old": "alice"})

	v.Swap(map[string]string{"tok-new": "alice"})

	if _, err := v.Verify(context.Background(), "tok-old"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(rotated-out token) error = %v, want ErrInvalidToken", err)
	}
	user, err := v.Verify(context.Background(), "tok-new")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user != "alice" {
		t.Errorf("user = %q, want alice", user)
	}
}

func TestHMACVerifier_RoundTrip(t *testing.T) {
	v, err := NewHMACVerifier([]byte("s3cret"))
	if err != nil {
		t.Fatalf("NewHMACVerifier() error = %v", err)
	}

	token := v.Token("alice")
	user, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user != "alice" {
		t.Errorf("user = %q, want alice", user)
	}
}

func TestHMACVerifier_RejectsTampering(t *testing.T) {
	v, err := NewHMACVerifier([]byte("s3cret"))
	if err != nil {
		t.Fatalf("NewHMACVerifier() error = %v", err)
	}

	// A token minted for alice must not authenticate bob.
	_, sig, _ := splitToken(v.Token("alice"))
	for _, token := range []string{
		"bob:" + sig,
		"alice",
		"alice:",
		":deadbeef",
		"",
	} {
		if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestHMACVerifier_DifferentSecretsDisagree(t *testing.T) {
	a, _ := NewHMACVerifier([]byte("secret-a"))
	b, _ := NewHMACVerifier([]byte("secret-b"))

	if _, err := b.Verify(context.Background(), a.Token("alice")); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestNewHMACVerifier_EmptySecret(t *testing.T) {
	if _, err := NewHMACVerifier(nil); err == nil {
		t.Error("NewHMACVerifier(nil) error = nil, want error")
	}
}

func splitToken(token string) (user, sig string, ok bool) {
	for i := 0; i < len(token); i++ {
		if token[i] == ':' {
			return token[:i], token[i+1:], true
		}
	}
	return token, "", false
}
