// Package auth resolves opaque connection tokens to user IDs.
//
// Two verifiers are provided: [StaticVerifier] for fixed token tables
// (development, tests) and [HMACVerifier] for self-describing signed tokens
// that need no shared state between issuer and gateway.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
)

// ErrInvalidToken is returned for tokens that are unknown, malformed, or
// carry a bad signature. Callers should not distinguish further; the reason
// is deliberately not reported to the client.
var ErrInvalidToken = errors.New("auth: invalid token")

// Verifier resolves a token presented on a new connection to the user it
// authenticates.
type Verifier interface {
	// Verify returns the user ID the token belongs to, or ErrInvalidToken.
	Verify(ctx context.Context, token string) (string, error)
}

// StaticVerifier authenticates against a token→user table. The table can be
// swapped at runtime, so a config reload rotates tokens without dropping
// established connections.
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]string
}

var _ Verifier = (*StaticVerifier)(nil)

// NewStaticVerifier copies the given token→userID table.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	v := &StaticVerifier{}
	v.Swap(tokens)
	return v
}

// Swap replaces the whole token table. Tokens absent from the new table stop
// verifying immediately; connections already authenticated are unaffected.
func (v *StaticVerifier) Swap(tokens map[string]string) {
	m := make(map[string]string, len(tokens))
	for tok, user := range tokens {
		m[tok] = user
	}
	v.mu.Lock()
	v.tokens = m
	v.mu.Unlock()
}

// Verify looks the token up in the table.
func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	v.mu.RLock()
	user, ok := v.tokens[token]
	v.mu.RUnlock()
	if !ok || user == "" {
		return "", ErrInvalidToken
	}
	return user, nil
}

// HMACVerifier authenticates tokens of the form "userID:signature", where
// signature is hex(HMAC-SHA256(secret, userID)). Tokens carry their own
// identity, so the gateway needs no user table.
type HMACVerifier struct {
	secret []byte
}

var _ Verifier = (*HMACVerifier)(nil)

// NewHMACVerifier creates a verifier for the given shared secret. secret must
// be non-empty.
func NewHMACVerifier(secret []byte) (*HMACVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: secret must not be empty")
	}
	return &HMACVerifier{secret: secret}, nil
}

// Token mints a signed token for userID. The issuer side of Verify.
func (v *HMACVerifier) Token(userID string) string {
	return userID + ":" + v.sign(userID)
}

// Verify checks the token's signature and returns the user ID it names.
func (v *HMACVerifier) Verify(_ context.Context, token string) (string, error) {
	userID, sig, ok := strings.Cut(token, ":")
	if !ok || userID == "" {
		return "", ErrInvalidToken
	}
	want := v.sign(userID)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return "", ErrInvalidToken
	}
	return userID, nil
}

func (v *HMACVerifier) sign(userID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}
