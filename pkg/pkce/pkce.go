// Package pkce implements RFC 7636 Proof Key for Code Exchange, restricted
// to the S256 transform per IndieAuth requirements. "plain" is never
// accepted.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"regexp"
)

const MethodS256 = "S256"

var verifierAlphabet = regexp.MustCompile(`^[A-Za-z0-9\-._~]+$`)

// GenerateVerifier returns a new code verifier: 32 cryptographically random
// bytes, base64url-encoded without padding (43 characters).
func GenerateVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ComputeChallengeS256 computes base64url(sha256(ascii(verifier))) with no
// padding.
func ComputeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Verify reports whether verifier is well-formed (length 43-128, restricted
// alphabet) and, under method "S256", whether its computed challenge
// matches challenge via a constant-time comparison. Any method other than
// "S256" is rejected unconditionally.
func Verify(verifier, challenge, method string) bool {
	if method != MethodS256 {
		return false
	}
	if len(verifier) < 43 || len(verifier) > 128 {
		return false
	}
	if !verifierAlphabet.MatchString(verifier) {
		return false
	}
	computed := ComputeChallengeS256(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
