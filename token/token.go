// Package token issues and verifies the bearer access tokens Talos hands
// out at the token endpoint (spec §4.8), adapting the claims/signing
// shape of AINative-Studio-ainative-code's internal/auth/jwt package but
// with HS256 and a single shared secret in place of that example's
// RS256/keypair signing, since Talos has no JWKS endpoint to publish a
// public key from.
package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const SigningMethod = "HS256"

// Claims is the payload of a Talos access token.
type Claims struct {
	jwt.RegisteredClaims
	ProfileURL string   `json:"me"`
	ClientID   string   `json:"client_id"`
	Scopes     []string `json:"scope_list,omitempty"`
}

// Service issues and validates access tokens signed with a single shared
// secret.
type Service struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
}

// NewService constructs a token Service. issuer is the authorization
// server's own URL, used as both iss and aud (Talos access tokens are not
// intended for any other audience).
func NewService(secret []byte, issuer string, lifetime time.Duration) *Service {
	return &Service{secret: secret, issuer: issuer, lifetime: lifetime}
}

// GenerateAccessToken returns a signed, short-lived access token scoped to
// profileURL/clientID/scopes.
func (s *Service) GenerateAccessToken(profileURL, clientID string, scopes []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.lifetime)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   profileURL,
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		ProfileURL: profileURL,
		ClientID:   clientID,
		Scopes:     scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken parses and verifies tokenString, checking signature,
// expiry, issuer, and audience.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != SigningMethod {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithLeeway(60*time.Second))
	if err != nil {
		return nil, fmt.Errorf("token: parse: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token: invalid")
	}
	if claims.Issuer != s.issuer {
		return nil, fmt.Errorf("token: unexpected issuer %q", claims.Issuer)
	}

	expectedAudience := false
	for _, aud := range claims.Audience {
		if aud == s.issuer {
			expectedAudience = true
			break
		}
	}
	if !expectedAudience {
		return nil, fmt.Errorf("token: unexpected audience %v", claims.Audience)
	}

	return claims, nil
}

// HasScope reports whether scopes (as stored on a Claims or a
// storage.AuthorizationCode/RefreshToken) contains scope.
func HasScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// JoinScopes renders a scope slice as the space-separated string the
// token/introspection response bodies use (spec §4.8, §4.10).
func JoinScopes(scopes []string) string { return strings.Join(scopes, " ") }

// SplitScopes parses a space-separated scope parameter into a slice,
// dropping empty entries from repeated whitespace.
func SplitScopes(raw string) []string {
	fields := strings.Fields(raw)
	return fields
}
