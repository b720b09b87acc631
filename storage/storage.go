// Package storage defines the three repository contracts the Authorization
// Engine depends on (PendingAuthentication, AuthorizationCode, RefreshToken)
// and the plain record types they store. Implementations live in
// subpackages (storage/memory, storage/sql, per the teacher's layout).
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/myquay/talos/pkg/crypto"
)

// ErrNotFound is returned by repository Get/Update methods when no record
// matches the given key. Only the PendingAuthentication reads (Get,
// GetByProviderState) also return it for a record that exists but has
// expired; authorization-code and refresh-token reads and all Update
// methods return expired records as stored, leaving the expiry check to
// the caller.
var ErrNotFound = errors.New("storage: not found")

// ErrAlreadyExists is returned by Create when the ID is already taken.
var ErrAlreadyExists = errors.New("storage: already exists")

// newOpaqueID returns a URL-safe, unpadded base64 string encoding n random
// bytes, built on the teacher's crypto/rand-based ID generation
// (pkg/crypto.RandBytes) but parameterized on byte length so each
// identifier in the data model can satisfy its own entropy floor (§3):
// sessions ≥128 bits, codes ≥192 bits, refresh tokens ≥256 bits.
func newOpaqueID(nBytes int) string {
	buf, err := crypto.RandBytes(nBytes)
	if err != nil {
		panic(err) // crypto/rand failing is a programmer/host error, not recoverable
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// NewSessionID returns an opaque identifier with at least 128 bits of
// entropy, suitable for PendingAuthentication.SessionID.
func NewSessionID() string { return newOpaqueID(16) }

// NewProviderState returns an opaque, session-bound state value for the
// upstream provider OAuth round trip.
func NewProviderState() string { return newOpaqueID(16) }

// NewAuthorizationCode returns an opaque identifier with at least 192 bits
// of entropy, suitable for AuthorizationCode.Code.
func NewAuthorizationCode() string { return newOpaqueID(24) }

// NewRefreshTokenValue returns an opaque identifier with at least 256 bits
// of entropy, suitable for RefreshToken.Token.
func NewRefreshTokenValue() string { return newOpaqueID(32) }

// DiscoveredProvider is one identity-provider match surfaced during
// Profile Discovery (spec §4.5).
type DiscoveredProvider struct {
	ProviderType string `json:"provider_type"`
	ProfileURL   string `json:"profile_url"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	IconURL      string `json:"icon_url,omitempty"`
}

// PendingAuthentication is the ephemeral session spanning a single
// IndieAuth flow (spec §3).
type PendingAuthentication struct {
	SessionID string

	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Scopes              []string
	ProfileURL          string

	DiscoveredProviders  []DiscoveredProvider
	SelectedProviderType string
	ProviderState        string

	ClientName    string
	ClientLogoURI string

	IsAuthenticated bool
	IsConsentGiven  bool

	CreatedAt time.Time
	ExpiresAt time.Time
}

// AuthorizationCode is a single-use credential binding a client, redirect,
// profile, and scope set (spec §3).
type AuthorizationCode struct {
	Code string

	ClientID            string
	RedirectURI         string
	ProfileURL          string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string

	CreatedAt time.Time
	ExpiresAt time.Time
	IsUsed    bool
}

// RefreshToken is a long-lived, opaque, per-client-per-profile credential
// (spec §3).
type RefreshToken struct {
	Token string

	ProfileURL string
	ClientID   string
	Scopes     []string

	CreatedAt time.Time
	ExpiresAt time.Time
	IsRevoked bool
	RevokedAt time.Time
}

// ClientInfo is the transient client-metadata snapshot produced by Client
// Discovery (spec §3); it is not persisted apart from the ClientName/
// ClientLogoURI fields copied onto a PendingAuthentication.
type ClientInfo struct {
	ClientID     string
	ClientName   string
	ClientURI    string
	LogoURI      string
	RedirectURIs []string
	WasFetched   bool
}

// PendingAuthenticationRepo is the repository contract for
// PendingAuthentication records (spec §4.11).
type PendingAuthenticationRepo interface {
	Create(ctx context.Context, p PendingAuthentication) error
	Get(ctx context.Context, sessionID string) (PendingAuthentication, error)
	GetByProviderState(ctx context.Context, providerState string) (PendingAuthentication, error)
	Update(ctx context.Context, sessionID string, updater func(PendingAuthentication) (PendingAuthentication, error)) error
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuthorizationCodeRepo is the repository contract for AuthorizationCode
// records (spec §4.11).
type AuthorizationCodeRepo interface {
	Create(ctx context.Context, c AuthorizationCode) error
	Get(ctx context.Context, code string) (AuthorizationCode, error)
	// Update must run the full read-modify-write atomically; redeemCode
	// (spec §4.9.5) relies on this to make check-and-mark-used atomic.
	Update(ctx context.Context, code string, updater func(AuthorizationCode) (AuthorizationCode, error)) error
	Delete(ctx context.Context, code string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RefreshTokenRepo is the repository contract for RefreshToken records
// (spec §4.11).
type RefreshTokenRepo interface {
	Create(ctx context.Context, t RefreshToken) error
	Get(ctx context.Context, token string) (RefreshToken, error)
	Update(ctx context.Context, token string, updater func(RefreshToken) (RefreshToken, error)) error
	Delete(ctx context.Context, token string) error
	// RevokeAllForProfile marks every non-revoked refresh token bound to
	// profileURL as revoked; used defensively when an authorization code
	// is redeemed a second time (spec §3, AuthorizationCode invariant).
	RevokeAllForProfile(ctx context.Context, profileURL string) error
	// RotateRefreshToken atomically revokes oldToken and inserts next in a
	// single repository transaction, so a crash between the two halves of
	// rotation can never leave a client with neither a valid old token nor
	// a persisted new one (spec §3, §4.9.8, §5). Returns ErrNotFound if
	// oldToken doesn't exist or is already revoked.
	RotateRefreshToken(ctx context.Context, oldToken string, next RefreshToken) error
	// DeleteExpired removes tokens past expiry, but retains revoked
	// tokens for retainRevoked after revocation for audit (spec §4.9.11).
	DeleteExpired(ctx context.Context, now time.Time, retainRevoked time.Duration) (int64, error)
}

// Store bundles the three repositories a concrete backend provides, plus
// lifecycle management. Constructors in storage/memory and storage/sql
// return a *Store; the Authorization Engine takes the three repo fields
// individually (explicit constructor wiring, spec §9), not this type.
type Store struct {
	PendingAuthentications PendingAuthenticationRepo
	AuthorizationCodes     AuthorizationCodeRepo
	RefreshTokens          RefreshTokenRepo
	Closer                 func() error
	Pinger                 func(ctx context.Context) error
}

func (s *Store) Close() error {
	if s.Closer == nil {
		return nil
	}
	return s.Closer()
}

// Ping reports whether the backing storage is reachable, used by the
// process health check. Backends that have nothing to dial (the memory
// store) report healthy unconditionally.
func (s *Store) Ping(ctx context.Context) error {
	if s.Pinger == nil {
		return nil
	}
	return s.Pinger(ctx)
}
