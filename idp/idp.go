// Package idp is the Identity Provider Registry (spec §4.7): a map from
// provider-type string to a Provider interface value for each OAuth-based
// provider Talos can delegate to, generalizing the
// teacher's ConnectorsConfig map[string]func() ConnectorConfig pattern
// from server/server.go down to the operations a RelMeAuth round trip
// needs — build a login URL, redeem the resulting code for an access
// token, then verify that token belongs to the username discovered via
// rel="me" and (best-effort) that the upstream profile links back home.
package idp

import (
	"context"
	"fmt"
)

// VerifyResult is the outcome of Verify: either a confirmed match between
// the upstream account and the expected username, or a failure reason.
type VerifyResult struct {
	Success            bool
	Username           string
	ProfileURL         string
	DisplayName        string
	AvatarURL          string
	ReciprocalVerified bool
	Error              string
}

// Provider is the interface every identity provider implementation
// satisfies.
type Provider interface {
	// Type returns the registry key this provider was constructed under.
	Type() string
	// MatchesProfileURL reports whether profileURL is a profile this
	// provider type could have issued (e.g. a github.com/<user> URL for
	// the github provider) and, if so, the username it names.
	MatchesProfileURL(profileURL string) (username string, ok bool)
	// BuildAuthorizationURL forms the upstream OAuth GET URL, bound to the
	// given opaque state value and redirect URI.
	BuildAuthorizationURL(state, redirectURI string) string
	// ExchangeCode trades an authorization code the provider's callback
	// handed back for an upstream access token.
	ExchangeCode(ctx context.Context, code, redirectURI string) (accessToken string, err error)
	// Verify fetches the upstream profile for accessToken, confirms its
	// username matches expectedUsername (case-insensitive), and checks
	// whether the profile's public website/bio fields reference
	// userWebsiteURL.
	Verify(ctx context.Context, accessToken, expectedUsername, userWebsiteURL string) (VerifyResult, error)
}

// Config is the per-provider-type configuration loaded from Talos's own
// config file, keyed the same way ConnectorsConfig keys connector
// configs.
type Config struct {
	ClientID     string `json:"clientID"`
	ClientSecret string `json:"clientSecret"`
}

// Factory builds a Provider from its configuration. Registry maps
// provider-type strings to factories, mirroring
// server.ConnectorsConfig's map[string]func() ConnectorConfig shape.
type Factory func(cfg Config) (Provider, error)

// Registry is the set of identity providers Talos knows how to delegate
// to; registration is closed at startup (spec §4.7).
var Registry = map[string]Factory{
	"github": NewGitHub,
	"gitlab": NewGitLab,
}

// Build constructs every configured provider, failing on the first
// configuration error or the first type not found in Registry.
func Build(configs map[string]Config) (map[string]Provider, error) {
	providers := make(map[string]Provider, len(configs))
	for kind, cfg := range configs {
		factory, ok := Registry[kind]
		if !ok {
			return nil, fmt.Errorf("idp: unknown provider type %q", kind)
		}
		p, err := factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("idp: configuring %q: %w", kind, err)
		}
		providers[kind] = p
	}
	return providers, nil
}

// MatchProfileURL runs profileURL against every configured provider and
// returns the first (providerType, username) match, used by Profile
// Discovery when a rel="me" link itself names a registered provider (spec
// §4.5).
func MatchProfileURL(providers map[string]Provider, profileURL string) (providerType, username string, ok bool) {
	for kind, p := range providers {
		if u, matched := p.MatchesProfileURL(profileURL); matched {
			return kind, u, true
		}
	}
	return "", "", false
}

// GetProvider looks up a provider by its registry key.
func GetProvider(providers map[string]Provider, providerType string) (Provider, bool) {
	p, ok := providers[providerType]
	return p, ok
}
