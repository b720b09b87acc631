package main

import (
	"fmt"

	"github.com/myquay/talos/idp"
)

// Config is Talos's config file format, grounded on the teacher's
// cmd/dex/config.go top-level Config shape but trimmed to the
// single-process, single-storage-backend scope Talos needs.
type Config struct {
	Issuer string `json:"issuer"`

	Storage   Storage               `json:"storage"`
	Web       Web                   `json:"web"`
	Logger    Logger                `json:"logger"`
	Token     TokenConfig           `json:"token"`
	Identity  IdentityConfig        `json:"identity"`
	Limits    LimitsConfig          `json:"limits"`
	Expiry    Expiry                `json:"expiry"`
	Providers map[string]idp.Config `json:"providers"`
}

// Expiry holds the operator-configurable lifetimes named in spec.md §6's
// configuration table.
type Expiry struct {
	// AuthCodeTTLMinutes is how long an authorization code stays redeemable.
	// Default 10.
	AuthCodeTTLMinutes int `json:"authCodeTtlMinutes"`
	// PendingAuthTTLMinutes is how long an in-progress authorization
	// session (awaiting provider callback/consent) stays alive. Default 30.
	PendingAuthTTLMinutes int `json:"pendingAuthTtlMinutes"`
	// RefreshTokenTTLDays is how long a refresh token remains usable before
	// it must be re-authorized from scratch. Default 30.
	RefreshTokenTTLDays int `json:"refreshTokenTtlDays"`
}

const (
	defaultAuthCodeTTLMinutes    = 10
	defaultPendingAuthTTLMinutes = 30
	defaultRefreshTokenTTLDays   = 30
)

// WithDefaults returns e with any zero-valued field filled in from
// spec.md §6's defaults.
func (e Expiry) WithDefaults() Expiry {
	if e.AuthCodeTTLMinutes == 0 {
		e.AuthCodeTTLMinutes = defaultAuthCodeTTLMinutes
	}
	if e.PendingAuthTTLMinutes == 0 {
		e.PendingAuthTTLMinutes = defaultPendingAuthTTLMinutes
	}
	if e.RefreshTokenTTLDays == 0 {
		e.RefreshTokenTTLDays = defaultRefreshTokenTTLDays
	}
	return e
}

type Storage struct {
	// Type is "memory" or "sqlite".
	Type string `json:"type"`
	File string `json:"file"`
}

type Web struct {
	HTTPAddr string `json:"http"`
}

type Logger struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type TokenConfig struct {
	// Secret is the HS256 signing secret, base64 or raw; must be at least
	// 32 bytes once decoded (spec §4.8).
	Secret              string `json:"secret"`
	AccessTokenLifetime string `json:"accessTokenLifetime"`
	IntrospectionSecret string `json:"introspectionSecret"`
}

type IdentityConfig struct {
	AllowedProfileHosts []string `json:"allowedProfileHosts"`
}

type LimitsConfig struct {
	AllowedOrigins []string `json:"allowedOrigins"`
}

// Validate checks the fast, cheap-to-detect configuration mistakes,
// grounded on the teacher's Config.Validate "fast checks" table in
// cmd/dex/config.go.
func (c Config) Validate() error {
	checks := []struct {
		bad    bool
		errMsg string
	}{
		{c.Issuer == "", "no issuer specified in config file"},
		{c.Storage.Type == "", "no storage type specified in config file"},
		{c.Storage.Type != "memory" && c.Storage.Type != "sqlite", "storage type must be \"memory\" or \"sqlite\""},
		{c.Storage.Type == "sqlite" && c.Storage.File == "", "sqlite storage requires a file path"},
		{c.Web.HTTPAddr == "", "must supply a web.http address to listen on"},
		{len(c.Token.Secret) < 32, "token.secret must be at least 32 bytes"},
		{len(c.Providers) == 0, "at least one identity provider must be configured"},
	}

	var errs []string
	for _, chk := range checks {
		if chk.bad {
			errs = append(errs, chk.errMsg)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %v", errs)
	}
	return nil
}
