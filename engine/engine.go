// Package engine implements the Authorization Engine (spec §4.9): the
// full IndieAuth protocol state machine, grounded on the teacher's
// authorizationhandlers.go/connectorloginhandlers.go/
// connectorcallbackhandlers.go/approvalhandlers.go/authcodehandlers.go/
// oauth2.go/rotation.go/introspectionhandler.go, generalized from dex's
// OIDC broker shape down to IndieAuth's RelMeAuth flow. Every operation
// here is pure orchestration over the three repositories and the
// Identity Provider Registry; no HTTP concerns leak in (those live in
// package server).
package engine

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/myquay/talos/discovery"
	"github.com/myquay/talos/idp"
	"github.com/myquay/talos/pkg/pkce"
	"github.com/myquay/talos/pkg/urlvalidate"
	"github.com/myquay/talos/storage"
	"github.com/myquay/talos/token"
)

// Config carries the operator-configured values the engine needs that
// aren't read from a repository.
type Config struct {
	// Issuer is the authorization server's own base URL, no trailing
	// slash. Used as both the "iss" redirect parameter (RFC 9207) and the
	// JWT iss/aud claims.
	Issuer string

	SessionTTL            time.Duration
	AuthCodeTTL           time.Duration
	RefreshTokenTTL       time.Duration
	RefreshTokenRetention time.Duration

	// AllowedProfileHosts restricts which "me" hosts may authenticate.
	// Empty means no restriction (spec §4.9.1 step 8).
	AllowedProfileHosts []string

	// IntrospectionSecret gates the introspection endpoint (spec
	// §4.9.10). Empty means introspection always returns 401.
	IntrospectionSecret string
}

// Engine is the stateless orchestrator over the three repositories, the
// Identity Provider Registry, and the Token Service.
type Engine struct {
	cfg Config

	pending storage.PendingAuthenticationRepo
	codes   storage.AuthorizationCodeRepo
	refresh storage.RefreshTokenRepo

	providers       map[string]idp.Provider
	discoveryClient *http.Client
	tokens          *token.Service

	logger *slog.Logger
}

// New builds an Engine from its repositories and dependencies.
func New(
	cfg Config,
	pending storage.PendingAuthenticationRepo,
	codes storage.AuthorizationCodeRepo,
	refresh storage.RefreshTokenRepo,
	providers map[string]idp.Provider,
	discoveryClient *http.Client,
	tokens *token.Service,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:             cfg,
		pending:         pending,
		codes:           codes,
		refresh:         refresh,
		providers:       providers,
		discoveryClient: discoveryClient,
		tokens:          tokens,
		logger:          logger,
	}
}

func (e *Engine) callbackURL(providerType string) string {
	return e.cfg.Issuer + "/callback/" + providerType
}

// AuthorizationRequest is the query-parameter shape of a GET to the
// authorization endpoint.
type AuthorizationRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Me                  string
	Scope               string
}

// AuthorizationOutcome is the result of CreateAuthorization: exactly one
// of its three redirect shapes is populated.
type AuthorizationOutcome struct {
	// EnterProfile is set when "me" was omitted; the caller should
	// redirect to the frontend's profile-entry form carrying
	// EnterProfileQuery plus the discovered client display info.
	EnterProfile      bool
	EnterProfileQuery url.Values
	ClientName        string
	ClientLogoURI     string

	// ProviderRedirectURL is set when exactly one provider matched;
	// redirect the browser straight there.
	ProviderRedirectURL string

	// SessionID and Providers are set when more than one provider
	// matched; redirect to the frontend's provider-selection route.
	SessionID string
	Providers []storage.DiscoveredProvider
}

// CreateAuthorization implements spec §4.9.1.
func (e *Engine) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*AuthorizationOutcome, *Error) {
	if req.ResponseType != "code" {
		return nil, NewUntrustedError(ErrUnsupportedResponseType, "response_type must be \"code\"")
	}
	if req.ClientID == "" || !urlvalidate.IsValidClientId(req.ClientID) {
		return nil, NewUntrustedError(ErrInvalidRequest, "invalid client_id")
	}

	clientInfo := discovery.DiscoverClient(ctx, e.discoveryClient, req.ClientID)

	if req.RedirectURI == "" || urlvalidate.HasDangerousScheme(req.RedirectURI) {
		return nil, NewUntrustedError(ErrInvalidRequest, "invalid redirect_uri")
	}
	if !urlvalidate.IsValidRedirectUri(req.RedirectURI, req.ClientID) {
		if !clientInfo.WasFetched || !urlvalidate.IsRedirectUriInPublishedList(req.RedirectURI, clientInfo.RedirectURIs) {
			return nil, NewUntrustedError(ErrInvalidRequest, "redirect_uri is not valid for this client_id")
		}
	}

	if len(req.State) < 8 {
		return nil, NewError(ErrInvalidRequest, "state is required and should be at least 8 characters")
	}
	if req.CodeChallenge == "" || req.CodeChallengeMethod != pkce.MethodS256 {
		return nil, NewError(ErrInvalidRequest, "code_challenge with method S256 is required")
	}

	if req.Me == "" {
		q := url.Values{}
		q.Set("response_type", req.ResponseType)
		q.Set("client_id", req.ClientID)
		q.Set("redirect_uri", req.RedirectURI)
		q.Set("state", req.State)
		q.Set("code_challenge", req.CodeChallenge)
		q.Set("code_challenge_method", req.CodeChallengeMethod)
		if req.Scope != "" {
			q.Set("scope", req.Scope)
		}
		return &AuthorizationOutcome{
			EnterProfile:      true,
			EnterProfileQuery: q,
			ClientName:        clientInfo.ClientName,
			ClientLogoURI:     clientInfo.LogoURI,
		}, nil
	}

	me := discovery.NormalizeProfileURL(req.Me)
	if !urlvalidate.IsValidProfileUrl(me) {
		return nil, NewError(ErrInvalidRequest, "invalid profile url")
	}

	if len(e.cfg.AllowedProfileHosts) > 0 {
		meURL, _ := url.Parse(me)
		allowed := false
		for _, host := range e.cfg.AllowedProfileHosts {
			if strings.EqualFold(meURL.Hostname(), host) {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, NewError(ErrAccessDenied, "this profile is not permitted to authenticate here")
		}
	}

	profile := discovery.DiscoverProfile(ctx, e.discoveryClient, e.providers, me)
	if !profile.Success {
		return nil, NewError(ErrInvalidRequest, "profile discovery failed: "+profile.Error)
	}

	now := time.Now()
	session := storage.PendingAuthentication{
		SessionID:           storage.NewSessionID(),
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Scopes:              token.SplitScopes(req.Scope),
		ProfileURL:          profile.ProfileURL,
		DiscoveredProviders: profile.Providers,
		ClientName:          clientInfo.ClientName,
		ClientLogoURI:       clientInfo.LogoURI,
		CreatedAt:           now,
		ExpiresAt:           now.Add(e.cfg.SessionTTL),
	}

	if len(profile.Providers) == 1 {
		selected := profile.Providers[0]
		session.SelectedProviderType = selected.ProviderType
		session.ProviderState = storage.NewProviderState()
	}

	if err := e.pending.Create(ctx, session); err != nil {
		return nil, Wrap(err, "failed to persist authorization session")
	}

	if len(profile.Providers) == 1 {
		p, ok := idp.GetProvider(e.providers, session.SelectedProviderType)
		if !ok {
			return nil, Wrap(fmt.Errorf("provider %q not registered", session.SelectedProviderType), "internal error selecting provider")
		}
		return &AuthorizationOutcome{
			ProviderRedirectURL: p.BuildAuthorizationURL(session.ProviderState, e.callbackURL(session.SelectedProviderType)),
		}, nil
	}

	return &AuthorizationOutcome{
		SessionID: session.SessionID,
		Providers: profile.Providers,
	}, nil
}

// SelectProvider implements spec §4.9.2.
func (e *Engine) SelectProvider(ctx context.Context, sessionID, providerType string) (string, *Error) {
	session, err := e.pending.Get(ctx, sessionID)
	if err != nil {
		return "", NewError(ErrInvalidRequest, "session not found or expired")
	}

	var match *storage.DiscoveredProvider
	for i := range session.DiscoveredProviders {
		if session.DiscoveredProviders[i].ProviderType == providerType {
			match = &session.DiscoveredProviders[i]
			break
		}
	}
	if match == nil {
		return "", NewError(ErrInvalidRequest, "provider not available for this profile")
	}

	p, ok := idp.GetProvider(e.providers, providerType)
	if !ok {
		return "", Wrap(fmt.Errorf("provider %q not registered", providerType), "internal error selecting provider")
	}

	providerState := storage.NewProviderState()
	err = e.pending.Update(ctx, sessionID, func(s storage.PendingAuthentication) (storage.PendingAuthentication, error) {
		s.SelectedProviderType = providerType
		s.ProviderState = providerState
		return s, nil
	})
	if err != nil {
		return "", Wrap(err, "failed to persist provider selection")
	}

	return p.BuildAuthorizationURL(providerState, e.callbackURL(providerType)), nil
}

// CallbackOutcome is the result of HandleProviderCallback. SessionID is
// always populated when an outcome is returned, including when the
// provider code exchange or verification failed, so the caller can route
// back to the consent page with an error shown. A missing session or a
// provider mismatch returns an *Error and no outcome.
type CallbackOutcome struct {
	SessionID string
	Error     string
}

// HandleProviderCallback implements spec §4.9.3.
func (e *Engine) HandleProviderCallback(ctx context.Context, providerType, providerCode, providerState string) (*CallbackOutcome, *Error) {
	session, err := e.pending.GetByProviderState(ctx, providerState)
	if err != nil {
		return nil, NewError(ErrInvalidRequest, "authentication session not found or expired")
	}
	if session.SelectedProviderType != providerType {
		return nil, NewError(ErrInvalidRequest, "provider mismatch")
	}

	p, ok := idp.GetProvider(e.providers, providerType)
	if !ok {
		return nil, Wrap(fmt.Errorf("provider %q not registered", providerType), "internal error")
	}

	accessToken, err := p.ExchangeCode(ctx, providerCode, e.callbackURL(providerType))
	if err != nil {
		e.logger.WarnContext(ctx, "provider code exchange failed", "provider", providerType, "session_id", session.SessionID[:8])
		return &CallbackOutcome{SessionID: session.SessionID, Error: "provider_exchange_failed"}, nil
	}

	var expectedUsername string
	for _, dp := range session.DiscoveredProviders {
		if dp.ProviderType == providerType {
			expectedUsername = dp.Username
			break
		}
	}

	verify, err := p.Verify(ctx, accessToken, expectedUsername, session.ProfileURL)
	if err != nil {
		e.logger.WarnContext(ctx, "provider verify failed", "provider", providerType, "session_id", session.SessionID[:8])
		return &CallbackOutcome{SessionID: session.SessionID, Error: "provider_verify_failed"}, nil
	}
	if !verify.Success {
		return &CallbackOutcome{SessionID: session.SessionID, Error: "verification_failed"}, nil
	}
	if !verify.ReciprocalVerified {
		e.logger.WarnContext(ctx, "reciprocal rel=me link not confirmed", "provider", providerType, "session_id", session.SessionID[:8])
	}

	updateErr := e.pending.Update(ctx, session.SessionID, func(s storage.PendingAuthentication) (storage.PendingAuthentication, error) {
		s.IsAuthenticated = true
		s.ProviderState = ""
		return s, nil
	})
	if updateErr != nil {
		return nil, Wrap(updateErr, "failed to persist authentication result")
	}

	return &CallbackOutcome{SessionID: session.SessionID}, nil
}

// ConsentView is the read-only projection of a pending session the
// consent page renders: who's asking, who's signing in, and for what.
type ConsentView struct {
	ClientID      string
	ClientName    string
	ClientLogoURI string
	ProfileURL    string
	Scopes        []string
}

// GetConsentView looks up the session a provider callback just
// authenticated, for the consent screen to render. Returns an error if
// the session doesn't exist or hasn't completed authentication yet.
func (e *Engine) GetConsentView(ctx context.Context, sessionID string) (*ConsentView, *Error) {
	session, err := e.pending.Get(ctx, sessionID)
	if err != nil {
		return nil, NewError(ErrInvalidRequest, "session not found or expired")
	}
	if !session.IsAuthenticated {
		return nil, NewError(ErrInvalidRequest, "session has not completed authentication")
	}
	return &ConsentView{
		ClientID:      session.ClientID,
		ClientName:    session.ClientName,
		ClientLogoURI: session.ClientLogoURI,
		ProfileURL:    session.ProfileURL,
		Scopes:        session.Scopes,
	}, nil
}

// ConsentOutcome is the result of GrantConsent: always a redirect to the
// client's redirect_uri.
type ConsentOutcome struct {
	RedirectURL string
}

// GrantConsent implements spec §4.9.4.
func (e *Engine) GrantConsent(ctx context.Context, sessionID string, approved bool) (*ConsentOutcome, *Error) {
	session, err := e.pending.Get(ctx, sessionID)
	if err != nil {
		return nil, NewError(ErrInvalidRequest, "session not found or expired")
	}
	if !session.IsAuthenticated {
		return nil, NewError(ErrInvalidRequest, "session has not completed authentication")
	}

	if !approved {
		e.pending.Delete(ctx, sessionID)
		return &ConsentOutcome{RedirectURL: redirectWithParams(session.RedirectURI, url.Values{
			"error": {"access_denied"},
			"state": {session.State},
			"iss":   {e.cfg.Issuer},
		})}, nil
	}

	now := time.Now()
	code := storage.AuthorizationCode{
		Code:                storage.NewAuthorizationCode(),
		ClientID:            session.ClientID,
		RedirectURI:         session.RedirectURI,
		ProfileURL:          session.ProfileURL,
		Scopes:              session.Scopes,
		CodeChallenge:       session.CodeChallenge,
		CodeChallengeMethod: session.CodeChallengeMethod,
		CreatedAt:           now,
		ExpiresAt:           now.Add(e.cfg.AuthCodeTTL),
	}
	if err := e.codes.Create(ctx, code); err != nil {
		return nil, Wrap(err, "failed to persist authorization code")
	}
	if err := e.pending.Delete(ctx, sessionID); err != nil {
		e.logger.WarnContext(ctx, "failed to delete pending session after consent", "session_id", sessionID[:8])
	}

	return &ConsentOutcome{RedirectURL: redirectWithParams(session.RedirectURI, url.Values{
		"code":  {code.Code},
		"state": {session.State},
		"iss":   {e.cfg.Issuer},
	})}, nil
}

func redirectWithParams(redirectURI string, params url.Values) string {
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	return redirectURI + sep + params.Encode()
}

// RedeemCode implements spec §4.9.5: an atomic check-and-set over the
// authorization code repository. A nil, nil return means the code is
// invalid for any reason (not found, used, expired, mismatched, or failed
// PKCE) — callers never learn which, by design.
func (e *Engine) RedeemCode(ctx context.Context, code, clientID, redirectURI, codeVerifier string) (*storage.AuthorizationCode, error) {
	var redeemed storage.AuthorizationCode
	var invalid bool
	var reused storage.AuthorizationCode

	err := e.codes.Update(ctx, code, func(c storage.AuthorizationCode) (storage.AuthorizationCode, error) {
		if c.IsUsed {
			invalid = true
			reused = c
			return c, fmt.Errorf("code invalid")
		}
		if time.Now().After(c.ExpiresAt) {
			invalid = true
			return c, fmt.Errorf("code invalid")
		}
		if c.ClientID != clientID || c.RedirectURI != redirectURI {
			invalid = true
			return c, fmt.Errorf("code invalid")
		}
		if !pkce.Verify(codeVerifier, c.CodeChallenge, c.CodeChallengeMethod) {
			invalid = true
			return c, fmt.Errorf("code invalid")
		}
		c.IsUsed = true
		redeemed = c
		return c, nil
	})

	if invalid {
		if reused.Code != "" {
			if revokeErr := e.refresh.RevokeAllForProfile(ctx, reused.ProfileURL); revokeErr != nil {
				e.logger.WarnContext(ctx, "failed to revoke tokens after authorization code reuse", "error", revokeErr)
			}
		}
		return nil, nil
	}
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &redeemed, nil
}

// TokenResponse is the JSON body returned from the token endpoint for
// both grant types (spec §4.9.6/§4.9.8).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	Me           string `json:"me"`
}

// ExchangeAuthorizationCode implements spec §4.9.6.
func (e *Engine) ExchangeAuthorizationCode(ctx context.Context, code, clientID, redirectURI, codeVerifier string) (*TokenResponse, *Error) {
	redeemed, err := e.RedeemCode(ctx, code, clientID, redirectURI, codeVerifier)
	if err != nil {
		return nil, Wrap(err, "failed to redeem authorization code")
	}
	if redeemed == nil {
		return nil, NewError(ErrInvalidGrant, "the authorization code is invalid, expired, or already used")
	}
	if len(redeemed.Scopes) == 0 {
		return nil, NewError(ErrInvalidGrant, "an authentication-only code must be exchanged at the authorization endpoint")
	}

	return e.issueTokenPair(ctx, redeemed.ProfileURL, clientID, redeemed.Scopes)
}

// ExchangeAuthenticationOnly implements spec §4.9.7: the authorization
// endpoint's own POST code-redemption path, returning only "me".
func (e *Engine) ExchangeAuthenticationOnly(ctx context.Context, code, clientID, redirectURI, codeVerifier string) (string, *Error) {
	redeemed, err := e.RedeemCode(ctx, code, clientID, redirectURI, codeVerifier)
	if err != nil {
		return "", Wrap(err, "failed to redeem authorization code")
	}
	if redeemed == nil {
		return "", NewError(ErrInvalidGrant, "the authorization code is invalid, expired, or already used")
	}
	return redeemed.ProfileURL, nil
}

func (e *Engine) issueTokenPair(ctx context.Context, profileURL, clientID string, scopes []string) (*TokenResponse, *Error) {
	accessToken, expiresAt, err := e.tokens.GenerateAccessToken(profileURL, clientID, scopes)
	if err != nil {
		return nil, Wrap(err, "failed to generate access token")
	}

	now := time.Now()
	rt := storage.RefreshToken{
		Token:      storage.NewRefreshTokenValue(),
		ProfileURL: profileURL,
		ClientID:   clientID,
		Scopes:     scopes,
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.cfg.RefreshTokenTTL),
	}
	if err := e.refresh.Create(ctx, rt); err != nil {
		return nil, Wrap(err, "failed to persist refresh token")
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
		RefreshToken: rt.Token,
		Scope:        token.JoinScopes(scopes),
		Me:           profileURL,
	}, nil
}

// ExchangeRefreshToken implements spec §4.9.8: atomic rotation, old token
// revoked and a new one issued with identical scopes in the same
// operation.
func (e *Engine) ExchangeRefreshToken(ctx context.Context, clientID, refreshToken string) (*TokenResponse, *Error) {
	if clientID == "" || refreshToken == "" {
		return nil, NewError(ErrInvalidRequest, "client_id and refresh_token are required")
	}

	existing, err := e.refresh.Get(ctx, refreshToken)
	if err != nil {
		return nil, NewError(ErrInvalidGrant, "refresh token not found")
	}
	if existing.IsRevoked || time.Now().After(existing.ExpiresAt) || existing.ClientID != clientID {
		return nil, NewError(ErrInvalidGrant, "refresh token is invalid, expired, or revoked")
	}

	accessToken, expiresAt, err := e.tokens.GenerateAccessToken(existing.ProfileURL, existing.ClientID, existing.Scopes)
	if err != nil {
		return nil, Wrap(err, "failed to generate access token")
	}

	now := time.Now()
	next := storage.RefreshToken{
		Token:      storage.NewRefreshTokenValue(),
		ProfileURL: existing.ProfileURL,
		ClientID:   existing.ClientID,
		Scopes:     existing.Scopes,
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.cfg.RefreshTokenTTL),
	}
	if err := e.refresh.RotateRefreshToken(ctx, refreshToken, next); err != nil {
		return nil, NewError(ErrInvalidGrant, "refresh token is invalid, expired, or revoked")
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
		RefreshToken: next.Token,
		Scope:        token.JoinScopes(existing.Scopes),
		Me:           existing.ProfileURL,
	}, nil
}

// Revoke implements spec §4.9.9: best-effort, always succeeds from the
// caller's point of view (RFC 7009).
func (e *Engine) Revoke(ctx context.Context, tokenValue string) {
	err := e.refresh.Update(ctx, tokenValue, func(t storage.RefreshToken) (storage.RefreshToken, error) {
		if t.IsRevoked {
			return t, nil
		}
		t.IsRevoked = true
		t.RevokedAt = time.Now()
		return t, nil
	})
	if err != nil && err != storage.ErrNotFound {
		e.logger.WarnContext(ctx, "revocation lookup failed", "error", err)
	}
}

// IntrospectionResult is the JSON body returned from the introspection
// endpoint (spec §4.9.10).
type IntrospectionResult struct {
	Active   bool   `json:"active"`
	Me       string `json:"me,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
	Iat      int64  `json:"iat,omitempty"`
}

// Introspect implements spec §4.9.10. The caller is responsible for
// checking CheckIntrospectionSecret first; Introspect itself only
// validates the access token.
func (e *Engine) Introspect(tokenValue string) IntrospectionResult {
	claims, err := e.tokens.ValidateAccessToken(tokenValue)
	if err != nil {
		return IntrospectionResult{Active: false}
	}
	return IntrospectionResult{
		Active:   true,
		Me:       claims.ProfileURL,
		ClientID: claims.ClientID,
		Scope:    token.JoinScopes(claims.Scopes),
		Exp:      claims.ExpiresAt.Unix(),
		Iat:      claims.IssuedAt.Unix(),
	}
}

// CheckIntrospectionSecret performs the constant-time bearer-secret check
// spec §4.9.10 requires before Introspect is ever called. No secret
// configured means every request is rejected (fail closed).
func (e *Engine) CheckIntrospectionSecret(authorizationHeader string) bool {
	if e.cfg.IntrospectionSecret == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authorizationHeader, prefix) {
		return false
	}
	supplied := strings.TrimPrefix(authorizationHeader, prefix)
	return constantTimeEqual(supplied, e.cfg.IntrospectionSecret)
}

func constantTimeEqual(a, b string) bool {
	ah := hmac.New(sha256.New, []byte("talos-introspection"))
	ah.Write([]byte(a))
	bh := hmac.New(sha256.New, []byte("talos-introspection"))
	bh.Write([]byte(b))
	return subtle.ConstantTimeCompare(ah.Sum(nil), bh.Sum(nil)) == 1
}

// CleanupResult reports how many expired records each cleanup pass
// removed.
type CleanupResult struct {
	Sessions      int64
	AuthCodes     int64
	RefreshTokens int64
}

// Cleanup implements spec §4.9.11.
func (e *Engine) Cleanup(ctx context.Context, now time.Time) (CleanupResult, error) {
	var result CleanupResult
	var err error

	if result.Sessions, err = e.pending.DeleteExpired(ctx, now); err != nil {
		return result, fmt.Errorf("cleanup pending sessions: %w", err)
	}
	if result.AuthCodes, err = e.codes.DeleteExpired(ctx, now); err != nil {
		return result, fmt.Errorf("cleanup authorization codes: %w", err)
	}
	if result.RefreshTokens, err = e.refresh.DeleteExpired(ctx, now, e.cfg.RefreshTokenRetention); err != nil {
		return result, fmt.Errorf("cleanup refresh tokens: %w", err)
	}
	return result, nil
}
