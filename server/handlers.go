package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/myquay/talos/engine"
)

// handleAuthorization implements spec.md §6's authorization endpoint. GET
// starts a new authorization request (engine.CreateAuthorization); POST
// is the authentication-only exchange (spec §4.9.7), grounded on the
// teacher's handleAuthorization/handleAuthCode split in
// server/authorizationhandlers.go and server/authcodehandlers.go.
func (s *Server) handleAuthorization(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleCreateAuthorization(w, r)
	case http.MethodPost:
		s.handleAuthenticationOnlyExchange(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateAuthorization(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	req := engine.AuthorizationRequest{
		ResponseType:        r.Form.Get("response_type"),
		ClientID:            r.Form.Get("client_id"),
		RedirectURI:         r.Form.Get("redirect_uri"),
		State:               r.Form.Get("state"),
		CodeChallenge:       r.Form.Get("code_challenge"),
		CodeChallengeMethod: r.Form.Get("code_challenge_method"),
		Me:                  r.Form.Get("me"),
		Scope:               r.Form.Get("scope"),
	}

	outcome, engErr := s.engine.CreateAuthorization(r.Context(), req)
	if engErr != nil {
		writeAuthorizationError(s.logger, w, r, engErr, req.RedirectURI, req.State)
		return
	}

	switch {
	case outcome.EnterProfile:
		fields := make(map[string]string, len(outcome.EnterProfileQuery))
		for k := range outcome.EnterProfileQuery {
			fields[k] = outcome.EnterProfileQuery.Get(k)
		}
		s.templates.renderEnterProfile(w, enterProfileData{HiddenFields: fields})
	case outcome.ProviderRedirectURL != "":
		http.Redirect(w, r, outcome.ProviderRedirectURL, http.StatusSeeOther)
	default:
		s.templates.renderSelectProvider(w, selectProviderData{SessionID: outcome.SessionID, Providers: outcome.Providers})
	}
}

func (s *Server) handleAuthenticationOnlyExchange(w http.ResponseWriter, r *http.Request) {
	me, engErr := s.engine.ExchangeAuthenticationOnly(
		r.Context(),
		r.PostFormValue("code"),
		r.PostFormValue("client_id"),
		r.PostFormValue("redirect_uri"),
		r.PostFormValue("code_verifier"),
	)
	if engErr != nil {
		writeTokenError(s.logger, w, engErr)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Me string `json:"me"`
	}{me})
}

// handleSelectProvider implements the provider-selection next hop (spec
// §4.9.2) for profiles with more than one rel=me match.
func (s *Server) handleSelectProvider(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	providerType := r.URL.Query().Get("provider")
	if providerType == "" {
		http.Error(w, "provider is required", http.StatusBadRequest)
		return
	}
	redirectURL, engErr := s.engine.SelectProvider(r.Context(), sessionID, providerType)
	if engErr != nil {
		http.Error(w, engErr.Description, statusForKind(engErr.Kind))
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}

// handleProviderCallback implements spec §4.9.3, the upstream identity
// provider's OAuth callback.
func (s *Server) handleProviderCallback(w http.ResponseWriter, r *http.Request) {
	providerType := mux.Vars(r)["provider"]
	q := r.URL.Query()

	outcome, engErr := s.engine.HandleProviderCallback(r.Context(), providerType, q.Get("code"), q.Get("state"))
	if engErr != nil {
		http.Error(w, engErr.Description, statusForKind(engErr.Kind))
		return
	}

	redirectTo := "/consent?session_id=" + outcome.SessionID
	if outcome.Error != "" {
		redirectTo += "&error=" + outcome.Error
	}
	http.Redirect(w, r, redirectTo, http.StatusSeeOther)
}

// handleConsent implements spec §4.9.4: GET renders the consent screen,
// POST grants or denies it, grounded on the teacher's handleApproval in
// server/approvalhandlers.go.
func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessionID := r.URL.Query().Get("session_id")
		view, engErr := s.engine.GetConsentView(r.Context(), sessionID)
		if engErr != nil {
			http.Error(w, engErr.Description, statusForKind(engErr.Kind))
			return
		}
		s.templates.renderConsent(w, consentData{
			SessionID:     sessionID,
			ClientName:    view.ClientName,
			ClientLogoURI: view.ClientLogoURI,
			ProfileURL:    view.ProfileURL,
			Scopes:        view.Scopes,
		})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		sessionID := r.PostFormValue("session_id")
		approved := r.PostFormValue("approval") == "approve"

		outcome, engErr := s.engine.GrantConsent(r.Context(), sessionID, approved)
		if engErr != nil {
			http.Error(w, engErr.Description, statusForKind(engErr.Kind))
			return
		}
		http.Redirect(w, r, outcome.RedirectURL, http.StatusSeeOther)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleToken implements spec §6's token endpoint, dispatching on
// grant_type, grounded on the teacher's handleToken/handleAuthCode/
// handleRefreshToken split (server/oauth2.go, server/authcodehandlers.go,
// server/rotation.go).
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeTokenError(s.logger, w, engine.NewError(engine.ErrInvalidRequest, "could not parse request body"))
		return
	}

	switch r.PostFormValue("grant_type") {
	case "authorization_code":
		tokens, engErr := s.engine.ExchangeAuthorizationCode(
			r.Context(),
			r.PostFormValue("code"),
			r.PostFormValue("client_id"),
			r.PostFormValue("redirect_uri"),
			r.PostFormValue("code_verifier"),
		)
		if engErr != nil {
			writeTokenError(s.logger, w, engErr)
			return
		}
		writeJSON(w, http.StatusOK, tokens)
	case "refresh_token":
		tokens, engErr := s.engine.ExchangeRefreshToken(r.Context(), r.PostFormValue("client_id"), r.PostFormValue("refresh_token"))
		if engErr != nil {
			writeTokenError(s.logger, w, engErr)
			return
		}
		writeJSON(w, http.StatusOK, tokens)
	default:
		writeTokenError(s.logger, w, engine.NewError(engine.ErrUnsupportedGrantType, "grant_type must be authorization_code or refresh_token"))
	}
}

// handleRevoke implements spec §4.9.9 (RFC 7009): always reports success.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if tok := r.PostFormValue("token"); tok != "" {
		s.engine.Revoke(r.Context(), tok)
	}
	w.WriteHeader(http.StatusOK)
}

// handleIntrospect implements spec §4.9.10 (RFC 7662): bearer-secret
// gated, fails closed when unconfigured.
func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.engine.CheckIntrospectionSecret(r.Header.Get("Authorization")) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusOK, struct {
			Active bool `json:"active"`
		}{false})
		return
	}
	result := s.engine.Introspect(r.PostFormValue("token"))
	writeJSON(w, http.StatusOK, result)
}

// handleMetadata serves a minimal OAuth 2.0 Authorization Server Metadata
// document (RFC 8414) so IndieAuth clients can discover the endpoints.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Issuer                                  string   `json:"issuer"`
		AuthorizationEndpoint                   string   `json:"authorization_endpoint"`
		TokenEndpoint                           string   `json:"token_endpoint"`
		RevocationEndpoint                      string   `json:"revocation_endpoint"`
		IntrospectionEndpoint                   string   `json:"introspection_endpoint"`
		CodeChallengeMethods                    []string `json:"code_challenge_methods_supported"`
		ResponseTypesSupported                  []string `json:"response_types_supported"`
		GrantTypesSupported                     []string `json:"grant_types_supported"`
		ScopesSupported                         []string `json:"scopes_supported"`
		AuthorizationResponseIssParamSupported  bool     `json:"authorization_response_iss_parameter_supported"`
		IntrospectionEndpointAuthMethodsSupported []string `json:"introspection_endpoint_auth_methods_supported"`
	}{
		Issuer:                                    s.issuer,
		AuthorizationEndpoint:                      s.issuer + "/auth",
		TokenEndpoint:                              s.issuer + "/token",
		RevocationEndpoint:                         s.issuer + "/token/revoke",
		IntrospectionEndpoint:                      s.issuer + "/token/introspect",
		CodeChallengeMethods:                       []string{"S256"},
		ResponseTypesSupported:                     []string{"code"},
		GrantTypesSupported:                        []string{"authorization_code", "refresh_token"},
		ScopesSupported:                            []string{"profile", "email"},
		AuthorizationResponseIssParamSupported:     true,
		IntrospectionEndpointAuthMethodsSupported:  []string{"Bearer"},
	})
}
