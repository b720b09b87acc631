package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	oauth2github "golang.org/x/oauth2/github"
)

// githubProvider adapts the teacher's connector/github strategy: the
// OAuth2 dance and /user API call survive unchanged, but instead of
// producing a connector.Identity for a federated OIDC session it produces
// the providerType/username/reciprocal-link signals the IndieAuth
// RelMeAuth flow needs.
type githubProvider struct {
	clientID     string
	clientSecret string
}

// NewGitHub constructs the GitHub provider.
func NewGitHub(cfg Config) (Provider, error) {
	return &githubProvider{clientID: cfg.ClientID, clientSecret: cfg.ClientSecret}, nil
}

func (p *githubProvider) Type() string { return "github" }

func (p *githubProvider) oauth2Config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     oauth2github.Endpoint,
		Scopes:       []string{"read:user"},
	}
}

func (p *githubProvider) BuildAuthorizationURL(state, redirectURI string) string {
	return p.oauth2Config(redirectURI).AuthCodeURL(state)
}

func (p *githubProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	token, err := p.oauth2Config(redirectURI).Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("github: exchange code: %w", err)
	}
	return token.AccessToken, nil
}

type githubUser struct {
	Login   string `json:"login"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar_url"`
	Blog    string `json:"blog"`
	Bio     string `json:"bio"`
	HTMLURL string `json:"html_url"`
}

func (p *githubProvider) Verify(ctx context.Context, accessToken, expectedUsername, userWebsiteURL string) (VerifyResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user", nil)
	if err != nil {
		return VerifyResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("github: get user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return VerifyResult{}, fmt.Errorf("github: get user: status %d: %s", resp.StatusCode, body)
	}

	var u githubUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return VerifyResult{}, fmt.Errorf("github: decode user: %w", err)
	}

	if !strings.EqualFold(u.Login, expectedUsername) {
		return VerifyResult{Success: false, Error: "verification_failed"}, nil
	}

	displayName := u.Name
	if displayName == "" {
		displayName = u.Login
	}

	return VerifyResult{
		Success:            true,
		Username:           u.Login,
		ProfileURL:         "https://github.com/" + u.Login,
		DisplayName:        displayName,
		AvatarURL:          u.Avatar,
		ReciprocalVerified: referencesWebsite(userWebsiteURL, u.Blog, u.Bio),
	}, nil
}

func (p *githubProvider) MatchesProfileURL(profileURL string) (string, bool) {
	username, ok := extractPathUser(profileURL, "github.com")
	if ok && isReservedGitHubPath(username) {
		return "", false
	}
	return username, ok
}

// isReservedGitHubPath rejects github.com top-level paths that are
// product routes, not user profiles.
func isReservedGitHubPath(segment string) bool {
	switch strings.ToLower(segment) {
	case "login", "settings", "explore", "marketplace", "notifications", "issues", "pulls", "topics", "sponsors", "about", "pricing", "features":
		return true
	}
	return false
}

// extractPathUser matches "https://<host>/<username>" or
// "https://<host>/<username>/" with no further path segments, the shape
// GitHub, GitLab.com, and similar single-level profile hosts use.
func extractPathUser(profileURL, host string) (string, bool) {
	const httpsPrefix = "https://"
	if !strings.HasPrefix(profileURL, httpsPrefix+host+"/") {
		return "", false
	}
	rest := strings.TrimPrefix(profileURL, httpsPrefix+host+"/")
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// referencesWebsite reports whether any of fields contains userWebsiteURL,
// compared on normalized host+path, case-insensitively, with or without a
// scheme — per spec §4.7's reciprocal-link check.
func referencesWebsite(userWebsiteURL string, fields ...string) bool {
	needle := normalizeWebsiteRef(userWebsiteURL)
	if needle == "" {
		return false
	}
	for _, f := range fields {
		if strings.Contains(normalizeWebsiteRef(f), needle) {
			return true
		}
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func normalizeWebsiteRef(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, "/")
	return s
}
