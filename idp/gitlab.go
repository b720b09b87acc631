package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// gitlabProvider adapts the teacher's connector/gitlab strategy, narrowed
// to gitlab.com only — Talos doesn't carry the self-hosted BaseURL/
// RootCAData options a self-hosted GitLab instance would need; that case
// is just another generic "oauth" provider entry from Talos's point of
// view (not wired up in this registry).
type gitlabProvider struct {
	clientID     string
	clientSecret string
}

// NewGitLab constructs the gitlab.com provider.
func NewGitLab(cfg Config) (Provider, error) {
	return &gitlabProvider{clientID: cfg.ClientID, clientSecret: cfg.ClientSecret}, nil
}

func (p *gitlabProvider) Type() string { return "gitlab" }

func (p *gitlabProvider) oauth2Config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://gitlab.com/oauth/authorize",
			TokenURL: "https://gitlab.com/oauth/token",
		},
		Scopes: []string{"read_user"},
	}
}

func (p *gitlabProvider) BuildAuthorizationURL(state, redirectURI string) string {
	return p.oauth2Config(redirectURI).AuthCodeURL(state)
}

func (p *gitlabProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	token, err := p.oauth2Config(redirectURI).Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("gitlab: exchange code: %w", err)
	}
	return token.AccessToken, nil
}

type gitlabUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar_url"`
	WebURL   string `json:"web_url"`
	Website  string `json:"website_url"`
	Bio      string `json:"bio"`
}

func (p *gitlabProvider) Verify(ctx context.Context, accessToken, expectedUsername, userWebsiteURL string) (VerifyResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://gitlab.com/api/v4/user", nil)
	if err != nil {
		return VerifyResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("gitlab: get user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return VerifyResult{}, fmt.Errorf("gitlab: get user: status %d: %s", resp.StatusCode, body)
	}

	var u gitlabUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return VerifyResult{}, fmt.Errorf("gitlab: decode user: %w", err)
	}

	if !strings.EqualFold(u.Username, expectedUsername) {
		return VerifyResult{Success: false, Error: "verification_failed"}, nil
	}

	displayName := u.Name
	if displayName == "" {
		displayName = u.Username
	}

	return VerifyResult{
		Success:            true,
		Username:           u.Username,
		ProfileURL:         "https://gitlab.com/" + u.Username,
		DisplayName:        displayName,
		AvatarURL:          u.Avatar,
		ReciprocalVerified: referencesWebsite(userWebsiteURL, u.Website, u.Bio),
	}, nil
}

func (p *gitlabProvider) MatchesProfileURL(profileURL string) (string, bool) {
	return extractPathUser(profileURL, "gitlab.com")
}
