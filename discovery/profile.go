// Package discovery implements Profile Discovery and Client Discovery
// (spec §4.5/§4.6): fetching a user's or client's own page through the
// SSRF-guarded client and extracting the microformats2 signals the
// Authorization Engine needs to route a request.
package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/myquay/talos/idp"
	"github.com/myquay/talos/pkg/microformats"
	"github.com/myquay/talos/storage"
)

const fetchTimeout = 10 * time.Second

// httpDoer is satisfied by *http.Client; discovery takes one rather than
// constructing its own so the caller supplies the SSRF-guarded client from
// pkg/ssrfhttp.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProfileResult is the outcome of Profile Discovery.
type ProfileResult struct {
	Success               bool
	ProfileURL            string
	Providers             []storage.DiscoveredProvider
	AuthorizationEndpoint string
	TokenEndpoint         string
	Error                 string
}

// NormalizeProfileURL adds an https scheme when none is given, lowercases
// the host, gives an empty path the root path "/", and strips a single
// trailing slash from any other path, per spec §4.5 step 1.
func NormalizeProfileURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	} else if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}

// DiscoverProfile fetches profileURL and extracts rel="me" links, mapping
// each to a configured provider.
func DiscoverProfile(ctx context.Context, client httpDoer, providers map[string]idp.Provider, profileURL string) ProfileResult {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return ProfileResult{Error: "invalid_request"}
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "talos-indieauth/1.0 (+profile discovery)")

	resp, err := client.Do(req)
	if err != nil {
		return ProfileResult{Error: fmt.Sprintf("fetch failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ProfileResult{Error: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	base, _ := url.Parse(profileURL)
	mf, err := microformats.Parse(io.LimitReader(resp.Body, 2<<20), base)
	if err != nil {
		return ProfileResult{Error: fmt.Sprintf("parse failed: %v", err)}
	}

	// HTTP Link header endpoints take precedence over in-HTML rels.
	authEndpoint := mf.AuthorizationEndpoint
	tokenEndpoint := mf.TokenEndpoint
	for _, l := range parseLinkHeader(resp.Header.Values("Link"), base) {
		switch l.rel {
		case "authorization_endpoint":
			authEndpoint = l.href
		case "token_endpoint":
			tokenEndpoint = l.href
		}
	}

	if len(mf.RelMeLinks) == 0 {
		return ProfileResult{Error: "no rel=me links found"}
	}

	var matched []storage.DiscoveredProvider
	for _, link := range mf.RelMeLinks {
		kind, username, ok := idp.MatchProfileURL(providers, link)
		if !ok {
			continue
		}
		matched = append(matched, storage.DiscoveredProvider{
			ProviderType: kind,
			ProfileURL:   link,
			Username:     username,
		})
	}
	if len(matched) == 0 {
		return ProfileResult{Error: "no rel=me link matched a configured provider"}
	}

	return ProfileResult{
		Success:               true,
		ProfileURL:            profileURL,
		Providers:             matched,
		AuthorizationEndpoint: authEndpoint,
		TokenEndpoint:         tokenEndpoint,
	}
}

type linkHeaderEntry struct {
	href string
	rel  string
}

var linkHeaderValue = regexp.MustCompile(`<[^>]*>[^,]*`)
var linkHeaderURL = regexp.MustCompile(`^<([^>]*)>`)
var linkHeaderParam = regexp.MustCompile(`;\s*([a-zA-Z]+)="?([^";]*)"?`)

// parseLinkHeader does a minimal RFC 5988 parse of the handful of Link
// header entries Talos cares about. No library in the corpus covers this
// narrow need (see DESIGN.md); the format is small enough that a regexp
// based reader is safe to hand-roll.
func parseLinkHeader(headers []string, base *url.URL) []linkHeaderEntry {
	var entries []linkHeaderEntry
	for _, header := range headers {
		for _, part := range linkHeaderValue.FindAllString(header, -1) {
			m := linkHeaderURL.FindStringSubmatch(part)
			if m == nil {
				continue
			}
			href := m[1]
			if base != nil {
				if u, err := base.Parse(href); err == nil {
					href = u.String()
				}
			}
			for _, pm := range linkHeaderParam.FindAllStringSubmatch(part, -1) {
				if strings.EqualFold(pm[1], "rel") {
					entries = append(entries, linkHeaderEntry{href: href, rel: strings.ToLower(pm[2])})
				}
			}
		}
	}
	return entries
}
