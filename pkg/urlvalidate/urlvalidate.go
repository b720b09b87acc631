// Package urlvalidate implements the structural URL checks IndieAuth
// requires of profile URLs, client IDs, and redirect URIs (IndieAuth
// spec §3.2/§3.3). All functions are pure and fail closed.
package urlvalidate

import (
	"net"
	"net/url"
	"strings"
)

// HasDotSegments reports whether rawURL contains a path segment equal to
// "." or "..", checked against the raw string rather than a parsed and
// possibly-normalized URL, so that host-side normalization can't smuggle
// a dot-segment past validation.
func HasDotSegments(rawURL string) bool {
	idx := strings.IndexAny(rawURL, "?#")
	path := rawURL
	if idx >= 0 {
		path = rawURL[:idx]
	}
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			path = rest[slash:]
		} else {
			path = ""
		}
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

func isLoopbackHost(host string) bool {
	h := strings.ToLower(host)
	if h == "localhost" {
		return true
	}
	h = strings.TrimPrefix(strings.TrimSuffix(h, "]"), "[")
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

func isIPHost(host string) bool {
	h := strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	return net.ParseIP(h) != nil
}

func parseStrict(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Fragment != "" || u.RawFragment != "" {
		return nil, false
	}
	if u.User != nil {
		return nil, false
	}
	if HasDotSegments(rawURL) {
		return nil, false
	}
	return u, true
}

// IsValidProfileUrl validates a candidate "me" profile URL per IndieAuth
// §3.2: http/https, has a path, no dot-segments/fragment/userinfo/non-default
// port, and a domain-name host (IPv4/IPv6, including loopback, is rejected).
func IsValidProfileUrl(rawURL string) bool {
	u, ok := parseStrict(rawURL)
	if !ok {
		return false
	}
	if u.Path == "" {
		return false
	}
	if u.Port() != "" {
		return false
	}
	if isIPHost(u.Hostname()) {
		return false
	}
	return true
}

// IsValidClientId validates a client_id URL per IndieAuth §3.2: like a
// profile URL, but a port is allowed and loopback hosts are allowed.
func IsValidClientId(rawURL string) bool {
	u, ok := parseStrict(rawURL)
	if !ok {
		return false
	}
	if u.Path == "" {
		return false
	}
	if isIPHost(u.Hostname()) && !isLoopbackHost(u.Hostname()) {
		return false
	}
	return true
}

// IsValidRedirectUri validates a redirect_uri against its client_id per
// IndieAuth §3.3: both parse as absolute URLs; scheme must be https (or
// http only when both sides share the same loopback origin); no dangerous
// scheme, fragment, userinfo, or dot-segment; and scheme+host+port must
// equal the client_id's. Cross-origin redirect URIs are rejected here and
// may only be accepted after Client Discovery confirms membership in the
// client's published redirect_uris list.
func IsValidRedirectUri(redirectURI, clientID string) bool {
	ru, ok := parseStrict(redirectURI)
	if !ok {
		return false
	}
	cu, ok := parseStrict(clientID)
	if !ok {
		return false
	}

	sameLoopback := isLoopbackHost(ru.Hostname()) && isLoopbackHost(cu.Hostname()) &&
		strings.EqualFold(ru.Hostname(), cu.Hostname()) && ru.Port() == cu.Port()

	switch ru.Scheme {
	case "https":
	case "http":
		if !sameLoopback {
			return false
		}
	default:
		return false
	}

	if !strings.EqualFold(ru.Scheme, cu.Scheme) {
		return false
	}
	if !strings.EqualFold(ru.Hostname(), cu.Hostname()) {
		return false
	}
	if ru.Port() != cu.Port() {
		return false
	}
	return true
}

// IsRedirectUriInPublishedList reports whether uri appears byte-exactly
// (no normalization) in list, as required when a redirect_uri is
// cross-origin with client_id and must instead be confirmed via Client
// Discovery's published redirect_uris.
func IsRedirectUriInPublishedList(uri string, list []string) bool {
	for _, candidate := range list {
		if candidate == uri {
			return true
		}
	}
	return false
}

// HasDangerousScheme reports whether rawURL uses a scheme IndieAuth must
// never redirect to (javascript:, data:, vbscript:, file:, or anything
// other than http/https).
func HasDangerousScheme(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return false
	default:
		return true
	}
}
