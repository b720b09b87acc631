// Package microformats extracts the handful of microformats2 signals
// Talos cares about — rel="me" links, IndieAuth endpoint rels, and h-app
// properties — from an HTML document, per spec §4.4. It is a thin
// interpretation layer over willnorris.com/go/microformats, which does the
// actual HTML/mf2 parsing.
package microformats

import (
	"io"
	"net/url"

	wmf "willnorris.com/go/microformats"
)

// Result is the subset of parsed microformats2 data Talos consumes.
type Result struct {
	RelMeLinks            []string
	AuthorizationEndpoint  string
	TokenEndpoint          string
	IndieauthMetadata      string
	Micropub               string
	Microsub               string
	AppName                string
	AppLogoUrl             string
	AppUrl                 string
}

// Parse reads html and resolves all discovered URLs against baseURL.
func Parse(html io.Reader, baseURL *url.URL) (*Result, error) {
	data := wmf.Parse(html, baseURL)

	res := &Result{
		RelMeLinks:            distinctHTTP(data.Rels["me"]),
		AuthorizationEndpoint: firstHTTP(data.Rels["authorization_endpoint"]),
		TokenEndpoint:         firstHTTP(data.Rels["token_endpoint"]),
		IndieauthMetadata:     firstHTTP(data.Rels["indieauth-metadata"]),
		Micropub:              firstHTTP(data.Rels["micropub"]),
		Microsub:              firstHTTP(data.Rels["microsub"]),
	}

	if app := findFirstType(data.Items, "h-app"); app != nil {
		res.AppName = firstString(app.Properties["name"])
		res.AppLogoUrl = firstHTTPString(app.Properties["logo"])
		res.AppUrl = firstHTTPString(app.Properties["url"])
	}

	return res, nil
}

func distinctHTTP(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !isHTTP(u) || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func firstHTTP(urls []string) string {
	for _, u := range urls {
		if isHTTP(u) {
			return u
		}
	}
	return ""
}

func isHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func findFirstType(items []*wmf.Microformat, mfType string) *wmf.Microformat {
	for _, item := range items {
		for _, t := range item.Type {
			if t == mfType {
				return item
			}
		}
		if found := findFirstType(item.Children, mfType); found != nil {
			return found
		}
	}
	return nil
}

func firstString(values []interface{}) string {
	if len(values) == 0 {
		return ""
	}
	return valueToString(values[0])
}

func firstHTTPString(values []interface{}) string {
	s := firstString(values)
	if !isHTTP(s) {
		return ""
	}
	return s
}

func valueToString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]string:
		return t["value"]
	case map[string]interface{}:
		if s, ok := t["value"].(string); ok {
			return s
		}
	}
	return ""
}
