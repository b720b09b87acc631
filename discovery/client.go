package discovery

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/myquay/talos/pkg/microformats"
	"github.com/myquay/talos/storage"
)

type clientMetadataJSON struct {
	ClientID     string   `json:"client_id"`
	ClientName   string   `json:"client_name"`
	ClientURI    string   `json:"client_uri"`
	LogoURI      string   `json:"logo_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}

// DiscoverClient fetches clientID's own page (spec §4.6). Loopback client
// IDs are never fetched — they're exempt from discovery because the
// client runs on the same machine that's granting it access. Any fetch or
// parse failure is non-fatal: callers get a default, unfetched ClientInfo
// since this data is purely informational at the consent screen.
func DiscoverClient(ctx context.Context, client httpDoer, clientID string) storage.ClientInfo {
	fallback := storage.ClientInfo{ClientID: clientID, WasFetched: false}

	u, err := url.Parse(clientID)
	if err != nil {
		return fallback
	}
	if isLoopbackHost(u.Hostname()) {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, clientID, nil)
	if err != nil {
		return fallback
	}
	req.Header.Set("Accept", "application/json, text/html")
	req.Header.Set("User-Agent", "talos-indieauth/1.0 (+client discovery)")

	resp, err := client.Do(req)
	if err != nil {
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fallback
	}

	body := io.LimitReader(resp.Body, 2<<20)
	contentType := resp.Header.Get("Content-Type")

	if strings.Contains(contentType, "application/json") {
		var meta clientMetadataJSON
		if err := json.NewDecoder(body).Decode(&meta); err != nil {
			return fallback
		}
		if meta.ClientID != clientID {
			return fallback
		}
		if !strings.HasPrefix(clientID, meta.ClientURI) {
			return fallback
		}
		return storage.ClientInfo{
			ClientID:     clientID,
			ClientName:   meta.ClientName,
			ClientURI:    meta.ClientURI,
			LogoURI:      meta.LogoURI,
			RedirectURIs: meta.RedirectURIs,
			WasFetched:   true,
		}
	}

	mf, err := microformats.Parse(body, u)
	if err != nil {
		return fallback
	}
	return storage.ClientInfo{
		ClientID:   clientID,
		ClientName: mf.AppName,
		ClientURI:  mf.AppUrl,
		LogoURI:    mf.AppLogoUrl,
		WasFetched: true,
	}
}

// isLoopbackHost reports whether host names the local machine, the one
// case spec §4.6 exempts from fetching entirely.
func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
