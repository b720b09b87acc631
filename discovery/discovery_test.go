package discovery

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/myquay/talos/idp"
)

func TestNormalizeProfileURL(t *testing.T) {
	cases := map[string]string{
		"jane.example.com":        "https://jane.example.com/",
		"jane.example.com/":       "https://jane.example.com/",
		"JANE.example.com/a/":     "https://jane.example.com/a",
		"https://jane.example.com/a/": "https://jane.example.com/a",
	}
	for in, want := range cases {
		got := NormalizeProfileURL(in)
		if got != want {
			t.Errorf("NormalizeProfileURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDiscoverProfileFindsRelMeProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<link rel="me" href="https://github.com/jane">`))
	}))
	defer srv.Close()

	providers, _ := idp.Build(map[string]idp.Config{"github": {}})
	res := DiscoverProfile(context.Background(), srv.Client(), providers, srv.URL)
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if len(res.Providers) != 1 || res.Providers[0].ProviderType != "github" {
		t.Fatalf("unexpected providers: %+v", res.Providers)
	}
}

func TestDiscoverProfileNoRelMeLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>hello</body></html>`))
	}))
	defer srv.Close()

	providers, _ := idp.Build(map[string]idp.Config{"github": {}})
	res := DiscoverProfile(context.Background(), srv.Client(), providers, srv.URL)
	if res.Success {
		t.Fatal("expected failure for page with no rel=me links")
	}
}

func TestDiscoverProfileLinkHeaderTakesPrecedence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Link", `</auth-from-header>; rel="authorization_endpoint"`)
		w.Write([]byte(`
			<link rel="me" href="https://github.com/jane">
			<link rel="authorization_endpoint" href="/auth-from-html">
		`))
	}))
	defer srv.Close()

	providers, _ := idp.Build(map[string]idp.Config{"github": {}})
	res := DiscoverProfile(context.Background(), srv.Client(), providers, srv.URL)
	if !res.Success {
		t.Fatalf("expected success: %s", res.Error)
	}
	if res.AuthorizationEndpoint != srv.URL+"/auth-from-header" {
		t.Errorf("expected Link header endpoint to win, got %q", res.AuthorizationEndpoint)
	}
}

func TestDiscoverClientLoopbackSkipsFetch(t *testing.T) {
	res := DiscoverClient(context.Background(), http.DefaultClient, "http://localhost:8080/")
	if res.WasFetched {
		t.Error("expected loopback client id to skip fetching")
	}
}

func TestDiscoverClientParsesJSONMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := "http://" + r.Host + "/"
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"client_id":"` + clientID + `","client_name":"Test App","client_uri":"` + clientID + `","redirect_uris":["` + clientID + `cb"]}`))
	}))
	defer srv.Close()

	res := DiscoverClient(context.Background(), dialTo(srv), "http://app.example.com/")
	if !res.WasFetched {
		t.Fatal("expected metadata to be fetched")
	}
	if res.ClientName != "Test App" {
		t.Errorf("unexpected client name: %q", res.ClientName)
	}
	if len(res.RedirectURIs) != 1 {
		t.Errorf("unexpected redirect uris: %v", res.RedirectURIs)
	}
}

func TestDiscoverClientRejectsMismatchedClientID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"client_id":"https://someone-else.example.com/","client_name":"Evil"}`))
	}))
	defer srv.Close()

	res := DiscoverClient(context.Background(), dialTo(srv), "http://app.example.com/")
	if res.WasFetched {
		t.Error("expected mismatched client_id to be rejected")
	}
}

// dialTo returns a client that sends every request to srv whatever the
// URL's host, so a non-loopback client_id (which DiscoverClient does
// fetch) can be served by a local test server.
func dialTo(srv *httptest.Server) *http.Client {
	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, network, srv.Listener.Addr().String())
		},
	}}
}
