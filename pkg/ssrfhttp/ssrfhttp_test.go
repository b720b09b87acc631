package ssrfhttp

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsBlockedIP(t *testing.T) {
	blocked := []string{
		"127.0.0.1", "169.254.169.254", "10.0.0.1", "172.16.0.1",
		"192.168.1.1", "100.64.0.1", "::1", "fe80::1", "fc00::1",
	}
	for _, s := range blocked {
		if !IsBlockedIP(net.ParseIP(s)) {
			t.Errorf("expected %s to be blocked", s)
		}
	}

	allowed := []string{"8.8.8.8", "1.1.1.1", "93.184.216.34"}
	for _, s := range allowed {
		if IsBlockedIP(net.ParseIP(s)) {
			t.Errorf("expected %s to be allowed", s)
		}
	}
}

func TestNewClientBlocksLoopbackTestServer(t *testing.T) {
	// httptest servers bind to 127.0.0.1, so fetching one through the
	// guarded client must fail at dial time on the loopback block.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(Config{Timeout: 2 * time.Second})
	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("expected loopback test server fetch to be blocked by the SSRF guard")
	}
}
