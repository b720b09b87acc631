// Package ssrfhttp builds an *http.Client whose transport refuses to
// connect to private, loopback, link-local, or otherwise non-public IP
// ranges, defending Profile Discovery and Client Discovery against SSRF.
// The check runs at dial time — after DNS resolution, before the TCP
// connection completes — so it also covers redirects, not just the
// initial request host.
package ssrfhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrBlockedAddress is returned (wrapped) when a dial target resolves to a
// disallowed IP range.
var ErrBlockedAddress = errors.New("ssrfhttp: connection to this address is not allowed")

var blockedRanges = mustParseCIDRs(
	"127.0.0.0/8",    // loopback
	"169.254.0.0/16", // link-local, includes 169.254.169.254 cloud metadata
	"10.0.0.0/8",     // RFC 1918
	"172.16.0.0/12",  // RFC 1918
	"192.168.0.0/16", // RFC 1918
	"100.64.0.0/10",  // CGNAT
	"192.0.2.0/24",   // documentation (TEST-NET-1)
	"198.51.100.0/24", // documentation (TEST-NET-2)
	"203.0.113.0/24", // documentation (TEST-NET-3)
	"224.0.0.0/4",    // multicast
	"::1/128",        // loopback
	"fe80::/10",      // link-local
	"fc00::/7",       // unique local (ULA)
	"ff00::/8",       // multicast
	"2001:db8::/32",  // documentation
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// IsBlockedIP reports whether ip falls within a disallowed range. IPv4
// addresses mapped into IPv6 are unwrapped first so they're checked
// against the IPv4 ranges they actually represent.
func IsBlockedIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, n := range blockedRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Config controls the guarded client's timeouts and TLS verification.
type Config struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewClient returns an *http.Client whose DialContext rejects connections
// to blocked IP ranges. Every redirect hop is dialed through the same
// check, so a 3xx response can't retarget the request at an internal
// address. CheckRedirect itself only refuses non-http(s) schemes and
// stops after 10 redirects; it does not inspect the new host.
func NewClient(cfg Config) *http.Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   cfg.Timeout,
		KeepAlive: 30 * time.Second,
	}

	guardedDial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
		if err != nil {
			return nil, err
		}
		for _, ip := range ips {
			if IsBlockedIP(ip) {
				return nil, fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
			}
		}
		// Dial the resolved addresses directly, in order, so the connection
		// target is exactly an IP validated above, not whatever the stdlib
		// resolver might pick on a second, un-checked lookup.
		var lastErr error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("ssrfhttp: no addresses resolved for %s", host)
		}
		return nil, lastErr
	}

	return &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("ssrfhttp: refusing redirect to scheme %q", req.URL.Scheme)
			}
			if len(via) >= 10 {
				return errors.New("ssrfhttp: stopped after 10 redirects")
			}
			return nil
		},
		Transport: &http.Transport{
			Proxy:                 nil, // never honor HTTP(S)_PROXY for untrusted-URL fetches
			DialContext:           guardedDial,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
