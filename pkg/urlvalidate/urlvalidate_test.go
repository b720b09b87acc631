package urlvalidate

import "testing"

func TestIsValidProfileUrl(t *testing.T) {
	valid := []string{
		"https://jane.example.com/",
		"https://example.com/jane",
	}
	for _, u := range valid {
		if !IsValidProfileUrl(u) {
			t.Errorf("expected valid profile url: %s", u)
		}
	}

	invalid := []string{
		"https://192.168.1.1/",
		"https://127.0.0.1/",
		"https://example.com:8443/",
		"https://example.com/#x",
		"https://user:p@example.com/",
		"https://example.com/a/../b",
		"ftp://example.com/",
		"https://example.com",
	}
	for _, u := range invalid {
		if IsValidProfileUrl(u) {
			t.Errorf("expected invalid profile url: %s", u)
		}
	}
}

func TestIsValidClientId(t *testing.T) {
	valid := []string{
		"http://localhost:8080/",
		"https://app.example.com:8443/",
	}
	for _, u := range valid {
		if !IsValidClientId(u) {
			t.Errorf("expected valid client id: %s", u)
		}
	}

	invalid := []string{
		"https://10.0.0.1/",
		"https://app.example.com/foo/../bar",
	}
	for _, u := range invalid {
		if IsValidClientId(u) {
			t.Errorf("expected invalid client id: %s", u)
		}
	}
}

func TestIsValidRedirectUri(t *testing.T) {
	if !IsValidRedirectUri("https://app.example.com/cb", "https://app.example.com/") {
		t.Error("expected same-origin https redirect to validate")
	}
	if IsValidRedirectUri("https://evil.com/cb", "https://app.example.com/") {
		t.Error("expected cross-origin redirect to fail structural validation")
	}
	if !IsValidRedirectUri("http://localhost:8080/cb", "http://localhost:8080/") {
		t.Error("expected same loopback origin http redirect to validate")
	}
	if IsValidRedirectUri("http://app.example.com/cb", "https://app.example.com/") {
		t.Error("expected http redirect against non-loopback https client to fail")
	}
}

func TestHasDotSegments(t *testing.T) {
	if !HasDotSegments("https://example.com/a/../b") {
		t.Error("expected dot-segment detection")
	}
	if HasDotSegments("https://example.com/a/b") {
		t.Error("expected no dot-segment false positive")
	}
}

func TestIsRedirectUriInPublishedList(t *testing.T) {
	list := []string{"https://app.example.com/cb"}
	if !IsRedirectUriInPublishedList("https://app.example.com/cb", list) {
		t.Error("expected exact match to be found")
	}
	if IsRedirectUriInPublishedList("https://app.example.com/cb/", list) {
		t.Error("expected byte-exact match, trailing slash should not match")
	}
}

func TestHasDangerousScheme(t *testing.T) {
	for _, s := range []string{"javascript:alert(1)", "data:text/html,x", "vbscript:x", "file:///etc/passwd"} {
		if !HasDangerousScheme(s) {
			t.Errorf("expected dangerous scheme to be flagged: %s", s)
		}
	}
	if HasDangerousScheme("https://example.com/") {
		t.Error("https should not be flagged dangerous")
	}
}
