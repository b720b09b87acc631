package token

import (
	"testing"
	"time"
)

func TestGenerateAndValidateAccessToken(t *testing.T) {
	svc := NewService([]byte("test-secret"), "https://talos.example.com", time.Hour)

	raw, expiresAt, err := svc.GenerateAccessToken("https://jane.example.com/", "https://app.example.com/", []string{"profile", "email"})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if expiresAt.Before(time.Now()) {
		t.Fatalf("expiresAt should be in the future")
	}

	claims, err := svc.ValidateAccessToken(raw)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.ProfileURL != "https://jane.example.com/" {
		t.Errorf("unexpected profile url: %s", claims.ProfileURL)
	}
	if claims.ClientID != "https://app.example.com/" {
		t.Errorf("unexpected client id: %s", claims.ClientID)
	}
	if !HasScope(claims.Scopes, "email") {
		t.Errorf("expected email scope present")
	}
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	issuer := NewService([]byte("secret-a"), "https://talos.example.com", time.Hour)
	verifier := NewService([]byte("secret-b"), "https://talos.example.com", time.Hour)

	raw, _, _ := issuer.GenerateAccessToken("https://jane.example.com/", "https://app.example.com/", nil)
	if _, err := verifier.ValidateAccessToken(raw); err == nil {
		t.Fatal("expected validation to fail with mismatched secret")
	}
}

func TestValidateAccessTokenExpired(t *testing.T) {
	svc := NewService([]byte("test-secret"), "https://talos.example.com", -time.Minute)
	raw, _, _ := svc.GenerateAccessToken("https://jane.example.com/", "https://app.example.com/", nil)
	if _, err := svc.ValidateAccessToken(raw); err == nil {
		t.Fatal("expected validation to fail for an already-expired token")
	}
}

func TestValidateAccessTokenWrongIssuer(t *testing.T) {
	issuer := NewService([]byte("test-secret"), "https://talos-a.example.com", time.Hour)
	verifier := NewService([]byte("test-secret"), "https://talos-b.example.com", time.Hour)

	raw, _, _ := issuer.GenerateAccessToken("https://jane.example.com/", "https://app.example.com/", nil)
	if _, err := verifier.ValidateAccessToken(raw); err == nil {
		t.Fatal("expected validation to fail with mismatched issuer/audience")
	}
}

func TestSplitAndJoinScopes(t *testing.T) {
	scopes := SplitScopes("profile  email   create")
	if len(scopes) != 3 {
		t.Fatalf("expected 3 scopes, got %v", scopes)
	}
	if JoinScopes(scopes) != "profile email create" {
		t.Errorf("unexpected join result: %q", JoinScopes(scopes))
	}
}
