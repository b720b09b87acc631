package sql

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/myquay/talos/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := Open(slog.Default(), Config{File: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	c := store.PendingAuthentications.(*pendingRepo).c()
	n, err := c.migrate()
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no migrations to re-run, got %d", n)
	}
}

func TestPendingAuthenticationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	p := storage.PendingAuthentication{
		SessionID:     storage.NewSessionID(),
		ClientID:      "https://app.example.com/",
		RedirectURI:   "https://app.example.com/cb",
		Scopes:        []string{"profile", "email"},
		ProviderState: "abc123",
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(time.Hour),
	}
	if err := store.PendingAuthentications.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.PendingAuthentications.Create(ctx, p); err != storage.ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := store.PendingAuthentications.Get(ctx, p.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Scopes) != 2 || got.Scopes[0] != "profile" {
		t.Fatalf("scopes round-trip failed: %v", got.Scopes)
	}

	got, err = store.PendingAuthentications.GetByProviderState(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetByProviderState: %v", err)
	}
	if got.SessionID != p.SessionID {
		t.Errorf("SessionID mismatch")
	}

	if err := store.PendingAuthentications.Update(ctx, p.SessionID, func(old storage.PendingAuthentication) (storage.PendingAuthentication, error) {
		old.IsConsentGiven = true
		return old, nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = store.PendingAuthentications.Get(ctx, p.SessionID)
	if !got.IsConsentGiven {
		t.Errorf("expected IsConsentGiven true")
	}

	if err := store.PendingAuthentications.Delete(ctx, p.SessionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.PendingAuthentications.Get(ctx, p.SessionID); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthorizationCodeRedeemIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	c := storage.AuthorizationCode{
		Code:        storage.NewAuthorizationCode(),
		ClientID:    "https://app.example.com/",
		RedirectURI: "https://app.example.com/cb",
		ProfileURL:  "https://jane.example.com/",
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Minute),
	}
	if err := store.AuthorizationCodes.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	redeem := func() error {
		return store.AuthorizationCodes.Update(ctx, c.Code, func(old storage.AuthorizationCode) (storage.AuthorizationCode, error) {
			if old.IsUsed {
				return old, storage.ErrAlreadyExists
			}
			old.IsUsed = true
			return old, nil
		})
	}
	if err := redeem(); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if err := redeem(); err != storage.ErrAlreadyExists {
		t.Fatalf("second redeem should fail, got %v", err)
	}
}

func TestRefreshTokenRevokeAndDeleteExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	profile := "https://jane.example.com/"
	tok := storage.RefreshToken{Token: "tok1", ProfileURL: profile, ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.RefreshTokens.Create(ctx, tok); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.RefreshTokens.RevokeAllForProfile(ctx, profile); err != nil {
		t.Fatalf("RevokeAllForProfile: %v", err)
	}
	got, err := store.RefreshTokens.Get(ctx, "tok1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.IsRevoked {
		t.Errorf("expected token revoked")
	}

	n, err := store.RefreshTokens.DeleteExpired(ctx, time.Now(), 0)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected revoked token with zero retention to be removed, got %d", n)
	}
}
