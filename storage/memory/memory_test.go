package memory

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/myquay/talos/storage"
)

func newTestStore() *storage.Store {
	return New(slog.Default())
}

func TestPendingAuthenticationCRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	p := storage.PendingAuthentication{
		SessionID:     storage.NewSessionID(),
		ClientID:      "https://app.example.com/",
		ProviderState: "state123",
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
	if got.ClientID != p.ClientID {
		t.Errorf("ClientID mismatch: %q", got.ClientID)
	}

	got, err = store.PendingAuthentications.GetByProviderState(ctx, "state123")
	if err != nil {
		t.Fatalf("GetByProviderState: %v", err)
	}
	if got.SessionID != p.SessionID {
		t.Errorf("SessionID mismatch")
	}

	err = store.PendingAuthentications.Update(ctx, p.SessionID, func(old storage.PendingAuthentication) (storage.PendingAuthentication, error) {
		old.IsAuthenticated = true
		return old, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = store.PendingAuthentications.Get(ctx, p.SessionID)
	if !got.IsAuthenticated {
		t.Errorf("expected IsAuthenticated true after update")
	}

	if err := store.PendingAuthentications.Delete(ctx, p.SessionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.PendingAuthentications.Get(ctx, p.SessionID); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPendingAuthenticationGetExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	p := storage.PendingAuthentication{
		SessionID: storage.NewSessionID(),
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := store.PendingAuthentications.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.PendingAuthentications.Get(ctx, p.SessionID); err != storage.ErrNotFound {
		t.Fatalf("expected expired session to read as ErrNotFound, got %v", err)
	}
}

func TestPendingAuthenticationDeleteExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	live := storage.PendingAuthentication{SessionID: storage.NewSessionID(), ExpiresAt: time.Now().Add(time.Hour)}
	dead := storage.PendingAuthentication{SessionID: storage.NewSessionID(), ExpiresAt: time.Now().Add(-time.Hour)}
	store.PendingAuthentications.Create(ctx, live)
	store.PendingAuthentications.Create(ctx, dead)

	n, err := store.PendingAuthentications.DeleteExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired record removed, got %d", n)
	}
}

func TestAuthorizationCodeRedeemIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

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
		t.Fatalf("first redeem should succeed: %v", err)
	}
	if err := redeem(); err != storage.ErrAlreadyExists {
		t.Fatalf("second redeem should fail with ErrAlreadyExists, got %v", err)
	}
}

func TestRefreshTokenRevokeAllForProfile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	profile := "https://jane.example.com/"
	t1 := storage.RefreshToken{Token: "tok1", ProfileURL: profile, ExpiresAt: time.Now().Add(time.Hour)}
	t2 := storage.RefreshToken{Token: "tok2", ProfileURL: profile, ExpiresAt: time.Now().Add(time.Hour)}
	t3 := storage.RefreshToken{Token: "tok3", ProfileURL: "https://other.example.com/", ExpiresAt: time.Now().Add(time.Hour)}
	store.RefreshTokens.Create(ctx, t1)
	store.RefreshTokens.Create(ctx, t2)
	store.RefreshTokens.Create(ctx, t3)

	if err := store.RefreshTokens.RevokeAllForProfile(ctx, profile); err != nil {
		t.Fatalf("RevokeAllForProfile: %v", err)
	}

	got1, _ := store.RefreshTokens.Get(ctx, "tok1")
	got2, _ := store.RefreshTokens.Get(ctx, "tok2")
	got3, _ := store.RefreshTokens.Get(ctx, "tok3")
	if !got1.IsRevoked || !got2.IsRevoked {
		t.Errorf("expected tok1 and tok2 revoked")
	}
	if got3.IsRevoked {
		t.Errorf("expected tok3 (other profile) to remain unrevoked")
	}
}

func TestRefreshTokenDeleteExpiredRetainsRevokedWindow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	recentlyRevoked := storage.RefreshToken{
		Token:     "recent",
		ExpiresAt: time.Now().Add(time.Hour),
		IsRevoked: true,
		RevokedAt: time.Now().Add(-time.Minute),
	}
	longRevoked := storage.RefreshToken{
		Token:     "stale",
		ExpiresAt: time.Now().Add(time.Hour),
		IsRevoked: true,
		RevokedAt: time.Now().Add(-48 * time.Hour),
	}
	store.RefreshTokens.Create(ctx, recentlyRevoked)
	store.RefreshTokens.Create(ctx, longRevoked)

	n, err := store.RefreshTokens.DeleteExpired(ctx, time.Now(), 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 stale revoked token removed, got %d", n)
	}
	if _, err := store.RefreshTokens.Get(ctx, "recent"); err != nil {
		t.Errorf("expected recently revoked token retained, got %v", err)
	}
}
