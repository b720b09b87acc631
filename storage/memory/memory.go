// Package memory provides an in-memory implementation of the storage
// repositories, adapted from the teacher's mutex-guarded map + tx()
// closure pattern.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/myquay/talos/storage"
)

// New returns a *storage.Store backed entirely by in-memory maps. Suitable
// for development and single-process "personal-scale" deployments that
// accept losing all state on restart.
func New(logger *slog.Logger) *storage.Store {
	m := &memStorage{
		pending:       make(map[string]storage.PendingAuthentication),
		authCodes:     make(map[string]storage.AuthorizationCode),
		refreshTokens: make(map[string]storage.RefreshToken),
		logger:        logger,
	}
	return &storage.Store{
		PendingAuthentications: (*pendingRepo)(m),
		AuthorizationCodes:     (*authCodeRepo)(m),
		RefreshTokens:          (*refreshTokenRepo)(m),
		Closer:                 func() error { return nil },
	}
}

type memStorage struct {
	mu sync.Mutex

	pending       map[string]storage.PendingAuthentication
	authCodes     map[string]storage.AuthorizationCode
	refreshTokens map[string]storage.RefreshToken

	logger *slog.Logger
}

func (s *memStorage) tx(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f()
}

type pendingRepo memStorage

func (r *pendingRepo) s() *memStorage { return (*memStorage)(r) }

func (r *pendingRepo) Create(ctx context.Context, p storage.PendingAuthentication) (err error) {
	r.s().tx(func() {
		if _, ok := r.s().pending[p.SessionID]; ok {
			err = storage.ErrAlreadyExists
			return
		}
		r.s().pending[p.SessionID] = p
	})
	return
}

func (r *pendingRepo) Get(ctx context.Context, sessionID string) (p storage.PendingAuthentication, err error) {
	r.s().tx(func() {
		var ok bool
		if p, ok = r.s().pending[sessionID]; !ok {
			err = storage.ErrNotFound
			return
		}
		if !p.ExpiresAt.IsZero() && time.Now().After(p.ExpiresAt) {
			err = storage.ErrNotFound
		}
	})
	return
}

func (r *pendingRepo) GetByProviderState(ctx context.Context, providerState string) (p storage.PendingAuthentication, err error) {
	r.s().tx(func() {
		for _, candidate := range r.s().pending {
			if candidate.ProviderState == providerState && candidate.ProviderState != "" {
				if !candidate.ExpiresAt.IsZero() && time.Now().After(candidate.ExpiresAt) {
					continue
				}
				p = candidate
				return
			}
		}
		err = storage.ErrNotFound
	})
	return
}

func (r *pendingRepo) Update(ctx context.Context, sessionID string, updater func(storage.PendingAuthentication) (storage.PendingAuthentication, error)) (err error) {
	r.s().tx(func() {
		p, ok := r.s().pending[sessionID]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		if p, err = updater(p); err == nil {
			r.s().pending[sessionID] = p
		}
	})
	return
}

func (r *pendingRepo) Delete(ctx context.Context, sessionID string) (err error) {
	r.s().tx(func() {
		if _, ok := r.s().pending[sessionID]; !ok {
			err = storage.ErrNotFound
			return
		}
		delete(r.s().pending, sessionID)
	})
	return
}

func (r *pendingRepo) DeleteExpired(ctx context.Context, now time.Time) (count int64, err error) {
	r.s().tx(func() {
		for id, p := range r.s().pending {
			if !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt) {
				delete(r.s().pending, id)
				count++
			}
		}
	})
	return
}

type authCodeRepo memStorage

func (r *authCodeRepo) s() *memStorage { return (*memStorage)(r) }

func (r *authCodeRepo) Create(ctx context.Context, c storage.AuthorizationCode) (err error) {
	r.s().tx(func() {
		if _, ok := r.s().authCodes[c.Code]; ok {
			err = storage.ErrAlreadyExists
			return
		}
		r.s().authCodes[c.Code] = c
	})
	return
}

func (r *authCodeRepo) Get(ctx context.Context, code string) (c storage.AuthorizationCode, err error) {
	r.s().tx(func() {
		var ok bool
		if c, ok = r.s().authCodes[code]; !ok {
			err = storage.ErrNotFound
		}
	})
	return
}

func (r *authCodeRepo) Update(ctx context.Context, code string, updater func(storage.AuthorizationCode) (storage.AuthorizationCode, error)) (err error) {
	r.s().tx(func() {
		c, ok := r.s().authCodes[code]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		if c, err = updater(c); err == nil {
			r.s().authCodes[code] = c
		}
	})
	return
}

func (r *authCodeRepo) Delete(ctx context.Context, code string) (err error) {
	r.s().tx(func() {
		if _, ok := r.s().authCodes[code]; !ok {
			err = storage.ErrNotFound
			return
		}
		delete(r.s().authCodes, code)
	})
	return
}

func (r *authCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (count int64, err error) {
	r.s().tx(func() {
		for id, c := range r.s().authCodes {
			if now.After(c.ExpiresAt) {
				delete(r.s().authCodes, id)
				count++
			}
		}
	})
	return
}

type refreshTokenRepo memStorage

func (r *refreshTokenRepo) s() *memStorage { return (*memStorage)(r) }

func (r *refreshTokenRepo) Create(ctx context.Context, t storage.RefreshToken) (err error) {
	r.s().tx(func() {
		if _, ok := r.s().refreshTokens[t.Token]; ok {
			err = storage.ErrAlreadyExists
			return
		}
		r.s().refreshTokens[t.Token] = t
	})
	return
}

func (r *refreshTokenRepo) Get(ctx context.Context, token string) (t storage.RefreshToken, err error) {
	r.s().tx(func() {
		var ok bool
		if t, ok = r.s().refreshTokens[token]; !ok {
			err = storage.ErrNotFound
		}
	})
	return
}

func (r *refreshTokenRepo) Update(ctx context.Context, token string, updater func(storage.RefreshToken) (storage.RefreshToken, error)) (err error) {
	r.s().tx(func() {
		t, ok := r.s().refreshTokens[token]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		if t, err = updater(t); err == nil {
			r.s().refreshTokens[token] = t
		}
	})
	return
}

func (r *refreshTokenRepo) Delete(ctx context.Context, token string) (err error) {
	r.s().tx(func() {
		if _, ok := r.s().refreshTokens[token]; !ok {
			err = storage.ErrNotFound
			return
		}
		delete(r.s().refreshTokens, token)
	})
	return
}

func (r *refreshTokenRepo) RotateRefreshToken(ctx context.Context, oldToken string, next storage.RefreshToken) (err error) {
	r.s().tx(func() {
		old, ok := r.s().refreshTokens[oldToken]
		if !ok || old.IsRevoked {
			err = storage.ErrNotFound
			return
		}
		if _, ok := r.s().refreshTokens[next.Token]; ok {
			err = storage.ErrAlreadyExists
			return
		}
		old.IsRevoked = true
		old.RevokedAt = time.Now()
		r.s().refreshTokens[oldToken] = old
		r.s().refreshTokens[next.Token] = next
	})
	return
}

func (r *refreshTokenRepo) RevokeAllForProfile(ctx context.Context, profileURL string) (err error) {
	r.s().tx(func() {
		now := time.Now()
		for id, t := range r.s().refreshTokens {
			if t.ProfileURL == profileURL && !t.IsRevoked {
				t.IsRevoked = true
				t.RevokedAt = now
				r.s().refreshTokens[id] = t
			}
		}
	})
	return
}

func (r *refreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time, retainRevoked time.Duration) (count int64, err error) {
	r.s().tx(func() {
		for id, t := range r.s().refreshTokens {
			if t.IsRevoked {
				if now.After(t.RevokedAt.Add(retainRevoked)) {
					delete(r.s().refreshTokens, id)
					count++
				}
				continue
			}
			if now.After(t.ExpiresAt) {
				delete(r.s().refreshTokens, id)
				count++
			}
		}
	})
	return
}
