package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	tstorage "github.com/myquay/talos/storage"
)

// encoder wraps a Go value so database/sql marshals it to JSON on write,
// the same trick the teacher's crud.go uses for slice/struct columns.
func encoder(i interface{}) driver.Valuer { return jsonEncoder{i} }

// decoder wraps a destination so database/sql unmarshals JSON into it on
// read.
func decoder(i interface{}) sql.Scanner { return jsonDecoder{i} }

type jsonEncoder struct{ i interface{} }

func (j jsonEncoder) Value() (driver.Value, error) {
	b, err := json.Marshal(j.i)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return b, nil
}

type jsonDecoder struct{ i interface{} }

func (j jsonDecoder) Scan(dest interface{}) error {
	if dest == nil {
		return errors.New("nil value")
	}
	b, ok := dest.([]byte)
	if !ok {
		return fmt.Errorf("expected []byte got %T", dest)
	}
	return json.Unmarshal(b, j.i)
}

func isConstraintErr(err error) bool {
	// driver-agnostic check: go-sqlite3 reports primary-key violations as
	// "UNIQUE constraint failed" / "PRIMARY KEY constraint failed" text.
	if err == nil {
		return false
	}
	msg := err.Error()
	return contains(msg, "UNIQUE constraint") || contains(msg, "PRIMARY KEY constraint")
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}

type pendingRepo conn

func (r *pendingRepo) c() *conn { return (*conn)(r) }

func (r *pendingRepo) Create(ctx context.Context, p tstorage.PendingAuthentication) error {
	_, err := r.c().Exec(`
		insert into pending_authentication (
			session_id, client_id, redirect_uri, state, code_challenge, code_challenge_method,
			scopes, profile_url, discovered_providers, selected_provider_type, provider_state,
			client_name, client_logo_uri, is_authenticated, is_consent_given, created_at, expires_at
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		p.SessionID, p.ClientID, p.RedirectURI, p.State, p.CodeChallenge, p.CodeChallengeMethod,
		encoder(p.Scopes), p.ProfileURL, encoder(p.DiscoveredProviders), p.SelectedProviderType, p.ProviderState,
		p.ClientName, p.ClientLogoURI, p.IsAuthenticated, p.IsConsentGiven, p.CreatedAt.UTC(), p.ExpiresAt.UTC(),
	)
	if isConstraintErr(err) {
		return tstorage.ErrAlreadyExists
	}
	return err
}

func scanPending(row interface{ Scan(...interface{}) error }) (tstorage.PendingAuthentication, error) {
	var p tstorage.PendingAuthentication
	err := row.Scan(
		&p.SessionID, &p.ClientID, &p.RedirectURI, &p.State, &p.CodeChallenge, &p.CodeChallengeMethod,
		decoder(&p.Scopes), &p.ProfileURL, decoder(&p.DiscoveredProviders), &p.SelectedProviderType, &p.ProviderState,
		&p.ClientName, &p.ClientLogoURI, &p.IsAuthenticated, &p.IsConsentGiven, &p.CreatedAt, &p.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return p, tstorage.ErrNotFound
	}
	return p, err
}

const pendingColumns = `
	session_id, client_id, redirect_uri, state, code_challenge, code_challenge_method,
	scopes, profile_url, discovered_providers, selected_provider_type, provider_state,
	client_name, client_logo_uri, is_authenticated, is_consent_given, created_at, expires_at
`

func (r *pendingRepo) Get(ctx context.Context, sessionID string) (tstorage.PendingAuthentication, error) {
	row := r.c().QueryRow(`select `+pendingColumns+` from pending_authentication where session_id = ? and expires_at > ?;`, sessionID, nowUTC())
	return scanPending(row)
}

func (r *pendingRepo) GetByProviderState(ctx context.Context, providerState string) (tstorage.PendingAuthentication, error) {
	row := r.c().QueryRow(`select `+pendingColumns+` from pending_authentication where provider_state = ? and provider_state != '' and expires_at > ?;`, providerState, nowUTC())
	return scanPending(row)
}

func (r *pendingRepo) Update(ctx context.Context, sessionID string, updater func(tstorage.PendingAuthentication) (tstorage.PendingAuthentication, error)) error {
	return r.c().ExecTx(func(tx *trans) error {
		row := tx.QueryRow(`select `+pendingColumns+` from pending_authentication where session_id = ?;`, sessionID)
		p, err := scanPending(row)
		if err != nil {
			return err
		}
		p, err = updater(p)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			update pending_authentication set
				client_id = ?, redirect_uri = ?, state = ?, code_challenge = ?, code_challenge_method = ?,
				scopes = ?, profile_url = ?, discovered_providers = ?, selected_provider_type = ?, provider_state = ?,
				client_name = ?, client_logo_uri = ?, is_authenticated = ?, is_consent_given = ?, expires_at = ?
			where session_id = ?;
		`,
			p.ClientID, p.RedirectURI, p.State, p.CodeChallenge, p.CodeChallengeMethod,
			encoder(p.Scopes), p.ProfileURL, encoder(p.DiscoveredProviders), p.SelectedProviderType, p.ProviderState,
			p.ClientName, p.ClientLogoURI, p.IsAuthenticated, p.IsConsentGiven, p.ExpiresAt.UTC(),
			sessionID,
		)
		return err
	})
}

func (r *pendingRepo) Delete(ctx context.Context, sessionID string) error {
	res, err := r.c().Exec(`delete from pending_authentication where session_id = ?;`, sessionID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *pendingRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.c().Exec(`delete from pending_authentication where expires_at < ?;`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type authCodeRepo conn

func (r *authCodeRepo) c() *conn { return (*conn)(r) }

const authCodeColumns = `
	code, client_id, redirect_uri, profile_url, scopes, code_challenge, code_challenge_method,
	created_at, expires_at, is_used
`

func (r *authCodeRepo) Create(ctx context.Context, c tstorage.AuthorizationCode) error {
	_, err := r.c().Exec(`
		insert into authorization_code (`+authCodeColumns+`) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		c.Code, c.ClientID, c.RedirectURI, c.ProfileURL, encoder(c.Scopes), c.CodeChallenge, c.CodeChallengeMethod,
		c.CreatedAt.UTC(), c.ExpiresAt.UTC(), c.IsUsed,
	)
	if isConstraintErr(err) {
		return tstorage.ErrAlreadyExists
	}
	return err
}

func scanAuthCode(row interface{ Scan(...interface{}) error }) (tstorage.AuthorizationCode, error) {
	var c tstorage.AuthorizationCode
	err := row.Scan(
		&c.Code, &c.ClientID, &c.RedirectURI, &c.ProfileURL, decoder(&c.Scopes), &c.CodeChallenge, &c.CodeChallengeMethod,
		&c.CreatedAt, &c.ExpiresAt, &c.IsUsed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return c, tstorage.ErrNotFound
	}
	return c, err
}

func (r *authCodeRepo) Get(ctx context.Context, code string) (tstorage.AuthorizationCode, error) {
	row := r.c().QueryRow(`select `+authCodeColumns+` from authorization_code where code = ?;`, code)
	return scanAuthCode(row)
}

func (r *authCodeRepo) Update(ctx context.Context, code string, updater func(tstorage.AuthorizationCode) (tstorage.AuthorizationCode, error)) error {
	return r.c().ExecTx(func(tx *trans) error {
		row := tx.QueryRow(`select `+authCodeColumns+` from authorization_code where code = ?;`, code)
		c, err := scanAuthCode(row)
		if err != nil {
			return err
		}
		c, err = updater(c)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`update authorization_code set is_used = ? where code = ?;`, c.IsUsed, code)
		return err
	})
}

func (r *authCodeRepo) Delete(ctx context.Context, code string) error {
	res, err := r.c().Exec(`delete from authorization_code where code = ?;`, code)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *authCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.c().Exec(`delete from authorization_code where expires_at < ?;`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type refreshTokenRepo conn

func (r *refreshTokenRepo) c() *conn { return (*conn)(r) }

const refreshTokenColumns = `
	token, profile_url, client_id, scopes, created_at, expires_at, is_revoked, revoked_at
`

func (r *refreshTokenRepo) Create(ctx context.Context, t tstorage.RefreshToken) error {
	var revokedAt interface{}
	if !t.RevokedAt.IsZero() {
		revokedAt = t.RevokedAt.UTC()
	}
	_, err := r.c().Exec(`
		insert into refresh_token (`+refreshTokenColumns+`) values (?, ?, ?, ?, ?, ?, ?, ?);
	`,
		t.Token, t.ProfileURL, t.ClientID, encoder(t.Scopes), t.CreatedAt.UTC(), t.ExpiresAt.UTC(), t.IsRevoked, revokedAt,
	)
	if isConstraintErr(err) {
		return tstorage.ErrAlreadyExists
	}
	return err
}

func scanRefreshToken(row interface{ Scan(...interface{}) error }) (tstorage.RefreshToken, error) {
	var t tstorage.RefreshToken
	var revokedAt sql.NullTime
	err := row.Scan(
		&t.Token, &t.ProfileURL, &t.ClientID, decoder(&t.Scopes), &t.CreatedAt, &t.ExpiresAt, &t.IsRevoked, &revokedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return t, tstorage.ErrNotFound
	}
	if revokedAt.Valid {
		t.RevokedAt = revokedAt.Time
	}
	return t, err
}

func (r *refreshTokenRepo) Get(ctx context.Context, token string) (tstorage.RefreshToken, error) {
	row := r.c().QueryRow(`select `+refreshTokenColumns+` from refresh_token where token = ?;`, token)
	return scanRefreshToken(row)
}

func (r *refreshTokenRepo) Update(ctx context.Context, token string, updater func(tstorage.RefreshToken) (tstorage.RefreshToken, error)) error {
	return r.c().ExecTx(func(tx *trans) error {
		row := tx.QueryRow(`select `+refreshTokenColumns+` from refresh_token where token = ?;`, token)
		t, err := scanRefreshToken(row)
		if err != nil {
			return err
		}
		t, err = updater(t)
		if err != nil {
			return err
		}
		var revokedAt interface{}
		if !t.RevokedAt.IsZero() {
			revokedAt = t.RevokedAt.UTC()
		}
		_, err = tx.Exec(`update refresh_token set is_revoked = ?, revoked_at = ? where token = ?;`, t.IsRevoked, revokedAt, token)
		return err
	})
}

func (r *refreshTokenRepo) Delete(ctx context.Context, token string) error {
	res, err := r.c().Exec(`delete from refresh_token where token = ?;`, token)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *refreshTokenRepo) RotateRefreshToken(ctx context.Context, oldToken string, next tstorage.RefreshToken) error {
	return r.c().ExecTx(func(tx *trans) error {
		row := tx.QueryRow(`select `+refreshTokenColumns+` from refresh_token where token = ?;`, oldToken)
		old, err := scanRefreshToken(row)
		if err != nil {
			return err
		}
		if old.IsRevoked {
			return tstorage.ErrNotFound
		}

		revokedAt := nowUTC()
		res, err := tx.Exec(`update refresh_token set is_revoked = 1, revoked_at = ? where token = ? and is_revoked = 0;`, revokedAt, oldToken)
		if err != nil {
			return err
		}
		if err := checkRowsAffected(res); err != nil {
			return err
		}

		var nextRevokedAt interface{}
		if !next.RevokedAt.IsZero() {
			nextRevokedAt = next.RevokedAt.UTC()
		}
		_, err = tx.Exec(`
			insert into refresh_token (`+refreshTokenColumns+`) values (?, ?, ?, ?, ?, ?, ?, ?);
		`,
			next.Token, next.ProfileURL, next.ClientID, encoder(next.Scopes), next.CreatedAt.UTC(), next.ExpiresAt.UTC(), next.IsRevoked, nextRevokedAt,
		)
		if isConstraintErr(err) {
			return tstorage.ErrAlreadyExists
		}
		return err
	})
}

func (r *refreshTokenRepo) RevokeAllForProfile(ctx context.Context, profileURL string) error {
	_, err := r.c().Exec(`update refresh_token set is_revoked = 1, revoked_at = ? where profile_url = ? and is_revoked = 0;`, nowUTC(), profileURL)
	return err
}

func (r *refreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time, retainRevoked time.Duration) (int64, error) {
	cutoff := now.Add(-retainRevoked).UTC()
	res, err := r.c().Exec(`
		delete from refresh_token
		where (is_revoked = 0 and expires_at < ?)
		   or (is_revoked = 1 and revoked_at < ?);
	`, now.UTC(), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tstorage.ErrNotFound
	}
	return nil
}
