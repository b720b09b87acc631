package sql

import (
	"database/sql"
	"fmt"
)

type migration struct {
	stmt string
}

var migrations = []migration{
	{stmt: `
		create table pending_authentication (
			session_id text not null primary key,
			client_id text not null,
			redirect_uri text not null,
			state text not null,
			code_challenge text not null,
			code_challenge_method text not null,
			scopes blob not null,
			profile_url text not null,
			discovered_providers blob not null,
			selected_provider_type text not null,
			provider_state text not null,
			client_name text not null,
			client_logo_uri text not null,
			is_authenticated integer not null,
			is_consent_given integer not null,
			created_at timestamp not null,
			expires_at timestamp not null
		);
		create index pending_authentication_provider_state on pending_authentication (provider_state);
		create index pending_authentication_expires_at on pending_authentication (expires_at);
	`},
	{stmt: `
		create table authorization_code (
			code text not null primary key,
			client_id text not null,
			redirect_uri text not null,
			profile_url text not null,
			scopes blob not null,
			code_challenge text not null,
			code_challenge_method text not null,
			created_at timestamp not null,
			expires_at timestamp not null,
			is_used integer not null
		);
		create index authorization_code_expires_at on authorization_code (expires_at);
	`},
	{stmt: `
		create table refresh_token (
			token text not null primary key,
			profile_url text not null,
			client_id text not null,
			scopes blob not null,
			created_at timestamp not null,
			expires_at timestamp not null,
			is_revoked integer not null,
			revoked_at timestamp
		);
		create index refresh_token_profile_url on refresh_token (profile_url);
		create index refresh_token_expires_at on refresh_token (expires_at);
	`},
}

// migrate runs any migrations not yet recorded in the migrations table,
// each inside its own transaction, the same incremental approach as the
// teacher's migrate.go.
func (c *conn) migrate() (int, error) {
	if _, err := c.Exec(`
		create table if not exists migrations (
			num integer not null,
			at timestamp not null
		);
	`); err != nil {
		return 0, fmt.Errorf("creating migrations table: %w", err)
	}

	applied := 0
	for {
		done := false
		err := c.ExecTx(func(tx *trans) error {
			var num sql.NullInt64
			if err := tx.QueryRow(`select max(num) from migrations;`).Scan(&num); err != nil {
				return fmt.Errorf("select max migration: %w", err)
			}
			n := 0
			if num.Valid {
				n = int(num.Int64)
			}
			if n >= len(migrations) {
				done = true
				return nil
			}

			m := migrations[n]
			if _, err := tx.Exec(m.stmt); err != nil {
				return fmt.Errorf("migration %d failed: %w", n+1, err)
			}
			if _, err := tx.Exec(`insert into migrations (num, at) values (?, ?);`, n+1, nowUTC()); err != nil {
				return fmt.Errorf("update migrations table: %w", err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		if done {
			break
		}
		applied++
	}
	return applied, nil
}
