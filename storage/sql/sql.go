// Package sql provides a SQLite-backed implementation of the storage
// repositories, adapted from the teacher's conn/trans query-translation
// layer but narrowed to the single SQLite flavor (§11 drops the
// postgres/mysql flavors along with lib/pq and go-sql-driver/mysql,
// since personal-scale deployments don't need a client/server database).
package sql

import (
	"database/sql"
	"log/slog"
	"time"
)

// conn is the main database connection, mirroring the teacher's conn type
// but without the flavor-translation indirection a single backend doesn't
// need.
type conn struct {
	db     *sql.DB
	logger *slog.Logger
}

func (c *conn) Close() error {
	return c.db.Close()
}

func (c *conn) Exec(query string, args ...interface{}) (sql.Result, error) {
	return c.db.Exec(query, args...)
}

func (c *conn) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.Query(query, args...)
}

func (c *conn) QueryRow(query string, args ...interface{}) *sql.Row {
	return c.db.QueryRow(query, args...)
}

// ExecTx runs fn inside a transaction, rolling back on any error it
// returns.
func (c *conn) ExecTx(fn func(tx *trans) error) error {
	sqlTx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(&trans{sqlTx}); err != nil {
		sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

type trans struct {
	tx *sql.Tx
}

func (t *trans) Exec(query string, args ...interface{}) (sql.Result, error) {
	return t.tx.Exec(query, args...)
}

func (t *trans) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.Query(query, args...)
}

func (t *trans) QueryRow(query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRow(query, args...)
}

// nowUTC is used in place of SQLite's own now() so stored timestamps sort
// and compare consistently with time.Time values read back from the rows.
func nowUTC() time.Time {
	return time.Now().UTC()
}
