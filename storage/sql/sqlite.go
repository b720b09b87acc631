package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/myquay/talos/storage"
)

// Config is the on-disk SQLite configuration, analogous to the teacher's
// SQLite3 options struct.
type Config struct {
	// File is the path to the SQLite database file. Use ":memory:" for an
	// ephemeral in-process database (mainly useful for tests; prefer
	// storage/memory for that).
	File string `json:"file"`
}

// Open creates the three repositories backed by a single SQLite
// connection, running any outstanding migrations first.
func Open(logger *slog.Logger, cfg Config) (*storage.Store, error) {
	db, err := sql.Open("sqlite3", cfg.File)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}

	// SQLite allows only one writer at a time; serialize all access
	// through a single connection rather than fighting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	c := &conn{db: db, logger: logger}
	if _, err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &storage.Store{
		PendingAuthentications: (*pendingRepo)(c),
		AuthorizationCodes:     (*authCodeRepo)(c),
		RefreshTokens:          (*refreshTokenRepo)(c),
		Closer:                 c.Close,
		Pinger: func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
	}, nil
}
