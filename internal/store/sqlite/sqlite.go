// Package sqlite is the embedded routing store, backed by mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/store"
	"overlay-router/internal/store/sqlstore"
)

// Kind is the ROUTING_STORE value selecting this backend
const Kind = "sqlite"

var dialect = sqlstore.Dialect{
	Name:        Kind,
	Placeholder: sqlstore.Question,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS routing_entries (
			id TEXT PRIMARY KEY,
			source_community TEXT NOT NULL,
			destination_community TEXT NOT NULL,
			gateway_member_id TEXT NOT NULL,
			gateway_community TEXT NOT NULL,
			cost INTEGER NOT NULL CHECK (cost >= 1),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_routing_entries_bucket
			ON routing_entries (destination_community, source_community, cost)`,
	},
}

type Config struct {
	DatabasePath string
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.ConfigError("database path is required")
	}
	return nil
}

// Open opens (creating if needed) the database file and migrates it
func Open(ctx context.Context, config *Config) (*sqlstore.Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := sqlstore.New(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func init() {
	store.Register(Kind, func(ctx context.Context, cfg store.Config) (store.Backend, error) {
		return Open(ctx, &Config{DatabasePath: cfg.DatabasePath})
	})
}
