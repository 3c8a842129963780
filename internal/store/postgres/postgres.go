// Package postgres is the shared routing store for clustered nodes. It talks
// to PostgreSQL through pgx's database/sql driver.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/store"
	"overlay-router/internal/store/sqlstore"
)

// Kind is the ROUTING_STORE value selecting this backend
const Kind = "postgres"

var dialect = sqlstore.Dialect{
	Name:        Kind,
	Placeholder: sqlstore.Dollar,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS routing_entries (
			id TEXT PRIMARY KEY,
			source_community TEXT NOT NULL,
			destination_community TEXT NOT NULL,
			gateway_member_id TEXT NOT NULL,
			gateway_community TEXT NOT NULL,
			cost INTEGER NOT NULL CHECK (cost >= 1),
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_routing_entries_bucket
			ON routing_entries (destination_community, source_community, cost)`,
	},
}

// Open connects with a postgres:// URL or key=value DSN and migrates
func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	if dsn == "" {
		return nil, errors.ConfigError("POSTGRES_DSN is required for the postgres routing store")
	}

	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid PostgreSQL DSN: %v", err))
	}

	db := stdlib.OpenDB(*connConfig)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.ConnectionError("failed to connect to PostgreSQL database", err)
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
		return Open(ctx, cfg.PostgresDSN)
	})
}
