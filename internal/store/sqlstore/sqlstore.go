// Package sqlstore persists routing entries through database/sql. Dialects
// differ only in placeholders and the column types of the schema.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"overlay-router/internal/common/errors"
	"overlay-router/internal/routing"
)

// Dialect describes one SQL database flavour
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter
	Placeholder func(n int) string
	// Schema creates the entries table if it is missing
	Schema []string
}

// Question renders "?" placeholders
func Question(int) string { return "?" }

// Dollar renders "$n" placeholders
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

const columns = "id, source_community, destination_community, gateway_member_id, gateway_community, cost"

// Store implements routing.Store over a *sql.DB
type Store struct {
	db      *sql.DB
	dialect Dialect

	loadQuery   string
	upsertQuery string
	deleteQuery string
	clearQuery  string
}

// New wraps db and applies the dialect schema
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	s.prepareQueries()

	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) prepareQueries() {
	p := s.dialect.Placeholder
	binds := make([]string, 6)
	for i := range binds {
		binds[i] = p(i + 1)
	}

	s.loadQuery = "SELECT " + columns + " FROM routing_entries ORDER BY destination_community, source_community, cost, id"
	s.upsertQuery = fmt.Sprintf(`INSERT INTO routing_entries (%s) VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET
			source_community = excluded.source_community,
			destination_community = excluded.destination_community,
			gateway_member_id = excluded.gateway_member_id,
			gateway_community = excluded.gateway_community,
			cost = excluded.cost`, columns, strings.Join(binds, ", "))
	s.deleteQuery = "DELETE FROM routing_entries WHERE id = " + p(1)
	s.clearQuery = "DELETE FROM routing_entries"
}

func (s *Store) migrate(ctx context.Context) error {
	for _, q := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Name() string { return s.dialect.Name }

// DB returns the underlying handle
func (s *Store) DB() *sql.DB { return s.db }

// Load reads every entry
func (s *Store) Load(ctx context.Context) ([]routing.Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.loadQuery)
	if err != nil {
		return nil, errors.ConnectionError("failed to load routing entries", err)
	}
	defer rows.Close()

	var entries []routing.Entry
	for rows.Next() {
		var e routing.Entry
		if err := rows.Scan(&e.ID, &e.SourceCommunity, &e.DestinationCommunity, &e.GatewayMemberID, &e.GatewayCommunity, &e.Cost); err != nil {
			return nil, errors.FormatError("failed to scan routing entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ConnectionError("failed to load routing entries", err)
	}
	return entries, nil
}

// Insert writes entry, overwriting a row with the same id
func (s *Store) Insert(ctx context.Context, entry routing.Entry) error {
	if err := upsert(ctx, s.db, s.upsertQuery, entry); err != nil {
		return errors.ConnectionError("failed to insert routing entry", err).WithContext("id", entry.ID)
	}
	return nil
}

// Update replaces old with updated in one transaction
func (s *Store) Update(ctx context.Context, old, updated routing.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.ConnectionError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if old.ID != updated.ID {
		if _, err := tx.ExecContext(ctx, s.deleteQuery, old.ID); err != nil {
			return errors.ConnectionError("failed to delete replaced routing entry", err).WithContext("id", old.ID)
		}
	}
	if err := upsert(ctx, tx, s.upsertQuery, updated); err != nil {
		return errors.ConnectionError("failed to update routing entry", err).WithContext("id", updated.ID)
	}
	if err := tx.Commit(); err != nil {
		return errors.ConnectionError("failed to commit routing entry update", err)
	}
	return nil
}

// DeleteAll removes every entry
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.clearQuery); err != nil {
		return errors.ConnectionError("failed to clear routing entries", err)
	}
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, query string, e routing.Entry) error {
	_, err := db.ExecContext(ctx, query, e.ID, e.SourceCommunity, e.DestinationCommunity, e.GatewayMemberID, e.GatewayCommunity, e.Cost)
	return err
}
