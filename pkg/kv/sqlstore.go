package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// DBProvider is satisfied by database clients that expose a sql.DB
// handle. Both PostgresClient and SupabaseClient implement it, so the
// same SQL store works against either.
type DBProvider interface {
	DB() *sql.DB
}

// SQLStore is a Store backed by a Postgres-compatible database reached
// through a DBProvider.
type SQLStore struct {
	provider DBProvider
	closer   func(context.Context) error
}

// NewSQLStore wraps an already-connected provider and ensures the kv
// schema exists. closer is invoked by Close; pass nil if the caller
// manages the connection lifecycle itself.
func NewSQLStore(ctx context.Context, provider DBProvider, closer func(context.Context) error) (*SQLStore, error) {
	if provider == nil || provider.DB() == nil {
		return nil, fmt.Errorf("sql store requires a connected database")
	}

	schema := `CREATE TABLE IF NOT EXISTS kv_items (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := provider.DB().ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create kv schema: %w", err)
	}

	return &SQLStore{provider: provider, closer: closer}, nil
}

// Put stores value under key, replacing any previous value.
func (s *SQLStore) Put(ctx context.Context, key, value string) error {
	_, err := s.provider.DB().ExecContext(ctx,
		`INSERT INTO kv_items (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.provider.DB().QueryRowContext(ctx,
		`SELECT value FROM kv_items WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// ListByPrefix returns up to limit keys starting with prefix, ordered by key.
func (s *SQLStore) ListByPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	query := `SELECT key FROM kv_items WHERE key >= $1 ORDER BY key`
	args := []any{prefix}
	if upper, ok := prefixUpperBound(prefix); ok {
		query = `SELECT key FROM kv_items WHERE key >= $1 AND key < $2 ORDER BY key`
		args = append(args, upper)
	}
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.provider.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// Close closes the underlying connection via the configured closer.
func (s *SQLStore) Close(ctx context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer(ctx)
}
