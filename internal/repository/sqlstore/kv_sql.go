package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"docshare/internal/repository"
)

// Dialect selects the SQL flavour spoken by the underlying driver.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// TableName is the table holding every key-value entry.
const TableName = "kv_entries"

// Store is a database/sql implementation of repository.KeyValueStore.
// It uses parameterized queries and contains no business logic.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New creates a Store over an opened database handle.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

var _ repository.KeyValueStore = (*Store)(nil)

// placeholder returns the n-th bind parameter for the dialect.
func (s *Store) placeholder(n int) string {
	switch s.dialect {
	case DialectPostgres:
		return fmt.Sprintf("$%d", n)
	default:
		return fmt.Sprintf("?%d", n)
	}
}

// Get fetches a single entry by key.
func (s *Store) Get(ctx context.Context, key string) (repository.Entry, error) {
	q := fmt.Sprintf(`
		SELECT key, value, version
		FROM %s
		WHERE key = %s
	`, TableName, s.placeholder(1))

	var e repository.Entry
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&e.Key, &e.Value, &e.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.Entry{}, repository.ErrNotFound
		}
		return repository.Entry{}, err
	}
	return e, nil
}

// Create inserts a new row at version 1; an existing key is left untouched.
func (s *Store) Create(ctx context.Context, key, value string) (repository.Entry, error) {
	q := fmt.Sprintf(`
		INSERT INTO %s (key, value, version, updated_at)
		VALUES (%s, %s, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO NOTHING
	`, TableName, s.placeholder(1), s.placeholder(2))

	res, err := s.db.ExecContext(ctx, q, key, value)
	if err != nil {
		return repository.Entry{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return repository.Entry{}, err
	}
	if n == 0 {
		return repository.Entry{}, repository.ErrKeyExists
	}
	return repository.Entry{Key: key, Value: value, Version: 1}, nil
}

// Update writes value only when the stored version still equals version.
func (s *Store) Update(ctx context.Context, key, value string, version int64) (repository.Entry, error) {
	q := fmt.Sprintf(`
		UPDATE %s
		SET value = %s, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE key = %s AND version = %s
	`, TableName, s.placeholder(2), s.placeholder(1), s.placeholder(3))

	res, err := s.db.ExecContext(ctx, q, key, value, version)
	if err != nil {
		return repository.Entry{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return repository.Entry{}, err
	}
	if n == 1 {
		return repository.Entry{Key: key, Value: value, Version: version + 1}, nil
	}

	// Nothing matched: tell a missing key apart from a stale version.
	if _, err := s.Get(ctx, key); err != nil {
		return repository.Entry{}, err
	}
	return repository.Entry{}, repository.ErrVersionConflict
}

// Delete removes a row by key. It does not return an error if the row does not exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE key = %s`, TableName, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, q, key)
	return err
}

// List returns the rows whose key starts with prefix, ordered by key.
func (s *Store) List(ctx context.Context, prefix string) ([]repository.Entry, error) {
	var cond string
	switch s.dialect {
	case DialectPostgres:
		cond = "starts_with(key, $1)"
	default:
		// LIKE is case-insensitive in SQLite, compare the leading characters instead.
		cond = "substr(key, 1, length(?1)) = ?1"
	}
	q := fmt.Sprintf(`
		SELECT key, value, version
		FROM %s
		WHERE %s
		ORDER BY key
	`, TableName, cond)

	rows, err := s.db.QueryContext(ctx, q, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]repository.Entry, 0)
	for rows.Next() {
		var e repository.Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.Version); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
