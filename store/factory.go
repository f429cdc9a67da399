package store

import (
	"fmt"
	"strings"
)

// New creates a document store based on the DSN.
// - Empty DSN: in-memory store
// - postgres:// or postgresql://: PostgreSQL
// - Anything else: SQLite at the specified path
func New(dsn string) (DocumentStore, error) {
	if dsn == "" {
		return NewMemoryStore(), nil
	}

	if IsPostgres(dsn) {
		s, err := NewPostgresStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	}

	s, err := NewSQLiteStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return s, nil
}

// IsPostgres reports whether dsn selects PostgreSQL.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
