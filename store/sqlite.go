package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/hubenschmidt/go-admissions/store/migrations"
)

// SQLiteStore implements DocumentStore using SQLite.
type SQLiteStore struct {
	sqlStore
	path string
}

// NewSQLiteStore opens (or creates) the database file at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "data/admissions.db"
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	// pragmas go in the DSN so every pooled connection gets them
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := runMigrations(db, migrations.SQLite, "sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{sqlStore: sqlStore{db: db}, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}
