package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hubenschmidt/go-admissions/core"
	"github.com/hubenschmidt/go-admissions/vector"
)

// sqlStore implements DocumentStore on database/sql. Queries are written
// with ? placeholders and rewritten for drivers that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool
}

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func runMigrations(db *sql.DB, fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.Exec(string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *sqlStore) Save(ctx context.Context, doc core.Document, chunks []core.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO documents (id, title, content, category, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		doc.ID, doc.Title, doc.Content, string(doc.Category), doc.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO chunks (id, document_id, position, content, embedding, model)
		VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, doc.ID, c.Index, c.Content, vector.Encode(c.Embedding), c.Model); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (core.Document, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, title, content, category, created_at
		FROM documents WHERE id = ?`), id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Document{}, core.ErrNotFound
	}
	if err != nil {
		return core.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *sqlStore) List(ctx context.Context) ([]core.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, category, created_at
		FROM documents ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []core.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes chunks explicitly as well, so the cascade does not depend
// on foreign key enforcement being switched on.
func (s *sqlStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM chunks WHERE document_id = ?`), id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *sqlStore) Chunks(ctx context.Context) ([]core.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.position, c.content, c.embedding, c.model
		FROM chunks c JOIN documents d ON d.id = c.document_id
		ORDER BY d.created_at ASC, d.id ASC, c.position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []core.Chunk
	for rows.Next() {
		var c core.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &blob, &c.Model); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if c.Embedding, err = vector.Decode(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (core.Document, error) {
	var doc core.Document
	var category string
	var created int64
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &category, &created); err != nil {
		return core.Document{}, err
	}
	doc.Category = core.Category(category)
	doc.CreatedAt = time.Unix(0, created).UTC()
	return doc, nil
}
