package vector

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hubenschmidt/go-admissions/core"
)

// PgVectorIndex is a PostgreSQL-based vector index using pgvector.
type PgVectorIndex struct {
	db        *sql.DB
	dimension int
}

// NewPgVectorIndex connects to PostgreSQL and prepares the chunk_vectors table.
// The dimension parameter specifies the embedding dimension (e.g., 1536 for OpenAI).
// An existing table with a different vector dimension is rejected.
func NewPgVectorIndex(ctx context.Context, dsn string, dimension int) (*PgVectorIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", core.ErrInvalidConfig, dimension)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	idx := &PgVectorIndex{db: db, dimension: dimension}
	if err := idx.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return idx, nil
}

func (s *PgVectorIndex) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunk_vectors (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			document_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL
		)`, s.dimension),
		`ALTER TABLE chunk_vectors ADD COLUMN IF NOT EXISTS model TEXT NOT NULL DEFAULT ''`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_vectors_document ON chunk_vectors (document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_vectors_embedding ON chunk_vectors USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	var stored int
	err := s.db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'chunk_vectors'::regclass AND attname = 'embedding'
	`).Scan(&stored)
	if err != nil {
		return fmt.Errorf("read vector dimension: %w", err)
	}
	if stored != s.dimension {
		return core.DimensionError(s.dimension, stored)
	}
	return nil
}

// Upsert stores entries in a single transaction. A replaced entry keeps its seq,
// so its tie-break rank is unchanged.
func (s *PgVectorIndex) Upsert(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if e.ID == "" {
			return core.Validationf("entry id is required")
		}
		if err := checkDimension(s.dimension, e.Embedding); err != nil {
			return fmt.Errorf("upsert %s: %w", e.ID, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunk_vectors (id, document_id, position, content, model, embedding)
			VALUES ($1, $2, $3, $4, $5, $6::vector)
			ON CONFLICT (id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				position = EXCLUDED.position,
				content = EXCLUDED.content,
				model = EXCLUDED.model,
				embedding = EXCLUDED.embedding
		`, e.ID, e.DocumentID, e.Position, e.Content, e.Model, formatEmbedding(e.Embedding))
		if err != nil {
			return fmt.Errorf("upsert entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Search finds entries similar to the query, pushing the scan down to pgvector.
func (s *PgVectorIndex) Search(ctx context.Context, query []float64, topK int) ([]SearchResult, error) {
	if err := checkTopK(topK); err != nil {
		return nil, err
	}
	if err := checkDimension(s.dimension, query); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, content, embedding::text, 1 - (embedding <=> $1::vector) AS score
		FROM chunk_vectors
		ORDER BY embedding <=> $1::vector, seq
		LIMIT $2
	`, formatEmbedding(query), topK)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	results := make([]SearchResult, 0, topK)
	for rows.Next() {
		var e Entry
		var embeddingStr string
		var score float64

		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Position, &e.Content, &embeddingStr, &score); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		e.Embedding, err = parseEmbedding(embeddingStr)
		if err != nil {
			return nil, fmt.Errorf("parse embedding %s: %w", e.ID, err)
		}

		results = append(results, SearchResult{Entry: e, Score: score})
	}

	return results, rows.Err()
}

// DeleteDocument removes all entries of a document.
func (s *PgVectorIndex) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *PgVectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Models returns the distinct embedding models of stored entries.
func (s *PgVectorIndex) Models(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT model FROM chunk_vectors ORDER BY model`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	models := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func (s *PgVectorIndex) Dimension() int {
	return s.dimension
}

// Close closes the database connection.
func (s *PgVectorIndex) Close() error {
	return s.db.Close()
}

// formatEmbedding converts a float64 slice to pgvector format: "[0.1,0.2,0.3]"
func formatEmbedding(embedding []float64) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseEmbedding converts pgvector format back to a float64 slice.
func parseEmbedding(s string) ([]float64, error) {
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	result := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}
