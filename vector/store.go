// Package vector provides chunk vector storage and similarity search.
package vector

import "context"

// Entry is one indexed chunk.
type Entry struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Position   int       `json:"position"`
	Content    string    `json:"content"`
	Embedding  []float64 `json:"embedding,omitempty"`
	// Model names the embedding provider that produced Embedding.
	Model string `json:"model,omitempty"`
}

// SearchResult represents a search result with similarity score.
type SearchResult struct {
	Entry Entry   `json:"entry"`
	Score float64 `json:"score"` // cosine similarity (-1 to 1)
}

// Index provides vector storage and similarity search operations.
// Every vector held by one Index has the same dimension.
type Index interface {
	// Upsert stores entries, replacing existing ones by ID. Either all
	// entries are stored or none are.
	Upsert(ctx context.Context, entries []Entry) error

	// Search returns at most topK entries ordered by descending similarity,
	// earlier-inserted entries first on ties.
	Search(ctx context.Context, query []float64, topK int) ([]SearchResult, error)

	// DeleteDocument removes every entry belonging to a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Models returns the distinct Model values of stored entries, sorted.
	Models(ctx context.Context) ([]string, error)

	// Dimension returns the vector length accepted by the index.
	Dimension() int

	// Close releases resources.
	Close() error
}
