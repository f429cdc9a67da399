package vector

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-admissions/core"
)

func newPgTestIndex(t *testing.T) *PgVectorIndex {
	t.Helper()
	dsn := os.Getenv("ADMISSIONS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ADMISSIONS_TEST_POSTGRES_DSN not set")
	}

	idx, err := NewPgVectorIndex(context.Background(), dsn, 3)
	require.NoError(t, err)
	_, err = idx.db.Exec(`TRUNCATE chunk_vectors`)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestPgVectorIndex_UpsertSearchDelete(t *testing.T) {
	ctx := context.Background()
	idx := newPgTestIndex(t)

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ID: "a:0", DocumentID: "a", Position: 0, Content: "near", Embedding: []float64{1, 0.1, 0}},
		{ID: "b:0", DocumentID: "b", Position: 0, Content: "far", Embedding: []float64{0, 1, 0}},
	}))

	results, err := idx.Search(ctx, []float64{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a:0", results[0].Entry.ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	require.NoError(t, idx.DeleteDocument(ctx, "a"))
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPgVectorIndex_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := newPgTestIndex(t)

	err := idx.Upsert(ctx, []Entry{{ID: "x", DocumentID: "x", Embedding: []float64{1, 2}}})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	_, err = idx.Search(ctx, []float64{1}, 1)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestPgVectorIndex_Models(t *testing.T) {
	ctx := context.Background()
	idx := newPgTestIndex(t)

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ID: "a:0", DocumentID: "a", Model: "offline", Embedding: []float64{1, 0, 0}},
		{ID: "b:0", DocumentID: "b", Model: "ollama/nomic-embed-text", Embedding: []float64{0, 1, 0}},
	}))

	models, err := idx.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"offline", "ollama/nomic-embed-text"}, models)
}
