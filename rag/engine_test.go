package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-admissions/core"
	"github.com/hubenschmidt/go-admissions/embedding"
	"github.com/hubenschmidt/go-admissions/monitor"
	"github.com/hubenschmidt/go-admissions/store"
	"github.com/hubenschmidt/go-admissions/vector"
)

const testDim = 16

type countingProvider struct {
	embedding.Provider
	calls  atomic.Int32
	failOn int32 // 1-based call number that fails; 0 never fails
	block  bool
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	n := p.calls.Add(1)
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.failOn != 0 && n >= p.failOn {
		return nil, errors.New("embedding service down")
	}
	return p.Provider.Embed(ctx, text)
}

type failingIndex struct {
	vector.Index
}

func (f *failingIndex) Upsert(ctx context.Context, entries []vector.Entry) error {
	return errors.New("index unavailable")
}

type fixture struct {
	engine   *Engine
	store    *store.MemoryStore
	index    *vector.MemoryIndex
	provider *countingProvider
	metrics  *monitor.InMemoryCollector
}

func newFixture(t *testing.T, mutate func(*Config, *Deps)) *fixture {
	t.Helper()

	offline, err := embedding.NewOffline(testDim)
	require.NoError(t, err)
	idx, err := vector.NewMemoryIndex(testDim)
	require.NoError(t, err)

	f := &fixture{
		store:    store.NewMemoryStore(),
		index:    idx,
		provider: &countingProvider{Provider: offline},
		metrics:  monitor.NewInMemoryCollector(),
	}

	var tick atomic.Int64
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	cfg := DefaultConfig()
	cfg.ChunkSize = 100
	cfg.ChunkOverlap = 20
	deps := Deps{
		Store:    f.store,
		Index:    f.index,
		Embedder: f.provider,
		Metrics:  f.metrics,
		Now:      func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) },
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	f.engine, err = New(cfg, deps)
	require.NoError(t, err)
	return f
}

func TestNew_Validation(t *testing.T) {
	offline, err := embedding.NewOffline(8)
	require.NoError(t, err)
	idx, err := vector.NewMemoryIndex(4)
	require.NoError(t, err)

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := New(DefaultConfig(), Deps{Store: store.NewMemoryStore(), Index: idx, Embedder: offline})
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("missing deps", func(t *testing.T) {
		_, err := New(DefaultConfig(), Deps{Index: idx, Embedder: offline})
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})

	t.Run("bad chunk config", func(t *testing.T) {
		matching, err := vector.NewMemoryIndex(8)
		require.NoError(t, err)
		cfg := DefaultConfig()
		cfg.ChunkOverlap = cfg.ChunkSize
		_, err = New(cfg, Deps{Store: store.NewMemoryStore(), Index: matching, Embedder: offline})
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})
}

func TestEngine_AddDocumentAndQuery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	content := "Applicants need a minimum CGPA of 3.0 for engineering programs."
	id, err := f.engine.AddDocument(ctx, "Admission Criteria", content, "academic-policy")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = f.engine.AddDocument(ctx, "Fees", "Tuition is charged per semester and payable before enrollment.", "Fee-Schedule")
	require.NoError(t, err)

	answer, err := f.engine.Query(ctx, content, 1)
	require.NoError(t, err)
	assert.Equal(t, content, answer)

	passages, err := f.engine.Retrieve(ctx, content, 0)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, id, passages[0].DocumentID)
	assert.InDelta(t, 1.0, passages[0].Similarity, 1e-9)
	assert.GreaterOrEqual(t, passages[0].Similarity, passages[1].Similarity)

	doc, err := f.engine.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.CategoryAcademicPolicy, doc.Category)
	assert.Equal(t, "Admission Criteria", doc.Title)
}

func TestEngine_QueryJoinsPassagesInOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	content := strings.Repeat("a", 90) + "\n\n" + strings.Repeat("b", 90) + "\n\n" + strings.Repeat("c", 50)
	_, err := f.engine.AddDocument(ctx, "Long", content, "general")
	require.NoError(t, err)

	passages, err := f.engine.Retrieve(ctx, "anything", 10)
	require.NoError(t, err)
	require.Len(t, passages, 3)

	answer, err := f.engine.Query(ctx, "anything", 10)
	require.NoError(t, err)

	want := make([]string, len(passages))
	for i, p := range passages {
		want[i] = p.Content
	}
	assert.Equal(t, strings.Join(want, "\n\n"), answer)
}

func TestEngine_QueryEmptyIndex(t *testing.T) {
	f := newFixture(t, nil)

	answer, err := f.engine.Query(context.Background(), "what are the hostel rules?", 5)
	require.NoError(t, err)
	assert.Equal(t, NoRelevantInformation, answer)
	assert.True(t, IsNoRelevantInformation(answer))
	assert.Zero(t, f.provider.calls.Load())
}

func TestEngine_QueryThreshold(t *testing.T) {
	ctx := context.Background()
	threshold := 0.999
	f := newFixture(t, func(c *Config, _ *Deps) { c.MinRelevance = &threshold })

	_, err := f.engine.AddDocument(ctx, "Hostel", "Hostel curfew is 10pm.", "general")
	require.NoError(t, err)

	answer, err := f.engine.Query(ctx, "unrelated question", 5)
	require.NoError(t, err)
	assert.Equal(t, NoRelevantInformation, answer)

	answer, err = f.engine.Query(ctx, "Hostel curfew is 10pm.", 5)
	require.NoError(t, err)
	assert.Equal(t, "Hostel curfew is 10pm.", answer)
}

func TestEngine_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	tests := []struct {
		name                     string
		title, content, category string
	}{
		{"empty title", "  ", "body", "general"},
		{"empty content", "Title", "\n\t ", "general"},
		{"unknown category", "Title", "body", "sports"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.AddDocument(ctx, tt.title, tt.content, tt.category)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}

	t.Run("negative topK", func(t *testing.T) {
		_, err := f.engine.Query(ctx, "q", -1)
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("empty question", func(t *testing.T) {
		_, err := f.engine.Query(ctx, " ", 5)
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("empty delete id", func(t *testing.T) {
		_, err := f.engine.DeleteDocument(ctx, "")
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	docs, err := f.engine.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEngine_EmbeddingFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *Config, _ *Deps) { c.EmbedConcurrency = 1 })
	f.provider.failOn = 2

	content := strings.Repeat("word ", 100)
	_, err := f.engine.AddDocument(ctx, "Multi", content, "general")
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)

	docs, err := f.engine.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	n, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	summary := f.engine.Metrics()
	assert.Equal(t, 1, summary.Operations["add_document"].Failures)
}

func TestEngine_IndexFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(_ *Config, d *Deps) { d.Index = &failingIndex{Index: d.Index} })

	_, err := f.engine.AddDocument(ctx, "Doomed", "Some policy text.", "general")
	require.Error(t, err)

	docs, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEngine_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	gone, err := f.engine.AddDocument(ctx, "Gone", strings.Repeat("removed text ", 30), "general")
	require.NoError(t, err)
	kept, err := f.engine.AddDocument(ctx, "Kept", "This document stays.", "general")
	require.NoError(t, err)

	deleted, err := f.engine.DeleteDocument(ctx, gone)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.engine.DeleteDocument(ctx, gone)
	require.NoError(t, err)
	assert.False(t, deleted)

	passages, err := f.engine.Retrieve(ctx, strings.Repeat("removed text ", 30), 50)
	require.NoError(t, err)
	for _, p := range passages {
		assert.NotEqual(t, gone, p.DocumentID)
	}

	_, err = f.engine.GetDocument(ctx, gone)
	assert.ErrorIs(t, err, core.ErrNotFound)

	docs, err := f.engine.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, kept, docs[0].ID)
}

func TestEngine_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := f.engine.AddDocument(ctx, fmt.Sprintf("Doc %d", i), "content", "general")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	docs, err := f.engine.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
}

func TestEngine_OperationTimeout(t *testing.T) {
	f := newFixture(t, func(c *Config, _ *Deps) { c.OperationTimeout = 50 * time.Millisecond })
	f.provider.block = true

	start := time.Now()
	_, err := f.engine.AddDocument(context.Background(), "Slow", "content", "general")
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEngine_WarmUpFromStore(t *testing.T) {
	ctx := context.Background()
	first := newFixture(t, nil)

	id, err := first.engine.AddDocument(ctx, "Persisted", "Scholarships are awarded each fall.", "general")
	require.NoError(t, err)

	t.Run("loads stored chunks", func(t *testing.T) {
		second := newFixture(t, func(_ *Config, d *Deps) { d.Store = first.store })

		passages, err := second.engine.Retrieve(ctx, "Scholarships are awarded each fall.", 1)
		require.NoError(t, err)
		require.Len(t, passages, 1)
		assert.Equal(t, id, passages[0].DocumentID)
	})

	t.Run("rejects other provider", func(t *testing.T) {
		other := newFixture(t, func(_ *Config, d *Deps) {
			d.Store = first.store
			d.Embedder = renamed{d.Embedder}
		})

		_, err := other.engine.Query(ctx, "anything", 1)
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})
}

func TestEngine_WarmUpChecksIndex(t *testing.T) {
	ctx := context.Background()
	first := newFixture(t, nil)

	keep, err := first.engine.AddDocument(ctx, "Deadlines", "Applications close on March 31.", "admissions")
	require.NoError(t, err)
	lost, err := first.engine.AddDocument(ctx, "Housing", "First-year students may apply for campus housing.", "housing")
	require.NoError(t, err)

	t.Run("index from another provider", func(t *testing.T) {
		other := newFixture(t, func(_ *Config, d *Deps) {
			d.Index = first.index
			d.Embedder = renamed{d.Embedder}
		})

		_, err := other.engine.Retrieve(ctx, "deadline", 1)
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})

	t.Run("index entries missing from the store", func(t *testing.T) {
		orphaned := newFixture(t, func(_ *Config, d *Deps) { d.Index = first.index })

		_, err := orphaned.engine.Retrieve(ctx, "deadline", 1)
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})

	t.Run("partial index is reconciled", func(t *testing.T) {
		idx, err := vector.NewMemoryIndex(testDim)
		require.NoError(t, err)
		chunks, err := first.store.Chunks(ctx)
		require.NoError(t, err)
		var partial []vector.Entry
		for _, c := range chunks {
			if c.DocumentID == keep {
				partial = append(partial, toEntry(c))
			}
		}
		require.NoError(t, idx.Upsert(ctx, partial))

		second := newFixture(t, func(_ *Config, d *Deps) {
			d.Store = first.store
			d.Index = idx
		})

		passages, err := second.engine.Retrieve(ctx, "First-year students may apply for campus housing.", 1)
		require.NoError(t, err)
		require.Len(t, passages, 1)
		assert.Equal(t, lost, passages[0].DocumentID)

		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(chunks), n)
	})
}

type renamed struct {
	embedding.Provider
}

func (renamed) Name() string { return "openai/text-embedding-3-small" }

func TestEngine_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id, err := f.engine.AddDocument(ctx, fmt.Sprintf("Doc %d", i), strings.Repeat(fmt.Sprintf("text %d ", i), 40), "general")
			assert.NoError(t, err)
			ids <- id
		}()
		go func() {
			defer wg.Done()
			_, err := f.engine.Query(ctx, "text", 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.DeleteDocument(ctx, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, f.engine.docLocks.size())
}

func TestEngine_AddWaitsForDeleteOfSameID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(_ *Config, d *Deps) {
		d.NewID = func() string { return "catalog-2025" }
	})

	unlock := f.engine.docLocks.Lock("catalog-2025")
	done := make(chan error, 1)
	go func() {
		_, err := f.engine.AddDocument(ctx, "Catalog", "Program listings for the 2025 intake.", "programs")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("AddDocument finished while the id was locked")
	case <-time.After(50 * time.Millisecond):
	}
	_, err := f.store.Get(ctx, "catalog-2025")
	assert.ErrorIs(t, err, core.ErrNotFound)

	unlock()
	require.NoError(t, <-done)
	_, err = f.store.Get(ctx, "catalog-2025")
	require.NoError(t, err)
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same key acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()
	assert.Zero(t, k.size())
}
