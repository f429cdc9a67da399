// Package rag ingests documents into a vector index and retrieves the
// passages most similar to a question.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hubenschmidt/go-admissions/chunker"
	"github.com/hubenschmidt/go-admissions/core"
	"github.com/hubenschmidt/go-admissions/embedding"
	"github.com/hubenschmidt/go-admissions/monitor"
	"github.com/hubenschmidt/go-admissions/store"
	"github.com/hubenschmidt/go-admissions/vector"
)

// NoRelevantInformation is returned by Query when the index is empty or no
// passage clears the relevance threshold.
const NoRelevantInformation = "No relevant information found. Please try a different question."

// IsNoRelevantInformation reports whether a Query answer is the sentinel.
func IsNoRelevantInformation(answer string) bool {
	return answer == NoRelevantInformation
}

// DefaultTopK is the passage count used when a caller passes zero.
const DefaultTopK = 5

// Config tunes chunking, retrieval and ingestion for an Engine.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int

	// MinRelevance drops passages with a lower cosine similarity.
	// Nil returns every match.
	MinRelevance *float64

	// OperationTimeout bounds each public call. Zero disables it.
	OperationTimeout time.Duration

	// EmbedConcurrency caps parallel embedding calls within one ingest.
	EmbedConcurrency int
}

// DefaultConfig returns the chunking and retrieval defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:        chunker.DefaultChunkSize,
		ChunkOverlap:     chunker.DefaultChunkOverlap,
		TopK:             DefaultTopK,
		OperationTimeout: 30 * time.Second,
		EmbedConcurrency: 4,
	}
}

// Deps are the collaborators an Engine is built from. Store, Index and
// Embedder are required.
type Deps struct {
	Store    store.DocumentStore
	Index    vector.Index
	Embedder embedding.Provider
	Metrics  monitor.MetricsCollector

	// Now and NewID default to time.Now and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// Passage is one retrieved chunk.
type Passage struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Index      int     `json:"index"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// Engine is safe for concurrent use. One Engine is meant to live for the
// whole process and be shared by every caller.
type Engine struct {
	cfg      Config
	chunker  *chunker.Chunker
	store    store.DocumentStore
	index    vector.Index
	embedder embedding.Provider
	metrics  monitor.MetricsCollector
	now      func() time.Time
	newID    func() string

	docLocks keyedMutex
	// commitMu makes store+index commits atomic with respect to readers.
	commitMu sync.RWMutex

	warmMu sync.Mutex
	warmed bool
}

// New validates cfg against deps and builds an Engine. Stored chunks are
// loaded into the index lazily, on the first operation.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil || deps.Index == nil || deps.Embedder == nil {
		return nil, fmt.Errorf("%w: store, index and embedder are required", core.ErrInvalidConfig)
	}
	if deps.Index.Dimension() != deps.Embedder.Dimension() {
		return nil, fmt.Errorf("index vs %s: %w", deps.Embedder.Name(),
			core.DimensionError(deps.Index.Dimension(), deps.Embedder.Dimension()))
	}

	if cfg.TopK == 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("%w: top k must not be negative", core.ErrInvalidConfig)
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 1
	}

	ch, err := chunker.New(chunker.WithChunkSize(cfg.ChunkSize), chunker.WithOverlap(cfg.ChunkOverlap))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		chunker:  ch,
		store:    deps.Store,
		index:    deps.Index,
		embedder: deps.Embedder,
		metrics:  deps.Metrics,
		now:      deps.Now,
		newID:    deps.NewID,
	}
	if e.metrics == nil {
		e.metrics = monitor.NewNoOpCollector()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = func() string { return uuid.New().String() }
	}
	return e, nil
}

// AddDocument chunks, embeds and stores a document and returns its id.
// Either every chunk becomes searchable or the document is not stored.
func (e *Engine) AddDocument(ctx context.Context, title, content, category string) (string, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	id, chunks, err := e.addDocument(ctx, title, content, category)
	e.record("add_document", id, chunks, start, err)
	if err != nil {
		return "", core.NewError("add_document", id, err)
	}
	return id, nil
}

func (e *Engine) addDocument(ctx context.Context, title, content, category string) (string, int, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", 0, core.Validationf("title is required")
	}
	if strings.TrimSpace(content) == "" {
		return "", 0, core.Validationf("content is required")
	}
	cat, err := core.ParseCategory(category)
	if err != nil {
		return "", 0, err
	}

	if err := e.ready(ctx); err != nil {
		return "", 0, err
	}

	id := e.newID()
	// ids come from Deps.NewID, which callers may supply; the lock pairs
	// this ingest with a concurrent delete of the same id
	unlock := e.docLocks.Lock(id)
	defer unlock()

	spans := e.chunker.Split(content)
	vectors, err := e.embedSpans(ctx, spans)
	if err != nil {
		return id, 0, err
	}

	doc := core.Document{
		ID:        id,
		Title:     title,
		Content:   content,
		Category:  cat,
		CreatedAt: e.now().UTC(),
	}
	chunks := make([]core.Chunk, len(spans))
	entries := make([]vector.Entry, len(spans))
	for i, sp := range spans {
		chunks[i] = core.Chunk{
			ID:         core.ChunkID(id, sp.Index),
			DocumentID: id,
			Index:      sp.Index,
			Content:    sp.Text,
			Embedding:  vectors[i],
			Model:      e.embedder.Name(),
		}
		entries[i] = toEntry(chunks[i])
	}

	if err := e.commit(ctx, doc, chunks, entries); err != nil {
		return id, 0, err
	}

	log.Printf("[rag] added document %s %q (%d chunks)", id, title, len(chunks))
	return id, len(chunks), nil
}

// embedSpans embeds every span with bounded concurrency. The first failure
// cancels the rest.
func (e *Engine) embedSpans(ctx context.Context, spans []chunker.Span) ([][]float64, error) {
	vectors := make([][]float64, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.EmbedConcurrency)
	for i, sp := range spans {
		g.Go(func() error {
			v, err := e.embedder.Embed(gctx, sp.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, upstream(err))
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *Engine) commit(ctx context.Context, doc core.Document, chunks []core.Chunk, entries []vector.Entry) error {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	if err := e.store.Save(ctx, doc, chunks); err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	if err := e.index.Upsert(ctx, entries); err != nil {
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if rbErr := errors.Join(e.index.DeleteDocument(rbCtx, doc.ID), e.store.Delete(rbCtx, doc.ID)); rbErr != nil {
			log.Printf("[rag] rollback of %s incomplete: %v", doc.ID, rbErr)
		}
		return fmt.Errorf("index chunks: %w", err)
	}
	return nil
}

// Query returns the text of the topK most similar passages, most similar
// first, separated by blank lines. topK 0 means the configured default.
// When nothing matches, the answer is NoRelevantInformation and err is nil.
func (e *Engine) Query(ctx context.Context, question string, topK int) (string, error) {
	passages, err := e.Retrieve(ctx, question, topK)
	if err != nil {
		return "", err
	}
	return JoinPassages(passages), nil
}

// JoinPassages renders passages the way Query does.
func JoinPassages(passages []Passage) string {
	if len(passages) == 0 {
		return NoRelevantInformation
	}
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Content
	}
	return strings.Join(parts, "\n\n")
}

// Retrieve is Query without the joining step.
func (e *Engine) Retrieve(ctx context.Context, question string, topK int) ([]Passage, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	passages, err := e.retrieve(ctx, question, topK)
	e.record("query", "", len(passages), start, err)
	if err != nil {
		return nil, core.NewError("query", "", err)
	}
	return passages, nil
}

func (e *Engine) retrieve(ctx context.Context, question string, topK int) ([]Passage, error) {
	if strings.TrimSpace(question) == "" {
		return nil, core.Validationf("question is required")
	}
	if topK < 0 {
		return nil, core.Validationf("topK must not be negative, got %d", topK)
	}
	if topK == 0 {
		topK = e.cfg.TopK
	}

	if err := e.ready(ctx); err != nil {
		return nil, err
	}

	n, err := e.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}
	if n == 0 {
		return []Passage{}, nil
	}

	qv, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", upstream(err))
	}

	e.commitMu.RLock()
	results, err := e.index.Search(ctx, qv, topK)
	e.commitMu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	passages := make([]Passage, 0, len(results))
	for _, r := range results {
		if e.cfg.MinRelevance != nil && r.Score < *e.cfg.MinRelevance {
			continue
		}
		passages = append(passages, Passage{
			ChunkID:    r.Entry.ID,
			DocumentID: r.Entry.DocumentID,
			Index:      r.Entry.Position,
			Content:    r.Entry.Content,
			Similarity: r.Score,
		})
	}
	return passages, nil
}

// DeleteDocument removes a document and all of its chunks. It reports
// whether anything was deleted; an unknown id is logged, not an error.
func (e *Engine) DeleteDocument(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	deleted, err := e.deleteDocument(ctx, strings.TrimSpace(id))
	e.record("delete_document", id, 0, start, err)
	if err != nil {
		return false, core.NewError("delete_document", id, err)
	}
	return deleted, nil
}

func (e *Engine) deleteDocument(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, core.Validationf("document id is required")
	}
	if err := e.ready(ctx); err != nil {
		return false, err
	}

	unlock := e.docLocks.Lock(id)
	defer unlock()

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	// index first: a failure here leaves the document fully intact
	if err := e.index.DeleteDocument(ctx, id); err != nil {
		return false, fmt.Errorf("remove chunks: %w", err)
	}
	err := e.store.Delete(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		log.Printf("[rag] delete %s: document not found", id)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}

	log.Printf("[rag] deleted document %s", id)
	return true, nil
}

// ListDocuments returns every active document, newest first.
func (e *Engine) ListDocuments(ctx context.Context) ([]core.Document, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := e.ready(ctx); err != nil {
		return nil, core.NewError("list_documents", "", err)
	}

	e.commitMu.RLock()
	defer e.commitMu.RUnlock()

	docs, err := e.store.List(ctx)
	if err != nil {
		return nil, core.NewError("list_documents", "", err)
	}
	return docs, nil
}

// GetDocument returns one document or an error wrapping core.ErrNotFound.
func (e *Engine) GetDocument(ctx context.Context, id string) (core.Document, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if strings.TrimSpace(id) == "" {
		return core.Document{}, core.NewError("get_document", id, core.Validationf("document id is required"))
	}
	if err := e.ready(ctx); err != nil {
		return core.Document{}, core.NewError("get_document", id, err)
	}

	e.commitMu.RLock()
	defer e.commitMu.RUnlock()

	doc, err := e.store.Get(ctx, id)
	if err != nil {
		return core.Document{}, core.NewError("get_document", id, err)
	}
	return doc, nil
}

// Metrics returns the per-operation summary collected so far.
func (e *Engine) Metrics() monitor.Summary {
	return e.metrics.Flush()
}

// ready loads persisted chunks into the index on first use. A failed
// warm-up is retried by the next call.
func (e *Engine) ready(ctx context.Context) error {
	e.warmMu.Lock()
	defer e.warmMu.Unlock()
	if e.warmed {
		return nil
	}

	chunks, err := e.store.Chunks(ctx)
	if err != nil {
		return fmt.Errorf("warm up: load chunks: %w", err)
	}
	for _, c := range chunks {
		if c.Model != e.embedder.Name() {
			return fmt.Errorf("%w: chunk %s was embedded by %q but the configured provider is %q",
				core.ErrInvalidConfig, c.ID, c.Model, e.embedder.Name())
		}
	}

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	n, err := e.index.Count(ctx)
	if err != nil {
		return fmt.Errorf("warm up: count index: %w", err)
	}
	if n > 0 {
		models, err := e.index.Models(ctx)
		if err != nil {
			return fmt.Errorf("warm up: %w", err)
		}
		for _, m := range models {
			if m != e.embedder.Name() {
				return fmt.Errorf("%w: the vector index holds vectors embedded by %q but the configured provider is %q",
					core.ErrInvalidConfig, m, e.embedder.Name())
			}
		}
	}

	// the store is authoritative; upserts by chunk id restore anything the
	// index lost, such as an in-memory index after a restart
	if n != len(chunks) && len(chunks) > 0 {
		entries := make([]vector.Entry, len(chunks))
		for i, c := range chunks {
			entries[i] = toEntry(c)
		}
		if err := e.index.Upsert(ctx, entries); err != nil {
			return fmt.Errorf("warm up: %w", err)
		}
		log.Printf("[rag] loaded %d stored chunks into the index", len(chunks))
		if n, err = e.index.Count(ctx); err != nil {
			return fmt.Errorf("warm up: count index: %w", err)
		}
	}
	if n > len(chunks) {
		return fmt.Errorf("%w: the vector index holds %d entries but the document store has %d chunks",
			core.ErrInvalidConfig, n, len(chunks))
	}

	e.warmed = true
	return nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.OperationTimeout)
}

func (e *Engine) record(op, id string, chunks int, start time.Time, err error) {
	m := monitor.OperationMetrics{
		Operation:  op,
		DocumentID: id,
		Chunks:     chunks,
		Duration:   time.Since(start),
		Success:    err == nil,
	}
	if err != nil {
		m.Error = err.Error()
	}
	e.metrics.Record(m)
}

func toEntry(c core.Chunk) vector.Entry {
	return vector.Entry{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Position:   c.Index,
		Content:    c.Content,
		Embedding:  c.Embedding,
		Model:      c.Model,
	}
}

// upstream classifies an embedding failure. Dimension mismatches stay
// fatal configuration errors; everything else means the service is unusable.
func upstream(err error) error {
	if errors.Is(err, core.ErrUpstreamUnavailable) || errors.Is(err, core.ErrDimensionMismatch) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrUpstreamUnavailable, err)
}
