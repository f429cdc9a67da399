package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hubenschmidt/go-admissions/core"
)

// MemoryIndex is an in-memory vector index using brute-force cosine search.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]memoryEntry
	nextSeq   uint64
}

type memoryEntry struct {
	Entry
	seq uint64
}

// NewMemoryIndex creates an empty index accepting vectors of the given dimension.
func NewMemoryIndex(dimension int) (*MemoryIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", core.ErrInvalidConfig, dimension)
	}
	return &MemoryIndex{
		dimension: dimension,
		entries:   make(map[string]memoryEntry),
	}, nil
}

// Upsert validates every entry before storing any of them. A replaced
// entry keeps its original insertion rank.
func (s *MemoryIndex) Upsert(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if e.ID == "" {
			return core.Validationf("entry id is required")
		}
		if err := checkDimension(s.dimension, e.Embedding); err != nil {
			return fmt.Errorf("upsert %s: %w", e.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		seq := s.nextSeq
		if existing, ok := s.entries[e.ID]; ok {
			seq = existing.seq
		} else {
			s.nextSeq++
		}
		e.Embedding = append([]float64(nil), e.Embedding...)
		s.entries[e.ID] = memoryEntry{Entry: e, seq: seq}
	}
	return nil
}

// Search finds entries similar to the query using brute-force cosine similarity.
func (s *MemoryIndex) Search(ctx context.Context, query []float64, topK int) ([]SearchResult, error) {
	if err := checkTopK(topK); err != nil {
		return nil, err
	}
	if err := checkDimension(s.dimension, query); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := s.computeSimilarities(query)

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].seq < scored[j].seq
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	results := make([]SearchResult, len(scored))
	for i, r := range scored {
		results[i] = r.SearchResult
	}
	return results, nil
}

type scoredEntry struct {
	SearchResult
	seq uint64
}

func (s *MemoryIndex) computeSimilarities(query []float64) []scoredEntry {
	results := make([]scoredEntry, 0, len(s.entries))
	for _, e := range s.entries {
		results = append(results, scoredEntry{
			SearchResult: SearchResult{Entry: e.Entry, Score: CosineSimilarity(query, e.Embedding)},
			seq:          e.seq,
		})
	}
	return results
}

// DeleteDocument removes all entries of a document.
func (s *MemoryIndex) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.DocumentID == documentID {
			delete(s.entries, id)
		}
	}
	return nil
}

// Count returns the number of entries in the index.
func (s *MemoryIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryIndex) Models(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	models := []string{}
	for _, e := range s.entries {
		if !seen[e.Model] {
			seen[e.Model] = true
			models = append(models, e.Model)
		}
	}
	sort.Strings(models)
	return models, nil
}

func (s *MemoryIndex) Dimension() int {
	return s.dimension
}

// Close is a no-op for the in-memory index.
func (s *MemoryIndex) Close() error {
	return nil
}
