package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hubenschmidt/go-admissions/core"
)

// MemoryStore keeps documents in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]core.Document
	chunks map[string][]core.Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]core.Document),
		chunks: make(map[string][]core.Chunk),
	}
}

func (s *MemoryStore) Save(ctx context.Context, doc core.Document, chunks []core.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; ok {
		return core.Validationf("document %s already exists", doc.ID)
	}
	s.docs[doc.ID] = doc
	s.chunks[doc.ID] = append([]core.Chunk(nil), chunks...)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return core.Document{}, core.ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]core.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sortNewestFirst(docs)
	return docs, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

func (s *MemoryStore) Chunks(ctx context.Context) ([]core.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]core.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})

	var out []core.Chunk
	for _, d := range docs {
		cs := append([]core.Chunk(nil), s.chunks[d.ID]...)
		sort.Slice(cs, func(a, b int) bool { return cs[a].Index < cs[b].Index })
		out = append(out, cs...)
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func sortNewestFirst(docs []core.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}
