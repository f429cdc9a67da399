// Package store persists documents and their embedded chunks.
package store

import (
	"context"

	"github.com/hubenschmidt/go-admissions/core"
)

// DocumentStore defines the interface for document persistence.
type DocumentStore interface {
	// Save stores a document with all of its chunks, or nothing on error.
	Save(ctx context.Context, doc core.Document, chunks []core.Chunk) error

	// Get returns a document by id, or core.ErrNotFound.
	Get(ctx context.Context, id string) (core.Document, error)

	// List returns every document, newest first.
	List(ctx context.Context) ([]core.Document, error)

	// Delete removes a document and its chunks, or returns core.ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Chunks returns every stored chunk, oldest document first and in
	// position order within a document.
	Chunks(ctx context.Context) ([]core.Chunk, error)

	Close() error
}
