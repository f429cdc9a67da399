// Package embedding turns text into fixed-dimension vectors.
package embedding

import "context"

// Provider converts text into an embedding vector of Dimension() floats.
type Provider interface {
	// Name identifies the provider and model that produced a vector.
	// Vectors from providers with different names are never mixed in one index.
	Name() string

	// Dimension returns the length of every vector Embed produces.
	Dimension() int

	// Embed returns the vector for text.
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Closer is implemented by providers holding network connections.
type Closer interface {
	Close() error
}
