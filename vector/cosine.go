package vector

import (
	"math"

	"github.com/hubenschmidt/go-admissions/core"
)

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
// A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Normalize normalizes a vector to unit length.
func Normalize(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	if norm == 0 {
		return v
	}

	result := make([]float64, len(v))
	for i, x := range v {
		result[i] = x / norm
	}
	return result
}

func checkDimension(want int, v []float64) error {
	if len(v) != want {
		return core.DimensionError(want, len(v))
	}
	return nil
}

func checkTopK(topK int) error {
	if topK <= 0 {
		return core.Validationf("topK must be positive, got %d", topK)
	}
	return nil
}
