package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/hubenschmidt/go-admissions/core"
	"github.com/hubenschmidt/go-admissions/vector"
)

// OfflineName labels vectors produced without an embedding service.
const OfflineName = "offline"

// Offline produces deterministic pseudo-random unit vectors seeded by a
// hash of the input text. The vectors carry no meaning, but identical
// text always maps to the identical vector.
type Offline struct {
	dimension int
}

var _ Provider = (*Offline)(nil)

func NewOffline(dimension int) (*Offline, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: offline dimension must be positive, got %d", core.ErrInvalidConfig, dimension)
	}
	return &Offline{dimension: dimension}, nil
}

func (o *Offline) Name() string   { return OfflineName }
func (o *Offline) Dimension() int { return o.dimension }

func (o *Offline) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:16])))

	v := make([]float64, o.dimension)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return vector.Normalize(v), nil
}
