// Package chunker splits document text into overlapping spans.
package chunker

import (
	"fmt"

	"github.com/hubenschmidt/go-admissions/core"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by
// consecutive chunks.
const DefaultChunkOverlap = 200

// Separators are tried in order; the first one found inside the cut
// window wins. Each cut lands just after the separator.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Span is a contiguous slice of the input. Start and End are rune offsets.
type Span struct {
	Index int
	Start int
	End   int
	Text  string
}

// Chunker holds validated chunking parameters.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) { c.size = size }
}

// WithOverlap sets the number of characters repeated between chunks.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) { c.overlap = overlap }
}

// New returns a Chunker, or ErrInvalidConfig when the options violate
// 0 <= overlap < size.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if err := validate(c.size, c.overlap); err != nil {
		return nil, err
	}
	return c, nil
}

// Size is the maximum span length in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap is how many characters each span repeats from the previous one.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks text with the configured parameters.
func (c *Chunker) Split(text string) []Span {
	return split([]rune(text), c.size, c.overlap)
}

// Split chunks text into spans of at most size characters, each one
// starting overlap characters before the end of the previous one.
func Split(text string, size, overlap int) ([]Span, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return split([]rune(text), size, overlap), nil
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", core.ErrInvalidConfig, size, overlap)
	}
	return nil
}

func split(runes []rune, size, overlap int) []Span {
	n := len(runes)
	if n == 0 {
		return []Span{}
	}

	spans := make([]Span, 0, n/(size-overlap)+1)
	start := 0
	for {
		end := start + size
		if end >= n {
			spans = append(spans, newSpan(len(spans), runes, start, n))
			return spans
		}

		end = cutPoint(runes, start, end, overlap)
		spans = append(spans, newSpan(len(spans), runes, start, end))
		start = end - overlap
	}
}

func newSpan(index int, runes []rune, start, end int) Span {
	return Span{Index: index, Start: start, End: end, Text: string(runes[start:end])}
}

// cutPoint picks where a non-final chunk ends. A boundary is only taken
// in the second half of the window and past the overlap, so the next
// chunk always starts after the current one.
func cutPoint(runes []rune, start, end, overlap int) int {
	lo := max(start+overlap+1, start+(end-start)/2)
	for _, sep := range separators {
		if cut := lastBoundary(runes, lo, end, []rune(sep)); cut > 0 {
			return cut
		}
	}
	return end
}

// lastBoundary returns the largest cut in [lo, hi] that directly follows
// sep, or 0 when there is none.
func lastBoundary(runes []rune, lo, hi int, sep []rune) int {
	for cut := hi; cut >= lo; cut-- {
		if cut < len(sep) {
			break
		}
		if hasSuffixAt(runes, cut, sep) {
			return cut
		}
	}
	return 0
}

func hasSuffixAt(runes []rune, cut int, sep []rune) bool {
	off := cut - len(sep)
	for i, r := range sep {
		if runes[off+i] != r {
			return false
		}
	}
	return true
}
