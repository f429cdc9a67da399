package core

import (
	"fmt"
	"strings"
	"time"
)

// Category is the closed set of document kinds accepted on ingest.
type Category string

const (
	CategoryAcademicPolicy     Category = "academic-policy"
	CategoryProgramDescription Category = "program-description"
	CategoryFeeSchedule        Category = "fee-schedule"
	CategoryGeneral            Category = "general"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryAcademicPolicy,
	CategoryProgramDescription,
	CategoryFeeSchedule,
	CategoryGeneral,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory accepts a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", Validationf("unknown category %q", s)
	}
	return c, nil
}

// Document is an ingested source text. It is never mutated after creation.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is one embedded span of a document.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Content    string    `json:"content"`
	Embedding  []float64 `json:"embedding,omitempty"`
	Model      string    `json:"model"`
}

// ChunkID derives the stable id of the index-th chunk of a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s:%d", documentID, index)
}
