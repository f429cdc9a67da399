// Package admissions answers university admission questions from ingested
// documents and recommends degree programs for a student profile.
//
// Example usage:
//
//	cfg, _ := config.Load("admissions.yaml")
//	svc, err := admissions.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	id, _ := svc.AddDocument(ctx, "Fee Schedule", text, "fee-schedule")
//	answer, _ := svc.Query(ctx, "When is tuition due?", 5)
//	matches, _ := svc.GetRecommendations(scoring.Profile{Score: scoring.Float64(3.4)})
package admissions

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hubenschmidt/go-admissions/assistant"
	"github.com/hubenschmidt/go-admissions/config"
	"github.com/hubenschmidt/go-admissions/core"
	"github.com/hubenschmidt/go-admissions/embedding"
	"github.com/hubenschmidt/go-admissions/llm"
	"github.com/hubenschmidt/go-admissions/monitor"
	"github.com/hubenschmidt/go-admissions/rag"
	"github.com/hubenschmidt/go-admissions/scoring"
	"github.com/hubenschmidt/go-admissions/store"
	"github.com/hubenschmidt/go-admissions/vector"
)

// Re-exported types callers most often need.
type (
	Document    = core.Document
	Category    = core.Category
	Passage     = rag.Passage
	Profile     = scoring.Profile
	Program     = scoring.Program
	Match       = scoring.Match
	Eligibility = scoring.Eligibility
	Answer      = assistant.Answer
)

const NoRelevantInformation = rag.NoRelevantInformation

// Service wires the retrieval engine, the match scorer and the assistant
// to the backends named in the configuration. It is safe for concurrent use.
type Service struct {
	cfg       *config.AppConfig
	store     store.DocumentStore
	index     vector.Index
	embedder  embedding.Provider
	engine    *rag.Engine
	scorer    *scoring.Scorer
	catalog   *scoring.Catalog
	assistant *assistant.Assistant
	metrics   *monitor.InMemoryCollector
}

// New validates cfg and opens every backend it names. Backends opened
// before a failure are closed again.
func New(ctx context.Context, cfg *config.AppConfig) (svc *Service, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, metrics: monitor.NewInMemoryCollector()}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.store, err = store.New(cfg.Database.DSN); err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	if s.embedder, err = embedding.New(ctx, cfg.Embedding, cfg.Cache); err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	if s.index, err = openIndex(ctx, cfg.Vector, s.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}

	s.engine, err = rag.New(rag.Config{
		ChunkSize:        cfg.RAG.ChunkSize,
		ChunkOverlap:     cfg.RAG.ChunkOverlap,
		TopK:             cfg.RAG.TopK,
		MinRelevance:     cfg.RAG.MinRelevance,
		OperationTimeout: cfg.RAG.OperationTimeout(),
		EmbedConcurrency: cfg.Embedding.Concurrency,
	}, rag.Deps{
		Store:    s.store,
		Index:    s.index,
		Embedder: s.embedder,
		Metrics:  s.metrics,
	})
	if err != nil {
		return nil, err
	}

	if s.scorer, err = scoring.NewScorer(scoring.PolicyFromConfig(cfg.Scoring)); err != nil {
		return nil, err
	}
	if s.catalog, err = openCatalog(cfg.Catalog); err != nil {
		return nil, err
	}

	client, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Printf("[assistant] no language model configured, answering offline")
	}
	s.assistant = assistant.New(s.engine, client, cfg.LLM.Model, cfg.RAG.TopK)

	return s, nil
}

func openIndex(ctx context.Context, cfg config.VectorConfig, dimension int) (vector.Index, error) {
	if cfg.Backend == "pgvector" {
		idx, err := vector.NewPgVectorIndex(ctx, cfg.DSN, dimension)
		if err != nil {
			return nil, err
		}
		log.Printf("[vector] using pgvector index")
		return idx, nil
	}
	idx, err := vector.NewMemoryIndex(dimension)
	if err != nil {
		return nil, err
	}
	log.Printf("[vector] using in-memory index")
	return idx, nil
}

func openCatalog(cfg config.CatalogConfig) (*scoring.Catalog, error) {
	if cfg.Path == "" {
		return scoring.DefaultCatalog(), nil
	}
	c, err := scoring.LoadCatalog(cfg.Path)
	if err != nil {
		return nil, err
	}
	log.Printf("[catalog] loaded %d programs from %s", c.Len(), cfg.Path)
	return c, nil
}

// AddDocument ingests a document and returns its id.
func (s *Service) AddDocument(ctx context.Context, title, content, category string) (string, error) {
	return s.engine.AddDocument(ctx, title, content, category)
}

// Query returns the passages most relevant to question joined by blank
// lines, or NoRelevantInformation.
func (s *Service) Query(ctx context.Context, question string, topK int) (string, error) {
	return s.engine.Query(ctx, question, topK)
}

// Retrieve returns the ranked passages behind Query.
func (s *Service) Retrieve(ctx context.Context, question string, topK int) ([]Passage, error) {
	return s.engine.Retrieve(ctx, question, topK)
}

// DeleteDocument removes a document and its chunks. It reports false
// without error when the document does not exist.
func (s *Service) DeleteDocument(ctx context.Context, id string) (bool, error) {
	return s.engine.DeleteDocument(ctx, id)
}

// ListDocuments returns document metadata, newest first.
func (s *Service) ListDocuments(ctx context.Context) ([]Document, error) {
	return s.engine.ListDocuments(ctx)
}

func (s *Service) GetDocument(ctx context.Context, id string) (Document, error) {
	return s.engine.GetDocument(ctx, id)
}

// GetRecommendations ranks every catalog program for profile.
func (s *Service) GetRecommendations(profile Profile) ([]Match, error) {
	p, err := profile.Normalize()
	if err != nil {
		return nil, err
	}
	return s.scorer.Recommend(p, s.catalog.Programs()), nil
}

// CalculateEligibility checks profile against one catalog program.
func (s *Service) CalculateEligibility(programID string, profile Profile) (Eligibility, error) {
	p, err := profile.Normalize()
	if err != nil {
		return Eligibility{}, err
	}
	prog, err := s.catalog.Get(programID)
	if err != nil {
		return Eligibility{}, err
	}
	return s.scorer.Eligibility(p, prog), nil
}

// Ask answers question from the ingested documents.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	return s.assistant.Ask(ctx, question)
}

func (s *Service) Catalog() *scoring.Catalog {
	return s.catalog
}

// EmbeddingProvider names the provider chosen at startup.
func (s *Service) EmbeddingProvider() string {
	return s.embedder.Name()
}

func (s *Service) Metrics() monitor.Summary {
	return s.engine.Metrics()
}

// Close releases the store, index and embedding connections.
func (s *Service) Close() error {
	var errs []error
	if s.index != nil {
		errs = append(errs, s.index.Close())
	}
	if c, ok := s.embedder.(embedding.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
