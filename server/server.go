// Package server exposes the admissions service over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hubenschmidt/go-admissions/assistant"
	"github.com/hubenschmidt/go-admissions/core"
	"github.com/hubenschmidt/go-admissions/monitor"
	"github.com/hubenschmidt/go-admissions/rag"
	"github.com/hubenschmidt/go-admissions/scoring"
)

// Backend is the part of admissions.Service the handlers call.
type Backend interface {
	AddDocument(ctx context.Context, title, content, category string) (string, error)
	Retrieve(ctx context.Context, question string, topK int) ([]rag.Passage, error)
	DeleteDocument(ctx context.Context, id string) (bool, error)
	ListDocuments(ctx context.Context) ([]core.Document, error)
	GetDocument(ctx context.Context, id string) (core.Document, error)
	GetRecommendations(profile scoring.Profile) ([]scoring.Match, error)
	CalculateEligibility(programID string, profile scoring.Profile) (scoring.Eligibility, error)
	Ask(ctx context.Context, question string) (*assistant.Answer, error)
	Catalog() *scoring.Catalog
	Metrics() monitor.Summary
}

// Config configures a new Server instance.
type Config struct {
	Backend Backend
	// ChatTimeout bounds one chat request. Zero means 120s.
	ChatTimeout time.Duration
}

// Server is an HTTP server for the admissions service.
type Server struct {
	backend     Backend
	traces      *TraceStore
	chatTimeout time.Duration
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("%w: server needs a backend", core.ErrInvalidConfig)
	}
	timeout := cfg.ChatTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Server{
		backend:     cfg.Backend,
		traces:      newTraceStore(),
		chatTimeout: timeout,
	}, nil
}

// Handler returns an http.Handler for the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)

	mux.HandleFunc("GET /api/documents", s.handleDocumentList)
	mux.HandleFunc("POST /api/documents", s.handleDocumentAdd)
	mux.HandleFunc("GET /api/documents/{id}", s.handleDocumentGet)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDocumentDelete)
	mux.HandleFunc("POST /api/query", s.handleQuery)

	mux.HandleFunc("GET /api/programs", s.handleProgramList)
	mux.HandleFunc("POST /api/recommendations", s.handleRecommendations)
	mux.HandleFunc("POST /api/eligibility", s.handleEligibility)

	mux.HandleFunc("GET /api/traces", s.handleTraceList)
	mux.HandleFunc("GET /api/traces/{id}", s.handleTraceGet)
	mux.HandleFunc("DELETE /api/traces/{id}", s.handleTraceDelete)
	mux.HandleFunc("GET /api/metrics/summary", s.handleMetricsSummary)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
