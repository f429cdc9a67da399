package server

import (
	"github.com/hubenschmidt/go-admissions/core"
	"github.com/hubenschmidt/go-admissions/monitor"
	"github.com/hubenschmidt/go-admissions/rag"
	"github.com/hubenschmidt/go-admissions/scoring"
)

type ChatRequest struct {
	Message string `json:"message"`
}

type Metadata struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	ElapsedMs    int64 `json:"elapsed_ms"`
	Offline      bool  `json:"offline"`
}

type AddDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	// DocumentType is accepted as an alias of Category.
	Category     string `json:"category"`
	DocumentType string `json:"documentType,omitempty"`
}

type AddDocumentResponse struct {
	ID string `json:"id"`
}

type DeleteDocumentResponse struct {
	Deleted bool `json:"deleted"`
}

type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

type QueryResponse struct {
	Context  string        `json:"context"`
	Passages []rag.Passage `json:"passages"`
}

type RecommendationsRequest struct {
	Profile scoring.Profile `json:"profile"`
}

type RecommendationsResponse struct {
	Success         bool            `json:"success"`
	Recommendations []scoring.Match `json:"recommendations"`
}

type EligibilityRequest struct {
	ProgramID string          `json:"program_id"`
	Profile   scoring.Profile `json:"profile"`
}

type EligibilityResponse struct {
	Success     bool                `json:"success"`
	Eligibility scoring.Eligibility `json:"eligibility"`
}

type DocumentListResponse struct {
	Documents []core.Document `json:"documents"`
}

type ProgramListResponse struct {
	Programs []scoring.Program `json:"programs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// TraceInfo records one chat exchange.
type TraceInfo struct {
	TraceID           string `json:"trace_id"`
	Timestamp         int64  `json:"timestamp"`
	Input             string `json:"input"`
	Output            string `json:"output"`
	TotalElapsedMs    int64  `json:"total_elapsed_ms"`
	TotalInputTokens  int    `json:"total_input_tokens"`
	TotalOutputTokens int    `json:"total_output_tokens"`
	Offline           bool   `json:"offline"`
	Status            string `json:"status"`
}

type TraceSummary struct {
	TotalTraces       int     `json:"total_traces"`
	TotalInputTokens  int     `json:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens"`
	OfflineAnswers    int     `json:"offline_answers"`
	Failures          int     `json:"failures"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
}

type TraceListResponse struct {
	Traces []TraceInfo `json:"traces"`
}

type MetricsSummaryResponse struct {
	Chat      TraceSummary    `json:"chat"`
	Retrieval monitor.Summary `json:"retrieval"`
}
