package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hubenschmidt/go-admissions/core"
	"github.com/hubenschmidt/go-admissions/rag"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// handleChat answers over server-sent events: one "stream" event with the
// answer, then an "end" event with metadata.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		writeError(w, core.Validationf("message is required"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), s.chatTimeout)
	defer cancel()

	ans, err := s.backend.Ask(ctx, req.Message)
	elapsed := time.Since(start)

	trace := TraceInfo{
		TraceID:        fmt.Sprintf("trace_%d", start.UnixNano()),
		Timestamp:      start.UnixMilli(),
		Input:          req.Message,
		TotalElapsedMs: elapsed.Milliseconds(),
	}

	if err != nil {
		log.Printf("[server] chat failed: %v", err)
		writeSSE(w, flusher, "stream", map[string]any{"content": "Error: " + err.Error()})
		writeSSE(w, flusher, "end", nil)
		trace.Output = "Error: " + err.Error()
		trace.Status = "error"
		s.traces.Add(trace)
		return
	}

	writeSSE(w, flusher, "stream", map[string]any{"content": ans.Text})
	writeSSE(w, flusher, "end", map[string]any{
		"metadata": Metadata{
			InputTokens:  ans.Usage.PromptTokens,
			OutputTokens: ans.Usage.CompletionTokens,
			ElapsedMs:    elapsed.Milliseconds(),
			Offline:      ans.Offline,
		},
	})

	trace.Output = ans.Text
	trace.TotalInputTokens = ans.Usage.PromptTokens
	trace.TotalOutputTokens = ans.Usage.CompletionTokens
	trace.Offline = ans.Offline
	trace.Status = "success"
	s.traces.Add(trace)
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, eventType string, data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	data["type"] = eventType
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

func (s *Server) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.backend.ListDocuments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs})
}

func (s *Server) handleDocumentAdd(w http.ResponseWriter, r *http.Request) {
	var req AddDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	category := req.Category
	if category == "" {
		category = req.DocumentType
	}

	id, err := s.backend.AddDocument(r.Context(), req.Title, req.Content, category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddDocumentResponse{ID: id})
}

func (s *Server) handleDocumentGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.backend.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.backend.DeleteDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteDocumentResponse{Deleted: deleted})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	passages, err := s.backend.Retrieve(r.Context(), req.Question, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Context: rag.JoinPassages(passages), Passages: passages})
}

func (s *Server) handleProgramList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProgramListResponse{Programs: s.backend.Catalog().Programs()})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req RecommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	matches, err := s.backend.GetRecommendations(req.Profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecommendationsResponse{Success: true, Recommendations: matches})
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	var req EligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ProgramID == "" {
		writeError(w, core.Validationf("program_id is required"))
		return
	}

	e, err := s.backend.CalculateEligibility(req.ProgramID, req.Profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EligibilityResponse{Success: true, Eligibility: e})
}

func (s *Server) handleTraceList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TraceListResponse{Traces: s.traces.List()})
}

func (s *Server) handleTraceGet(w http.ResponseWriter, r *http.Request) {
	trace, ok := s.traces.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

func (s *Server) handleTraceDelete(w http.ResponseWriter, r *http.Request) {
	s.traces.Delete(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MetricsSummaryResponse{
		Chat:      s.traces.Summary(),
		Retrieval: s.backend.Metrics(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[server] %v", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
