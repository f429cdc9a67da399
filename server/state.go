package server

import (
	"sort"
	"sync"
)

const maxTraces = 200

// TraceStore keeps the most recent chat traces in memory.
type TraceStore struct {
	mu     sync.RWMutex
	traces map[string]TraceInfo
}

func newTraceStore() *TraceStore {
	return &TraceStore{
		traces: make(map[string]TraceInfo),
	}
}

func (s *TraceStore) Add(t TraceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[t.TraceID] = t
	if len(s.traces) > maxTraces {
		s.evictOldest()
	}
}

func (s *TraceStore) evictOldest() {
	var oldest TraceInfo
	first := true
	for _, t := range s.traces {
		if first || t.Timestamp < oldest.Timestamp {
			oldest, first = t, false
		}
	}
	delete(s.traces, oldest.TraceID)
}

// List returns traces newest first.
func (s *TraceStore) List() []TraceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]TraceInfo, 0, len(s.traces))
	for _, t := range s.traces {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].TraceID < result[j].TraceID
	})
	return result
}

func (s *TraceStore) Get(id string) (TraceInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traces[id]
	return t, ok
}

func (s *TraceStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.traces, id)
}

func (s *TraceStore) Summary() TraceSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.traces) == 0 {
		return TraceSummary{}
	}

	var totalLatency int64
	var totalIn, totalOut, offline, failed int
	for _, t := range s.traces {
		totalLatency += t.TotalElapsedMs
		totalIn += t.TotalInputTokens
		totalOut += t.TotalOutputTokens
		if t.Offline {
			offline++
		}
		if t.Status != "success" {
			failed++
		}
	}

	return TraceSummary{
		TotalTraces:       len(s.traces),
		TotalInputTokens:  totalIn,
		TotalOutputTokens: totalOut,
		OfflineAnswers:    offline,
		Failures:          failed,
		AvgLatencyMs:      float64(totalLatency) / float64(len(s.traces)),
	}
}
