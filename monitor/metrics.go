package monitor

import "time"

// OperationMetrics describes one completed engine call.
type OperationMetrics struct {
	Operation  string        `json:"operation"`
	DocumentID string        `json:"document_id,omitempty"`
	Chunks     int           `json:"chunks"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
}

// OperationSummary aggregates every call of one operation.
type OperationSummary struct {
	Count         int           `json:"count"`
	Failures      int           `json:"failures"`
	Chunks        int           `json:"chunks"`
	TotalDuration time.Duration `json:"total_duration"`
	LastError     string        `json:"last_error,omitempty"`
}

// AvgDuration returns the mean call duration.
func (s OperationSummary) AvgDuration() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Count)
}

type Summary struct {
	Operations map[string]OperationSummary `json:"operations"`
	StartTime  time.Time                   `json:"start_time"`
	EndTime    time.Time                   `json:"end_time"`
}
