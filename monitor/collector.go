// Package monitor records per-operation metrics for the retrieval engine.
package monitor

import (
	"sync"
	"time"
)

type MetricsCollector interface {
	Record(metrics OperationMetrics)
	Flush() Summary
}

type InMemoryCollector struct {
	mu        sync.RWMutex
	ops       map[string]OperationSummary
	startTime time.Time
}

func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		ops:       make(map[string]OperationSummary),
		startTime: time.Now(),
	}
}

func (c *InMemoryCollector) Record(m OperationMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.ops[m.Operation]
	s.Count++
	s.Chunks += m.Chunks
	s.TotalDuration += m.Duration
	if !m.Success {
		s.Failures++
		s.LastError = m.Error
	}
	c.ops[m.Operation] = s
}

func (c *InMemoryCollector) Flush() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ops := make(map[string]OperationSummary, len(c.ops))
	for k, v := range c.ops {
		ops[k] = v
	}

	return Summary{
		Operations: ops,
		StartTime:  c.startTime,
		EndTime:    time.Now(),
	}
}

func (c *InMemoryCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = make(map[string]OperationSummary)
	c.startTime = time.Now()
}

type NoOpCollector struct{}

func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (c *NoOpCollector) Record(metrics OperationMetrics) {}

func (c *NoOpCollector) Flush() Summary {
	return Summary{}
}
