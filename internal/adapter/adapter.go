package adapter

import (
	"sync"
	"time"

	"github.com/orbitlabs/orbit-api/internal/model"
)

// Metrics aggregates per-tool call counts and timings across a run.
type Metrics struct {
	mu    sync.Mutex
	tools map[string]*model.ToolMetric
}

func NewMetrics() *Metrics {
	return &Metrics{tools: make(map[string]*model.ToolMetric)}
}

// Record adds one call outcome for a named tool.
func (m *Metrics) Record(tool string, elapsed time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tm, ok := m.tools[tool]
	if !ok {
		tm = &model.ToolMetric{}
		m.tools[tool] = tm
	}
	tm.Calls++
	tm.TotalTimeMs += elapsed.Milliseconds()
	if err != nil {
		tm.Failures++
	}
}

// Snapshot copies the collected metrics for the execution report.
func (m *Metrics) Snapshot() map[string]model.ToolMetric {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]model.ToolMetric, len(m.tools))
	for name, tm := range m.tools {
		out[name] = *tm
	}
	return out
}
