package messaging

import (
	"sync"
	"time"

	"github.com/alem-hub/caliper-fixtures/internal/domain/caliper"
)

// Metrics tracks bus throughput and handler health.
type Metrics struct {
	mu sync.RWMutex

	// Publish metrics
	EnvelopesPublished int64
	EventsByType       map[caliper.EventType]int64

	// Handler execution metrics
	HandlerExecutions    int64
	HandlerSuccesses     int64
	HandlerFailures      int64
	HandlerTotalDuration time.Duration
	FailuresByHandler    map[string]int64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsByType:      make(map[caliper.EventType]int64),
		FailuresByHandler: make(map[string]int64),
	}
}

// RecordPublish records one published envelope.
func (m *Metrics) RecordPublish(env caliper.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EnvelopesPublished++
	for _, e := range env.Data {
		m.EventsByType[e.Type]++
	}
}

// RecordHandlerExecution records one handler run.
func (m *Metrics) RecordHandlerExecution(handler string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HandlerExecutions++
	m.HandlerTotalDuration += duration

	if success {
		m.HandlerSuccesses++
	} else {
		m.HandlerFailures++
		m.FailuresByHandler[handler]++
	}
}

// Snapshot returns a copy of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avg := time.Duration(0)
	if m.HandlerExecutions > 0 {
		avg = m.HandlerTotalDuration / time.Duration(m.HandlerExecutions)
	}

	var events int64
	byType := make(map[caliper.EventType]int64, len(m.EventsByType))
	for t, n := range m.EventsByType {
		byType[t] = n
		events += n
	}

	return MetricsSnapshot{
		EnvelopesPublished:     m.EnvelopesPublished,
		EventsPublished:        events,
		EventsByType:           byType,
		HandlerExecutions:      m.HandlerExecutions,
		HandlerFailures:        m.HandlerFailures,
		HandlerSuccessRate:     m.successRate(),
		AverageHandlerDuration: avg,
	}
}

func (m *Metrics) successRate() float64 {
	if m.HandlerExecutions == 0 {
		return 1.0
	}
	return float64(m.HandlerSuccesses) / float64(m.HandlerExecutions)
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	EnvelopesPublished     int64
	EventsPublished        int64
	EventsByType           map[caliper.EventType]int64
	HandlerExecutions      int64
	HandlerFailures        int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
}
