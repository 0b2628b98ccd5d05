package builder

import (
	"sync"
	"time"
)

// Metrics tracks build outcomes across a session. All methods are safe
// for concurrent use.
type Metrics struct {
	mu            sync.Mutex
	totalBuilds   int64
	succeeded     int64
	failed        int64
	totalDuration time.Duration
	slowest       time.Duration
	slowestRoute  string
}

// NewMetrics returns an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds one build outcome.
func (m *Metrics) Record(route string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalBuilds++
	m.totalDuration += d

	if err != nil {
		m.failed++
	} else {
		m.succeeded++
	}

	if d > m.slowest {
		m.slowest = d
		m.slowestRoute = route
	}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalBuilds     int64
	Succeeded       int64
	Failed          int64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	Slowest         time.Duration
	SlowestRoute    string
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		TotalBuilds:   m.totalBuilds,
		Succeeded:     m.succeeded,
		Failed:        m.failed,
		TotalDuration: m.totalDuration,
		Slowest:       m.slowest,
		SlowestRoute:  m.slowestRoute,
	}
	if m.totalBuilds > 0 {
		s.AverageDuration = m.totalDuration / time.Duration(m.totalBuilds)
	}

	return s
}

// LogFields flattens the snapshot into logger key/value pairs.
func (s Snapshot) LogFields() []interface{} {
	fields := []interface{}{
		"builds", s.TotalBuilds,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"avg_duration", s.AverageDuration.String(),
	}
	if s.SlowestRoute != "" {
		fields = append(fields,
			"slowest_route", s.SlowestRoute,
			"slowest_duration", s.Slowest.String(),
		)
	}

	return fields
}
