package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks regulator call outcomes per operation. Prometheus carries
// the counters and latency histogram; the JSON snapshot backs the
// /metrics/regulator endpoint.
type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec

	mu  sync.Mutex
	ops map[string]*OpSnapshot
}

// OpSnapshot is the per-operation figure set of the JSON snapshot.
type OpSnapshot struct {
	Attempts       int   `json:"attempts"`
	Successes      int   `json:"successes"`
	Failures       int   `json:"failures"`
	LastDurationMs int64 `json:"lastDurationMs"`
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regulator_attempts_total",
			Help: "Regulator API attempts by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regulator_attempt_duration_seconds",
			Help:    "Regulator API attempt latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		ops: make(map[string]*OpSnapshot),
	}
}

func (m *Metrics) Record(op string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.attempts.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())

	m.mu.Lock()
	s, found := m.ops[op]
	if !found {
		s = &OpSnapshot{}
		m.ops[op] = s
	}
	s.Attempts++
	if ok {
		s.Successes++
	} else {
		s.Failures++
	}
	s.LastDurationMs = d.Milliseconds()
	m.mu.Unlock()
}

// Snapshot returns a copy of the per-operation figures.
func (m *Metrics) Snapshot() map[string]OpSnapshot {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]OpSnapshot, len(m.ops))
	for op, s := range m.ops {
		out[op] = *s
	}
	return out
}
