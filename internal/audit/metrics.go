package audit

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks chain health per resource: appends, append failures, and
// verification outcomes. Counters go to Prometheus; the JSON snapshot backs
// the /metrics/audit endpoint.
type Metrics struct {
	appended      *prometheus.CounterVec
	failures      *prometheus.CounterVec
	verifications *prometheus.CounterVec

	mu        sync.Mutex
	resources map[string]*ResourceSnapshot
}

// ResourceSnapshot is the per-resource figure set of the JSON snapshot.
type ResourceSnapshot struct {
	Appended       int  `json:"appended"`
	AppendFailures int  `json:"appendFailures"`
	Checks         int  `json:"checks"`
	CheckFailures  int  `json:"checkFailures"`
	LastBreakIndex *int `json:"lastBreakIndex"`
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		appended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_entries_appended_total",
			Help: "Audit entries successfully linked into the chain.",
		}, []string{"resource", "action"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_append_failures_total",
			Help: "Audit entries that failed to persist or were dropped.",
		}, []string{"resource"}),
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_chain_verifications_total",
			Help: "Chain verification runs by outcome.",
		}, []string{"resource", "result"}),
		resources: make(map[string]*ResourceSnapshot),
	}
}

func (m *Metrics) resource(name string) *ResourceSnapshot {
	s, ok := m.resources[name]
	if !ok {
		s = &ResourceSnapshot{}
		m.resources[name] = s
	}
	return s
}

func (m *Metrics) EntryAppended(resource string, action Action) {
	if m == nil {
		return
	}
	m.appended.WithLabelValues(resource, string(action)).Inc()
	m.mu.Lock()
	m.resource(resource).Appended++
	m.mu.Unlock()
}

func (m *Metrics) AppendFailed(resource string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(resource).Inc()
	m.mu.Lock()
	m.resource(resource).AppendFailures++
	m.mu.Unlock()
}

func (m *Metrics) ChainVerified(resource string, result VerifyResult) {
	if m == nil {
		return
	}
	outcome := "valid"
	if !result.Valid {
		outcome = "broken"
	}
	m.verifications.WithLabelValues(resource, outcome).Inc()
	m.mu.Lock()
	s := m.resource(resource)
	s.Checks++
	if !result.Valid {
		s.CheckFailures++
		s.LastBreakIndex = result.BreakIndex
	}
	m.mu.Unlock()
}

// Snapshot returns a copy of the per-resource figures.
func (m *Metrics) Snapshot() map[string]ResourceSnapshot {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]ResourceSnapshot, len(m.resources))
	for name, s := range m.resources {
		out[name] = *s
	}
	return out
}
