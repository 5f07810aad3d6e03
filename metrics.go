package authcore

import "sync/atomic"

// MetricID identifies one of the engine's counters.
type MetricID uint16

const (
	// MetricIssueSuccess counts credential pairs issued.
	MetricIssueSuccess MetricID = iota
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts of any kind.
	MetricRefreshFailure
	// MetricReplayDetected counts refresh attempts with an already-revoked
	// credential: a concurrent-rotation loser or a replayed stolen value.
	MetricReplayDetected
	// MetricLogout counts logout calls.
	MetricLogout
	// MetricVerifySuccess counts access credentials that verified.
	MetricVerifySuccess
	// MetricVerifyFailure counts access credentials that were rejected.
	MetricVerifyFailure
	// MetricRateLimited counts requests rejected by the rate limiter.
	MetricRateLimited
	// MetricGateDenied counts requests denied by the second-factor gate.
	MetricGateDenied
	// MetricGatePassed counts second-factor verifications that succeeded.
	MetricGatePassed
	metricIDCount
)

// metricNames backs exporters; index matches MetricID.
var metricNames = [metricIDCount]string{
	"issue_success",
	"refresh_success",
	"refresh_failure",
	"replay_detected",
	"logout",
	"verify_success",
	"verify_failure",
	"rate_limited",
	"gate_denied",
	"gate_passed",
}

// Name returns the stable exporter-facing name of id.
func (id MetricID) Name() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every defined MetricID, in order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, metricIDCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a set of lock-free counters. A nil *Metrics is valid and
// discards every observation.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics returns an enabled counter set.
func NewMetrics() *Metrics {
	return &Metrics{enabled: true}
}

// Enabled reports whether observations are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Counters may advance between individual
// loads; each value is itself consistent.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	if m == nil || !m.enabled {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
