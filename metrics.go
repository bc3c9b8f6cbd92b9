package authform

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricEmailCheckStarted counts blur-time lookups issued.
	MetricEmailCheckStarted MetricID = iota
	// MetricEmailCheckExists counts lookups that found an account.
	MetricEmailCheckExists
	// MetricEmailCheckAvailable counts lookups that found no account.
	MetricEmailCheckAvailable
	// MetricEmailCheckFailed counts lookups that reported an error or faulted.
	MetricEmailCheckFailed
	// MetricEmailCheckStale counts lookup results discarded because the form moved on.
	MetricEmailCheckStale
	// MetricEmailCheckExhausted counts blurs refused by the per-form attempt cap.
	MetricEmailCheckExhausted
	// MetricEmailCheckRateLimited counts blurs refused by the server-side lookup throttle.
	MetricEmailCheckRateLimited
	// MetricSubmitBlocked counts submissions ignored by the gate.
	MetricSubmitBlocked
	// MetricSubmitRejected counts submissions stopped by local validation.
	MetricSubmitRejected
	// MetricSubmitRateLimited counts submissions refused by the server-side submit throttle.
	MetricSubmitRateLimited
	// MetricRaceGuardExists counts registrations stopped by the final re-check.
	MetricRaceGuardExists
	// MetricRaceGuardFailed counts registrations stopped because the final re-check failed.
	MetricRaceGuardFailed
	MetricLoginSuccess
	MetricLoginFailure
	MetricRegisterSuccess
	MetricRegisterDuplicate
	MetricRegisterFailure
	MetricResetRequestSuccess
	MetricResetRequestFailure
	// MetricUnexpectedFault counts collaborator panics recovered by the engine.
	MetricUnexpectedFault
	// MetricFormReset counts mode switches, closes and post-success resets.
	MetricFormReset
	// MetricLookupLatency is the only histogram: availability lookup round-trip time.
	MetricLookupLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency histogram.
//
// Metrics is safe for concurrent use. A nil or disabled Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a counter set. A disabled set records nothing.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only [MetricLookupLatency] has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricLookupLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram bucket.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricLookupLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricLookupLatency].buckets[i])
		}
		s.Histograms[MetricLookupLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
