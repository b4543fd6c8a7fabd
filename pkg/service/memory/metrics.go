package memory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const outcomeSuccess = "success"
const outcomeUnavailable = "unavailable"

// Metrics records store client operations
type Metrics struct {
	duration   *prometheus.HistogramVec
	attempts   *prometheus.CounterVec
	operations *prometheus.CounterVec
}

// NewMetrics registers the store client collectors with reg. A nil reg uses
// a private registry so several clients can coexist in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthmem_memory_operation_duration_seconds",
				Help:    "Memory store operation latency in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthmem_memory_backend_attempts_total",
				Help: "Total number of calls issued to the memory backend",
			},
			[]string{"operation"},
		),
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthmem_memory_operations_total",
				Help: "Total number of memory store operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
	}
}

func (m *Metrics) observe(op, outcome string, attempts int, start time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	if attempts == 0 {
		return
	}
	m.attempts.WithLabelValues(op).Add(float64(attempts))
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func outcomeOf(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	return string(KindOf(err))
}
