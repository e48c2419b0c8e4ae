package audit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the audit write path
type Metrics struct {
	Enqueued      prometheus.Counter
	Written       prometheus.Counter
	Requeued      prometheus.Counter
	WriteErrors   prometheus.Counter
	FlushDuration prometheus.Histogram
}

// NewMetrics builds and registers the audit collectors. A nil registerer
// leaves the collectors unregistered, which keeps tests isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "governance",
			Subsystem: "audit",
			Name:      "entries_enqueued_total",
			Help:      "Entries accepted into the batch queue",
		}),
		Written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "governance",
			Subsystem: "audit",
			Name:      "entries_written_total",
			Help:      "Entries durably persisted",
		}),
		Requeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "governance",
			Subsystem: "audit",
			Name:      "entries_requeued_total",
			Help:      "Entries re-queued after a failed bulk write",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "governance",
			Subsystem: "audit",
			Name:      "write_errors_total",
			Help:      "Failed repository writes",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "governance",
			Subsystem: "audit",
			Name:      "flush_duration_seconds",
			Help:      "Bulk write latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Enqueued, m.Written, m.Requeued, m.WriteErrors, m.FlushDuration)
	}

	return m
}
