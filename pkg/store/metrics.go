package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the operational gauges/histograms the storage engine
// exposes. Callers register them once (NewMetrics) and pass the result
// into every Store/LockManager they construct; a nil *Metrics is valid
// everywhere and simply disables instrumentation, which keeps unit tests
// free of a global Prometheus registry.
type Metrics struct {
	ActiveTransactions prometheus.Gauge
	LockWaitSeconds    prometheus.Histogram
	LockTimeouts       prometheus.Counter
	GCReclaimedVersions prometheus.Counter
	GCSweeps            prometheus.Counter
}

// NewMetrics registers the storage engine's metrics with reg and returns
// the handle. Pass prometheus.NewRegistry() in production, or nil to opt
// out entirely.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "memgraph",
			Subsystem: "store",
			Name:      "active_transactions",
			Help:      "Number of currently active transactions.",
		}),
		LockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "memgraph",
			Subsystem: "store",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting to acquire a record lock.",
			Buckets:   prometheus.DefBuckets,
		}),
		LockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memgraph",
			Subsystem: "store",
			Name:      "lock_timeouts_total",
			Help:      "Number of lock acquisitions that timed out.",
		}),
		GCReclaimedVersions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memgraph",
			Subsystem: "store",
			Name:      "gc_reclaimed_versions_total",
			Help:      "Number of record versions reclaimed by garbage collection.",
		}),
		GCSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memgraph",
			Subsystem: "store",
			Name:      "gc_sweeps_total",
			Help:      "Number of garbage collection sweeps performed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ActiveTransactions, m.LockWaitSeconds, m.LockTimeouts, m.GCReclaimedVersions, m.GCSweeps)
	}
	return m
}

// ObserveLockWait records how long a lock acquisition took and whether it
// succeeded.
func (m *Metrics) ObserveLockWait(d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.LockWaitSeconds.Observe(d.Seconds())
	if !ok {
		m.LockTimeouts.Inc()
	}
}
