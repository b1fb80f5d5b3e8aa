package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	ProvisionTotal    *prometheus.CounterVec
	JobsEnqueuedTotal prometheus.Counter
	JobsTotal         *prometheus.CounterVec
	LockContention    prometheus.Counter
	ComputeDuration   prometheus.Histogram
	APIKeyCacheHits   prometheus.Counter
	APIKeyCacheMisses prometheus.Counter
}

// New initializes and registers the Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ProvisionTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistor",
			Subsystem: "provision",
			Name:      "requests_total",
			Help:      "Total provisioning requests by outcome.",
		}, []string{"outcome"}), // outcome: fast_path, provisioned, reconciled, backend_error, directory_error, persist_error
		JobsEnqueuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "assistor",
			Subsystem: "training",
			Name:      "jobs_enqueued_total",
			Help:      "Total training jobs enqueued.",
		}),
		JobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistor",
			Subsystem: "training",
			Name:      "jobs_total",
			Help:      "Total processed training jobs by status.",
		}, []string{"status"}), // status: completed, failed, dead_lettered
		LockContention: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "assistor",
			Subsystem: "provision",
			Name:      "lock_contention_total",
			Help:      "Total times the per-tenant provisioning lock was already held.",
		}),
		ComputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "assistor",
			Subsystem: "training",
			Name:      "compute_duration_seconds",
			Help:      "Duration of batch-compute invocations.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		APIKeyCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "assistor",
			Subsystem: "auth",
			Name:      "api_key_cache_hits_total",
			Help:      "Total number of API key cache hits.",
		}),
		APIKeyCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "assistor",
			Subsystem: "auth",
			Name:      "api_key_cache_misses_total",
			Help:      "Total number of API key cache misses.",
		}),
	}
}
