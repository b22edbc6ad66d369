// Package observability provides Prometheus metrics for the breedscan service.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry

	ClassificationsTotal *prometheus.CounterVec
	FallbackFetches      prometheus.Counter
	StorageDownloads     prometheus.Counter
	DegradedInferences   prometheus.Counter
	PersistenceFailures  prometheus.Counter
	LogWriteFailures     prometheus.Counter
	InferenceDuration    prometheus.Histogram
	PipelineDuration     prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with its own registry,
// initializing and registering all collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}

	m.ClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breedscan_classifications_total",
		Help: "Total number of classification requests by result status.",
	}, []string{"status"})

	m.FallbackFetches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "breedscan_fallback_fetches_total",
		Help: "Total number of image fetches that fell back to a direct HTTP GET.",
	})

	m.StorageDownloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "breedscan_storage_downloads_total",
		Help: "Total number of successful storage-service downloads.",
	})

	m.DegradedInferences = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "breedscan_degraded_inferences_total",
		Help: "Total number of inference calls that degraded to the default prediction.",
	})

	m.PersistenceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "breedscan_persistence_failures_total",
		Help: "Total number of animal record upsert failures.",
	})

	m.LogWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "breedscan_log_write_failures_total",
		Help: "Total number of non-fatal prediction log insert failures.",
	})

	m.InferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "breedscan_inference_duration_seconds",
		Help:    "Duration of remote classifier calls in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	m.PipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "breedscan_pipeline_duration_seconds",
		Help:    "Duration of the full classification pipeline in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	collectors := []prometheus.Collector{
		m.ClassificationsTotal,
		m.FallbackFetches,
		m.StorageDownloads,
		m.DegradedInferences,
		m.PersistenceFailures,
		m.LogWriteFailures,
		m.InferenceDuration,
		m.PipelineDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics collector: %w", err)
		}
	}

	return m, nil
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncClassification increments the classification counter for a status
// label ("success", "degraded", "error").
func (m *Metrics) IncClassification(status string) {
	m.ClassificationsTotal.WithLabelValues(status).Inc()
}
