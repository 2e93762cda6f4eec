package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveAnalyses  prometheus.Gauge
	AnalysisRuns    *prometheus.CounterVec
	PeerRequests    *prometheus.HistogramVec
	MemoryWrites    *prometheus.CounterVec
	StoreErrors     *prometheus.CounterVec
	CleanupDeletion *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveAnalyses: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_analyses",
			Help:      "Number of session analyses currently in flight.",
		}),
		AnalysisRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Completed analysis runs by outcome.",
		}, []string{"outcome"}),
		PeerRequests: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "peer_request_seconds",
			Help:      "Cognitive API request latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 90, 120},
		}, []string{"endpoint"}),
		MemoryWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_writes_total",
			Help:      "Extracted-memory inserts by outcome.",
		}, []string{"outcome"}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Persistent store errors by operation.",
		}, []string{"operation"}),
		CleanupDeletion: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_rows_deleted_total",
			Help:      "Rows removed by the bulk deletion routine, per table.",
		}, []string{"table"}),
	}
}

func (m *Metrics) ObservePeerRequest(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.PeerRequests.WithLabelValues(endpoint).Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
