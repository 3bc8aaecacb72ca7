package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	// Fetch client metrics.
	FetchAttempts *prometheus.CounterVec // labels: outcome={success,client_error,server_error,rate_limited,network_error}
	FetchDuration prometheus.Histogram

	// Refresh cycle metrics.
	RefreshTotal    *prometheus.CounterVec   // labels: category, outcome={ok,disabled,unconfigured,failed}
	RefreshDuration *prometheus.HistogramVec // labels: category
	PatchesEmitted  *prometheus.CounterVec   // labels: category

	// Merge cache metrics.
	PatchesMerged *prometheus.CounterVec // labels: category
	CachedRegions prometheus.Gauge

	PublishErrors prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchAttempts,
		m.FetchDuration,
		m.RefreshTotal,
		m.RefreshDuration,
		m.PatchesEmitted,
		m.PatchesMerged,
		m.CachedRegions,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_data",
			Name:      "fetch_attempts_total",
			Help:      "Upstream HTTP attempts by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "region_data",
			Name:      "fetch_attempt_duration_seconds",
			Help:      "Duration of a single upstream HTTP attempt.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_data",
			Name:      "refresh_total",
			Help:      "Category refresh cycles by outcome.",
		}, []string{"category", "outcome"}),
		RefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "region_data",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-merge cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"category"}),
		PatchesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_data",
			Name:      "patches_emitted_total",
			Help:      "Patches produced by normalizers.",
		}, []string{"category"}),
		PatchesMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_data",
			Name:      "patches_merged_total",
			Help:      "Patches applied to the region cache.",
		}, []string{"category"}),
		CachedRegions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "region_data",
			Name:      "cached_regions",
			Help:      "Number of regions held in the cache.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "region_data",
			Name:      "publish_errors_total",
			Help:      "Failed change-feed publishes after a successful merge.",
		}),
	}
}
