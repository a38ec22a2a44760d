// Package tmetrics exposes Prometheus instrumentation for the treasury
// registry's store/fetch/reimport paths.
package tmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AssetsTotal tracks the current catalog size by native format.
	AssetsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "treasury_assets_total",
			Help: "Total number of cataloged assets by native format",
		},
		[]string{"native_format"},
	)

	StoreTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasury_store_total",
			Help: "Total number of Store calls by outcome",
		},
		[]string{"outcome"}, // created, deduped, error
	)

	StoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treasury_store_duration_seconds",
			Help:    "Store call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasury_fetch_total",
			Help: "Total number of Fetch/FetchUpdated calls by outcome",
		},
		[]string{"outcome"}, // served, not_modified, error
	)

	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treasury_fetch_duration_seconds",
			Help:    "Fetch call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ReimportTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasury_reimport_total",
			Help: "Total number of reimport decisions taken on a stale asset",
		},
		[]string{"outcome"}, // reimported, stale_served, failed
	)
)

func init() {
	prometheus.MustRegister(AssetsTotal)
	prometheus.MustRegister(StoreTotal)
	prometheus.MustRegister(StoreDuration)
	prometheus.MustRegister(FetchTotal)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(ReimportTotal)
}

// Handler returns the Prometheus HTTP handler for a metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
