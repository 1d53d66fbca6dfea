// Package observability holds the process-wide Prometheus instruments.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	renderDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tile_render_duration_seconds",
			Help:    "Duration of tile renders in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"layer_type"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_cache_results_total",
			Help: "Render cache results by outcome (hit, miss, shared, failed).",
		},
		[]string{"outcome"},
	)

	wmsFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wms_fetches_total",
			Help: "Outbound WMS GetMap fetches by outcome.",
		},
		[]string{"outcome"},
	)

	wmsLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wms_fetch_duration_seconds",
			Help:    "Latency of outbound WMS GetMap fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveRender(layerType string, durationSeconds float64) {
	renderDurationSeconds.WithLabelValues(layerType).Observe(durationSeconds)
}

func IncCache(outcome string) {
	cacheResults.WithLabelValues(outcome).Inc()
}

func ObserveWMSFetch(outcome string, durationSeconds float64) {
	wmsFetches.WithLabelValues(outcome).Inc()
	wmsLatencySeconds.Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
