package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/houzhh15/certindex/certs"
)

var (
	// httpRequestsTotal counts API requests by method, path and status
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration tracks API request latency
	httpRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// inventoryCertificates tracks the inventory size by lifecycle status
	inventoryCertificates = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inventory_certificates_total",
			Help: "Certificates in the current inventory grouped by status",
		},
		[]string{"status"},
	)

	// inventoryFallbackActive is 1 while the inventory holds fallback
	// example records instead of live upstream data
	inventoryFallbackActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inventory_fallback_active",
			Help: "Whether the inventory currently holds offline fallback records",
		},
	)

	// refreshFailures counts refresh cycles that could not replace the
	// inventory at all (parse errors, not transport fallbacks)
	refreshFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_refresh_failures_total",
			Help: "Total inventory refresh cycles that failed outright",
		},
	)
)

// recordRequest records one finished HTTP request.
func recordRequest(method, path, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.Observe(seconds)
}

// UpdateInventoryMetrics publishes the per-status gauges after a
// refresh. Degraded (fallback) mode is exposed as its own gauge so it
// is observable, never silently indistinguishable from live data.
func UpdateInventoryMetrics(stats certs.Stats, degraded bool) {
	inventoryCertificates.WithLabelValues(string(certs.StatusValid)).Set(float64(stats.Valid))
	inventoryCertificates.WithLabelValues(string(certs.StatusExpiringSoon)).Set(float64(stats.ExpiringSoon))
	inventoryCertificates.WithLabelValues(string(certs.StatusExpired)).Set(float64(stats.Expired))

	if degraded {
		inventoryFallbackActive.Set(1)
	} else {
		inventoryFallbackActive.Set(0)
	}
}

// RecordRefreshFailure counts a refresh cycle that failed outright.
func RecordRefreshFailure() {
	refreshFailures.Inc()
}
