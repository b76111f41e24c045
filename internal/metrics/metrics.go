// Package metrics exposes Prometheus collectors for the submission service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	syncRecordsTotal           *prometheus.CounterVec
	syncRunsTotal              *prometheus.CounterVec
	webhookDeliveriesTotal     *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kobo_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kobo_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		syncRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kobo_sync_records_total",
				Help: "Total number of records processed by the sync routine, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		syncRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kobo_sync_runs_total",
				Help: "Total number of sync runs, labeled by status.",
			},
			[]string{"status"},
		)

		webhookDeliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kobo_webhook_deliveries_total",
				Help: "Total number of webhook deliveries, labeled by outcome.",
			},
			[]string{"outcome"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one completed HTTP request.
func ObserveRequest(method, code, route string, elapsed time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, code).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveSyncRecord counts one record processed during a sync run.
func ObserveSyncRecord(outcome string) {
	if syncRecordsTotal == nil {
		return
	}
	syncRecordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSyncRun counts one finished sync run.
func ObserveSyncRun(status string) {
	if syncRunsTotal == nil {
		return
	}
	syncRunsTotal.WithLabelValues(status).Inc()
}

// ObserveWebhook counts one webhook delivery.
func ObserveWebhook(outcome string) {
	if webhookDeliveriesTotal == nil {
		return
	}
	webhookDeliveriesTotal.WithLabelValues(outcome).Inc()
}
