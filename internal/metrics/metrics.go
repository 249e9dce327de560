// Package metrics exposes Prometheus collectors for the leaderboard crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcomes used as the status label of crawler_pages_total.
const (
	PageSucceeded  = "succeeded"
	PageFailed     = "failed"
	PageDisallowed = "disallowed"
)

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerProductsTotal       prometheus.Counter
	crawlerEntryErrorsTotal    prometheus.Counter
	crawlerRetriesTotal        prometheus.Counter
	crawlerSinkErrorsTotal     *prometheus.CounterVec
	crawlerCommentsTotal       prometheus.Counter
	crawlerPageDurationSeconds prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of leaderboard pages visited, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerProductsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_products_total",
				Help: "Total number of products extracted.",
			},
		)

		crawlerEntryErrorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_entry_errors_total",
				Help: "Total number of product entries skipped for missing fields.",
			},
		)

		crawlerRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_retries_total",
				Help: "Total number of failed attempts to locate the product list.",
			},
		)

		crawlerSinkErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_sink_errors_total",
				Help: "Total number of records a sink failed to write, labeled by sink.",
			},
			[]string{"sink"},
		)

		crawlerCommentsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_comments_total",
				Help: "Total number of comments collected from detail pages.",
			},
		)

		crawlerPageDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_page_duration_seconds",
				Help:    "Histogram of time spent on one leaderboard page.",
				Buckets: []float64{5, 10, 20, 30, 60, 120, 300},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records the outcome and duration of one leaderboard page.
func ObservePage(status string, duration time.Duration) {
	crawlerPagesTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		crawlerPageDurationSeconds.Observe(duration.Seconds())
	}
}

// AddProducts increments the extracted product counter.
func AddProducts(n int) {
	if n > 0 {
		crawlerProductsTotal.Add(float64(n))
	}
}

// AddEntryErrors increments the skipped entry counter.
func AddEntryErrors(n int) {
	if n > 0 {
		crawlerEntryErrorsTotal.Add(float64(n))
	}
}

// IncRetry counts one failed product-list attempt.
func IncRetry() {
	crawlerRetriesTotal.Inc()
}

// IncSinkError counts one failed write on the named sink.
func IncSinkError(sink string) {
	crawlerSinkErrorsTotal.WithLabelValues(sink).Inc()
}

// AddComments increments the collected comment counter.
func AddComments(n int) {
	if n > 0 {
		crawlerCommentsTotal.Add(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
