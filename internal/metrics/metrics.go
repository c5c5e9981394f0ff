// Package metrics exposes Prometheus collectors for the crawler service.
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

// Fetch outcomes recorded by ObserveFetch.
const (
	FetchHTML    = "html"
	FetchSkipped = "skipped"
	FetchError   = "error"
)

// Crawl outcomes recorded by ObserveCrawl.
const (
	CrawlSucceeded = "succeeded"
	CrawlFailed    = "failed"
)

var (
	crawlsTotal                *prometheus.CounterVec
	crawlDurationSeconds       *prometheus.HistogramVec
	fetchesTotal               *prometheus.CounterVec
	batchSize                  prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowley_crawls_total",
				Help: "Total number of domain crawls, labeled by outcome.",
			},
			[]string{"status"},
		)

		crawlDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crowley_crawl_duration_seconds",
				Help:    "Histogram of whole-domain crawl durations, labeled by outcome.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"status"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowley_fetches_total",
				Help: "Total number of page fetches, labeled by result.",
			},
			[]string{"result"},
		)

		batchSize = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crowley_batch_size",
				Help:    "Number of URLs fetched concurrently per frontier round.",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveCrawl records one finished crawl.
func ObserveCrawl(status string, duration time.Duration) {
	Init()
	crawlsTotal.WithLabelValues(status).Inc()
	crawlDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveFetch records the result of one page fetch.
func ObserveFetch(result string) {
	Init()
	fetchesTotal.WithLabelValues(result).Inc()
}

// ObserveBatch records the size of one frontier round.
func ObserveBatch(size int) {
	Init()
	batchSize.Observe(float64(size))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
