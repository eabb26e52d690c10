package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus instruments on a private registry.
// All observe methods are safe on a nil receiver so callers can skip wiring
// in tests.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	classifications *prometheus.CounterVec
	crawlPages      prometheus.Counter
	reportDuration  prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
}

// New registers the service instruments on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opencookie_github_requests_total",
			Help: "Upstream GitHub API requests by endpoint and outcome.",
		}, []string{"endpoint", "status"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opencookie_github_request_duration_seconds",
			Help:    "Upstream GitHub API request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opencookie_classifications_total",
			Help: "Assignee classifications by resulting status.",
		}, []string{"status"}),
		crawlPages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opencookie_crawl_pages_total",
			Help: "Issue listing pages fetched during crawls.",
		}),
		reportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opencookie_report_build_duration_seconds",
			Help:    "End to end report build latency including crawling.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opencookie_cache_lookups_total",
			Help: "Report cache lookups by result.",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.apiRequests,
		m.apiDuration,
		m.classifications,
		m.crawlPages,
		m.reportDuration,
		m.cacheLookups,
	)
	return m
}

// Handler serves the registry in OpenMetrics format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ObserveAPIRequest records one upstream request outcome.
func (m *Metrics) ObserveAPIRequest(endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, status).Inc()
	m.apiDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveClassification records one classification result.
func (m *Metrics) ObserveClassification(status string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(status).Inc()
}

// ObserveCrawlPages records pages fetched by one crawl.
func (m *Metrics) ObserveCrawlPages(pages int) {
	if m == nil || pages <= 0 {
		return
	}
	m.crawlPages.Add(float64(pages))
}

// ObserveReportBuild records one report build duration.
func (m *Metrics) ObserveReportBuild(duration time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.Observe(duration.Seconds())
}

// ObserveCacheLookup records a cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
