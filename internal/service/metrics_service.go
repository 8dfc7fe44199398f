package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the inspection domain counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	inspectionsCreated *prometheus.CounterVec
	reviewTransitions  *prometheus.CounterVec
	manualRequests     *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	inspectionsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspections_created_total",
		Help: "Inspections submitted, labelled by whether problems were reported",
	}, []string{"has_issues"})

	reviewTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_transitions_total",
		Help: "Pending to reviewed transitions, labelled by record kind",
	}, []string{"kind"})

	manualRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manual_requests_dispatched_total",
		Help: "Manual inspection requests by dispatch outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		inspectionsCreated, reviewTransitions, manualRequests, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		inspectionsCreated: inspectionsCreated,
		reviewTransitions:  reviewTransitions,
		manualRequests:     manualRequests,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation counts cache lookups by outcome.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// IncInspectionCreated counts a submitted inspection.
func (m *MetricsService) IncInspectionCreated(hasIssues bool) {
	if m == nil {
		return
	}
	m.inspectionsCreated.WithLabelValues(fmt.Sprintf("%t", hasIssues)).Inc()
}

// IncReviewTransition counts a pending record moving to reviewed.
func (m *MetricsService) IncReviewTransition(kind string) {
	if m == nil {
		return
	}
	m.reviewTransitions.WithLabelValues(kind).Inc()
}

// AddManualRequests counts dispatched manual inspection requests.
func (m *MetricsService) AddManualRequests(created, skipped int) {
	if m == nil {
		return
	}
	m.manualRequests.WithLabelValues("created").Add(float64(created))
	m.manualRequests.WithLabelValues("skipped").Add(float64(skipped))
}
