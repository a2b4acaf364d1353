package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the HTTP server and the stock ledgers.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	insufficient    prometheus.Counter
	clamped         prometheus.Counter
	drift           *prometheus.CounterVec
	jobs            *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and domain metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mandi_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mandi_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	insufficient := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mandi_vehicle_stock_insufficient_total",
		Help: "Vehicle sales that exceeded the stock carried by the vehicle.",
	})
	clamped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mandi_stock_clamped_total",
		Help: "Product stock decrements absorbed by the zero floor.",
	})
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mandi_reconcile_drift_total",
		Help: "Cached stock rows corrected by reconciliation, by scope.",
	}, []string{"scope"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mandi_jobs_total",
		Help: "Background job runs by task and outcome.",
	}, []string{"task", "outcome"})
	registry.MustRegister(requests, duration, insufficient, clamped, drift, jobs)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		insufficient:    insufficient,
		clamped:         clamped,
		drift:           drift,
		jobs:            jobs,
	}
}

// VehicleStockInsufficient counts an advisory vehicle sale overdraft.
func (m *Metrics) VehicleStockInsufficient() {
	if m == nil {
		return
	}
	m.insufficient.Inc()
}

// StockClamped counts a product decrement that hit the zero floor.
func (m *Metrics) StockClamped() {
	if m == nil {
		return
	}
	m.clamped.Inc()
}

// ReconcileDrift adds corrected rows for a scope ("product" or "vehicle").
func (m *Metrics) ReconcileDrift(scope string, rows int) {
	if m == nil || rows <= 0 {
		return
	}
	m.drift.WithLabelValues(scope).Add(float64(rows))
}

// JobRun records a background job outcome.
func (m *Metrics) JobRun(task, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(task, outcome).Inc()
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
