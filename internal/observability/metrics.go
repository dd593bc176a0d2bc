// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blend-portfolio/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Report metrics
	ReportDuration   *prometheus.HistogramVec
	ReportsTotal     *prometheus.CounterVec
	LastReportAt     *prometheus.GaugeVec
	DataGapsReported *prometheus.CounterVec

	// Store metrics
	StoreQueryDuration *prometheus.HistogramVec
	StoreQueryErrors   *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered against reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "blend_portfolio"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		ReportDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "duration_seconds",
			Help:      "Report computation duration in seconds by kind and status",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind", "status"}),
		ReportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "total",
			Help:      "Total number of reports computed by kind and status",
		}, []string{"kind", "status"}),
		LastReportAt: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "last_success_timestamp",
			Help:      "Unix timestamp of the last successful report by kind",
		}, []string{"kind"}),
		DataGapsReported: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "data_gaps_total",
			Help:      "Total number of data gap warnings emitted by provenance",
		}, []string{"provenance"}),

		StoreQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Store query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		StoreQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_errors_total",
			Help:      "Total number of store query errors",
		}, []string{"backend", "operation"}),

		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of report cache hits by kind",
		}, []string{"kind"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of report cache misses by kind",
		}, []string{"kind"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint serving g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordReport records one report computation.
func (m *Metrics) RecordReport(kind string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ReportDuration.WithLabelValues(kind, status).Observe(time.Since(started).Seconds())
	m.ReportsTotal.WithLabelValues(kind, status).Inc()
	if err == nil {
		m.LastReportAt.WithLabelValues(kind).SetToCurrentTime()
	}
}

// RecordGaps counts warnings by provenance.
func (m *Metrics) RecordGaps(warnings []domain.DataGapWarning) {
	for _, w := range warnings {
		m.DataGapsReported.WithLabelValues(string(w.Kind)).Inc()
	}
}

// RecordStoreQuery records store query metrics.
func (m *Metrics) RecordStoreQuery(backend, operation string, seconds float64, err error) {
	m.StoreQueryDuration.WithLabelValues(backend, operation).Observe(seconds)
	if err != nil {
		m.StoreQueryErrors.WithLabelValues(backend, operation).Inc()
	}
}

// CacheHit implements cache.Observer.
func (m *Metrics) CacheHit(kind string) { m.CacheHits.WithLabelValues(kind).Inc() }

// CacheMiss implements cache.Observer.
func (m *Metrics) CacheMiss(kind string) { m.CacheMisses.WithLabelValues(kind).Inc() }
