// Package metrics provides Prometheus metrics for the billing rules service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/liamcoop/mbsrules/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Selection outcomes.
const (
	OutcomeClear   = "clear"
	OutcomeBlocked = "blocked"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Rule outcomes
	candidatesEvaluated *prometheus.CounterVec
	selectionsValidated *prometheus.CounterVec
	conflictsDetected   prometheus.Counter
	conditionChecks     *prometheus.CounterVec

	// Catalog health
	catalogLoads        *prometheus.CounterVec
	catalogLoadDuration prometheus.Histogram
	catalogEntries      prometheus.Gauge
	catalogIssues       prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager. Without WithRegistry it registers on a
// fresh registry that also carries the Go and process collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "mbsrules",
		histogramBuckets: prometheus.DefBuckets,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.candidatesEvaluated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "candidates_evaluated_total",
		Help:      "Candidates evaluated, by resulting status",
	}, []string{"status"})

	m.selectionsValidated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "selections_validated_total",
		Help:      "Selections validated, by outcome",
	}, []string{"outcome"})

	m.conflictsDetected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "conflicts_detected_total",
		Help:      "Mutual-exclusion conflicts reported by selection validation",
	})

	m.conditionChecks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "condition_checks_total",
		Help:      "Eligibility condition results, by outcome (met, unmet, error)",
	}, []string{"outcome"})

	m.catalogLoads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catalog_loads_total",
		Help:      "Catalog load attempts, by result",
	}, []string{"result"})

	m.catalogLoadDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catalog_load_duration_seconds",
		Help:      "Time taken to load and normalize the catalog",
		Buckets:   m.histogramBuckets,
	})

	m.catalogEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catalog_entries",
		Help:      "Entries in the most recently loaded catalog snapshot",
	})

	m.catalogIssues = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catalog_normalization_issues",
		Help:      "Corrections made while normalizing the most recent catalog load",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method", "status_code"})
}

// Handler serves the manager's registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordCandidate counts one evaluated candidate.
func (m *Manager) RecordCandidate(status string) {
	m.candidatesEvaluated.WithLabelValues(status).Inc()
}

// RecordSelection counts one validated selection and its conflicts.
func (m *Manager) RecordSelection(blocked bool, conflicts int) {
	outcome := OutcomeClear
	if blocked {
		outcome = OutcomeBlocked
	}
	m.selectionsValidated.WithLabelValues(outcome).Inc()
	if conflicts > 0 {
		m.conflictsDetected.Add(float64(conflicts))
	}
}

// RecordConditions counts condition results from one check.
func (m *Manager) RecordConditions(met, unmet, errored int) {
	m.conditionChecks.WithLabelValues("met").Add(float64(met))
	m.conditionChecks.WithLabelValues("unmet").Add(float64(unmet))
	m.conditionChecks.WithLabelValues("error").Add(float64(errored))
}

// ObserveCatalogLoad records a catalog load. It matches catalog.CacheConfig.OnLoad.
func (m *Manager) ObserveCatalogLoad(ev catalog.LoadEvent) {
	m.catalogLoads.WithLabelValues(ev.Result).Inc()
	m.catalogLoadDuration.Observe(ev.Duration.Seconds())
	if ev.Result == catalog.LoadResultSuccess {
		m.catalogEntries.Set(float64(ev.Entries))
		m.catalogIssues.Set(float64(ev.Issues))
	}
}

// ObserveHTTPRequest records one served request.
func (m *Manager) ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, code).Observe(duration.Seconds())
}
