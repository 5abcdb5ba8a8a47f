package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a crawl session.
type Metrics struct {
	Registry            *prometheus.Registry
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     prometheus.Histogram
	CacheHitsTotal      prometheus.Counter
	RetriesTotal        prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
	ItemsExtractedTotal *prometheus.CounterVec
	ItemsSkippedTotal   *prometheus.CounterVec
	TargetsTotal        *prometheus.CounterVec
	QueueDepth          prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total fetches issued, by payload kind.",
		},
		[]string{"kind"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "Fetch latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_cache_hits_total",
			Help: "Fetches answered from the response cache.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_extracted_total",
			Help: "Entities extracted, by kind.",
		},
		[]string{"kind"},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_skipped_total",
			Help: "Items dropped for missing required fields, by kind.",
		},
		[]string{"kind"},
	)
	targets := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_targets_total",
			Help: "Finished targets, by status.",
		},
		[]string{"status"},
	)
	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_queue_depth",
			Help: "Targets waiting in the work queue.",
		},
	)

	registry.MustRegister(requests, requestDuration, cacheHits, retries, errorsTotal, items, skipped, targets, queueDepth)

	return &Metrics{
		Registry:            registry,
		RequestsTotal:       requests,
		RequestDuration:     requestDuration,
		CacheHitsTotal:      cacheHits,
		RetriesTotal:        retries,
		ErrorsTotal:         errorsTotal,
		ItemsExtractedTotal: items,
		ItemsSkippedTotal:   skipped,
		TargetsTotal:        targets,
		QueueDepth:          queueDepth,
	}
}

// IncRequest increments the requests counter for a payload kind.
func (m *Metrics) IncRequest(kind string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind).Inc()
}

// ObserveDuration records a fetch duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddItems adds n extracted entities of the given kind.
func (m *Metrics) AddItems(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsExtractedTotal.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) AddSkipped(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsSkippedTotal.WithLabelValues(kind).Add(float64(n))
}

// IncTarget counts a finished target.
func (m *Metrics) IncTarget(status string) {
	if m == nil {
		return
	}
	m.TargetsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
