package alertcache

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements the Metrics interface using Prometheus
type PrometheusMetrics struct {
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   prometheus.Registerer
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
// If registry is nil, uses the default Prometheus registerer
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   registry,
	}

	pm.registerDefaultMetrics()
	return pm
}

// registerDefaultMetrics registers all standard engine metrics
func (p *PrometheusMetrics) registerDefaultMetrics() {
	p.counters[MetricSyncSuccess] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertcache",
			Subsystem: "sync",
			Name:      "success_total",
			Help:      "Alerts successfully projected into the cache",
		},
		[]string{},
	)

	p.counters[MetricSyncSkipped] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertcache",
			Subsystem: "sync",
			Name:      "skipped_total",
			Help:      "Alerts skipped by the spec-version gate",
		},
		[]string{},
	)

	p.counters[MetricSyncError] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertcache",
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Sync attempts aborted by store errors",
		},
		[]string{},
	)

	p.counters[MetricTargetParse] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertcache",
			Subsystem: "sync",
			Name:      "target_parse_errors_total",
			Help:      "Canonical target keys that failed to parse",
		},
		[]string{},
	)

	p.counters[MetricIndexMalformed] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertcache",
			Subsystem: "sync",
			Name:      "malformed_index_values_total",
			Help:      "Stored index values that were not valid JSON arrays",
		},
		[]string{},
	)

	p.counters[MetricBatchSynced] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertcache",
			Subsystem: "batch",
			Name:      "synced_total",
			Help:      "Alerts synced by batch warm cycles",
		},
		[]string{},
	)

	p.counters[MetricBatchFailed] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertcache",
			Subsystem: "batch",
			Name:      "failed_total",
			Help:      "Alerts that failed preparation or write during batch warm cycles",
		},
		[]string{},
	)

	p.histograms[MetricSyncDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "alertcache",
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Single-record sync duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{},
	)

	p.histograms[MetricBatchDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "alertcache",
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Batch warm cycle duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{},
	)

	p.gauges[MetricBatchChunks] = promauto.With(p.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "alertcache",
			Subsystem: "batch",
			Name:      "chunks",
			Help:      "Chunks processed by the last batch warm cycle",
		},
		[]string{},
	)
}

// Increment increments a Prometheus counter
func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	p.mu.Lock()
	counter, ok := p.counters[name]
	if !ok {
		counter = promauto.With(p.registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "alertcache",
				Name:      sanitizeMetricName(name),
				Help:      "Dynamic counter: " + name,
			},
			extractLabels(tags),
		)
		p.counters[name] = counter
	}
	p.mu.Unlock()

	counter.With(extractLabelValues(tags)).Inc()
}

// Gauge sets a Prometheus gauge value
func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	p.mu.Lock()
	gauge, ok := p.gauges[name]
	if !ok {
		gauge = promauto.With(p.registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "alertcache",
				Name:      sanitizeMetricName(name),
				Help:      "Dynamic gauge: " + name,
			},
			extractLabels(tags),
		)
		p.gauges[name] = gauge
	}
	p.mu.Unlock()

	gauge.With(extractLabelValues(tags)).Set(value)
}

// Histogram records a value in a Prometheus histogram
func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	p.mu.Lock()
	histogram, ok := p.histograms[name]
	if !ok {
		histogram = promauto.With(p.registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "alertcache",
				Name:      sanitizeMetricName(name),
				Help:      "Dynamic histogram: " + name,
				Buckets:   prometheus.DefBuckets,
			},
			extractLabels(tags),
		)
		p.histograms[name] = histogram
	}
	p.mu.Unlock()

	histogram.With(extractLabelValues(tags)).Observe(value)
}

// Timing records a duration in a Prometheus histogram
func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	p.Histogram(name, duration.Seconds(), tags...)
}

// sanitizeMetricName converts dotted metric constants into valid Prometheus names
func sanitizeMetricName(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, "alertcache."), ".", "_")
}

// extractLabels extracts label names from tags (every even index)
func extractLabels(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	labels := make([]string, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		labels = append(labels, tags[i])
	}
	return labels
}

// extractLabelValues creates a label map from tags (key-value pairs)
func extractLabelValues(tags []string) prometheus.Labels {
	if len(tags) == 0 {
		return prometheus.Labels{}
	}

	labels := make(prometheus.Labels)
	for i := 0; i < len(tags)-1; i += 2 {
		labels[tags[i]] = tags[i+1]
	}
	return labels
}
