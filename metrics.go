package alertcache

import (
	"sync"
	"time"
)

// Metrics provides observability for cache sync operations
type Metrics interface {
	// Increment increases a counter by 1
	Increment(name string, tags ...string)

	// Gauge sets an absolute value
	Gauge(name string, value float64, tags ...string)

	// Histogram records a value distribution (batch sizes, key fan-out, etc)
	Histogram(name string, value float64, tags ...string)

	// Timing records a duration
	Timing(name string, duration time.Duration, tags ...string)
}

// NoOpMetrics is a metrics collector that does nothing
type NoOpMetrics struct{}

func (m *NoOpMetrics) Increment(name string, tags ...string)                      {}
func (m *NoOpMetrics) Gauge(name string, value float64, tags ...string)           {}
func (m *NoOpMetrics) Histogram(name string, value float64, tags ...string)       {}
func (m *NoOpMetrics) Timing(name string, duration time.Duration, tags ...string) {}

// InMemoryMetrics stores metrics in memory for testing
type InMemoryMetrics struct {
	mu         sync.Mutex
	Counters   map[string]int
	Gauges     map[string]float64
	Histograms map[string][]float64
	Timings    map[string][]time.Duration
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		Counters:   make(map[string]int),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string][]float64),
		Timings:    make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Increment(name string, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name]++
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gauges[name] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Histograms[name] = append(m.Histograms[name], value)
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timings[name] = append(m.Timings[name], duration)
}

// Counter returns the current value of a counter (test helper)
func (m *InMemoryMetrics) Counter(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[name]
}

// Standard metric names emitted by the engines
const (
	MetricSyncSuccess     = "alertcache.sync.success"
	MetricSyncSkipped     = "alertcache.sync.skipped"
	MetricSyncError       = "alertcache.sync.error"
	MetricSyncDuration    = "alertcache.sync.duration"
	MetricTargetParse     = "alertcache.sync.target_parse_error"
	MetricIndexMalformed  = "alertcache.sync.index_malformed"
	MetricBatchSynced     = "alertcache.batch.synced"
	MetricBatchFailed     = "alertcache.batch.failed"
	MetricBatchDuration   = "alertcache.batch.duration"
	MetricBatchChunks     = "alertcache.batch.chunks"
	MetricBatchChunkSize  = "alertcache.batch.chunk_size"
	MetricRemoveSuccess   = "alertcache.remove.success"
	MetricRemoveError     = "alertcache.remove.error"
	MetricRemoveFallback  = "alertcache.remove.legacy_fallback"
	MetricMigrateMigrated = "alertcache.migrate.migrated"
	MetricMigrateSkipped  = "alertcache.migrate.skipped"
	MetricMigrateFailed   = "alertcache.migrate.failed"
	MetricStatsDuration   = "alertcache.stats.duration"
	MetricArchiveExported = "alertcache.archive.exported"
	MetricArchiveRestored = "alertcache.archive.restored"
)
