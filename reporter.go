package alertcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Reporter produces point-in-time counts for operational dashboards.
// Strictly read-only, and never raises on transient store errors: failed
// reads report zero, and the external health check owns alerting on that.
type Reporter struct {
	client *redis.Client
	cfg    Config
	logger Logger
}

// NewReporter creates a reporter over an explicit client handle
func NewReporter(client *redis.Client) *Reporter {
	return &Reporter{
		client: client,
		cfg:    DefaultConfig(),
		logger: &NoOpLogger{},
	}
}

// WithLogger sets the logger for this reporter
func (r *Reporter) WithLogger(logger Logger) *Reporter {
	r.logger = logger
	return r
}

// WithConfig sets the reporter configuration
func (r *Reporter) WithConfig(cfg Config) *Reporter {
	r.cfg = cfg
	return r
}

// CacheStats is a read-only snapshot of cache population.
type CacheStats struct {
	ActiveAlerts      int64
	PeriodicScheduled int64
	OneTimeScheduled  int64
	AddressIndexKeys  int64
	ContractIndexKeys int64
	CollectedAt       time.Time
}

// Snapshot collects current cardinalities. Index key counts use the same
// non-blocking cursor iteration as the migrator.
func (r *Reporter) Snapshot(ctx context.Context) *CacheStats {
	stats := &CacheStats{CollectedAt: time.Now()}

	if n, err := r.client.SCard(ctx, ActiveSetKey).Result(); err == nil {
		stats.ActiveAlerts = n
	} else {
		r.logger.Warn("failed to read active set cardinality", "error", err)
	}

	if n, err := r.client.ZCard(ctx, PeriodicScheduleKey).Result(); err == nil {
		stats.PeriodicScheduled = n
	} else {
		r.logger.Warn("failed to read periodic schedule cardinality", "error", err)
	}

	if n, err := r.client.ZCard(ctx, OneTimeScheduleKey).Result(); err == nil {
		stats.OneTimeScheduled = n
	} else {
		r.logger.Warn("failed to read one-time schedule cardinality", "error", err)
	}

	stats.AddressIndexKeys = r.countKeys(ctx, addressKeyPrefix+"*")
	stats.ContractIndexKeys = r.countKeys(ctx, contractKeyPrefix+"*")

	return stats
}

// countKeys counts keys matching a pattern via SCAN pages. Errors report zero.
func (r *Reporter) countKeys(ctx context.Context, pattern string) int64 {
	var total int64
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, r.cfg.ScanPageSize).Result()
		if err != nil {
			r.logger.Warn("index key scan failed", "pattern", pattern, "error", err)
			return 0
		}
		total += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return total
		}
	}
}
