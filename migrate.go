package alertcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Migrator converts index keys still stored as native Sets (a legacy on-disk
// representation) into the canonical JSON-array string, without a blocking
// full-keyspace scan. Safe to run while readers and writers are live, and
// idempotent: a second pass over stable state migrates nothing.
type Migrator struct {
	client  *redis.Client
	cfg     Config
	logger  Logger
	metrics Metrics
}

// NewMigrator creates a legacy format migrator over an explicit client handle
func NewMigrator(client *redis.Client) *Migrator {
	return &Migrator{
		client:  client,
		cfg:     DefaultConfig(),
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
	}
}

// WithLogger sets the logger for this migrator
func (m *Migrator) WithLogger(logger Logger) *Migrator {
	m.logger = logger
	return m
}

// WithMetrics sets the metrics collector for this migrator
func (m *Migrator) WithMetrics(metrics Metrics) *Migrator {
	m.metrics = metrics
	return m
}

// WithConfig sets the migrator configuration
func (m *Migrator) WithConfig(cfg Config) *Migrator {
	m.cfg = cfg
	return m
}

// MigrationReport tallies one migration pass.
type MigrationReport struct {
	Migrated int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Run walks both index prefixes with a non-blocking cursor and converts every
// native Set into a JSON array string.
//
// Per matched key:
//   - set: members are read, the key deleted and rewritten as a JSON array
//     with the index TTL (migrated)
//   - string: left untouched when it parses as a JSON array (skipped),
//     deleted when corrupted (failed)
//   - any other type: skipped
func (m *Migrator) Run(ctx context.Context) (*MigrationReport, error) {
	start := time.Now()
	report := &MigrationReport{}

	for _, pattern := range []string{addressKeyPrefix + "*", contractKeyPrefix + "*"} {
		if err := m.migratePrefix(ctx, pattern, report); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
	}

	report.Duration = time.Since(start)
	m.logger.Info("legacy index migration completed",
		"migrated", report.Migrated,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return report, nil
}

func (m *Migrator) migratePrefix(ctx context.Context, pattern string, report *MigrationReport) error {
	var cursor uint64
	for {
		keys, next, err := m.client.Scan(ctx, cursor, pattern, m.cfg.ScanPageSize).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w: %w", pattern, ErrStoreUnavailable, err)
		}

		for _, key := range keys {
			if err := m.migrateKey(ctx, key, report); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (m *Migrator) migrateKey(ctx context.Context, key string, report *MigrationReport) error {
	keyType, err := m.client.Type(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("type of %s: %w: %w", key, ErrStoreUnavailable, err)
	}

	switch keyType {
	case "set":
		members, err := m.client.SMembers(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("read legacy set %s: %w: %w", key, ErrStoreUnavailable, err)
		}
		data, err := json.Marshal(members)
		if err != nil {
			return fmt.Errorf("marshal members of %s: %w", key, err)
		}

		// Delete-then-set in one transaction so readers never observe the
		// key mid-conversion with the wrong type.
		pipe := m.client.TxPipeline()
		pipe.Del(ctx, key)
		pipe.Set(ctx, key, data, m.cfg.IndexTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("rewrite %s: %w: %w", key, ErrStoreUnavailable, err)
		}

		report.Migrated++
		m.metrics.Increment(MetricMigrateMigrated)
		m.logger.Debug("migrated legacy set index", "key", key, "members", len(members))

	case "string":
		raw, err := m.client.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("read %s: %w: %w", key, ErrStoreUnavailable, err)
		}
		if _, ok := decodeIndexArray(raw); ok {
			report.Skipped++
			m.metrics.Increment(MetricMigrateSkipped)
			break
		}

		// Corrupted string value: delete rather than guess at contents.
		if err := m.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("delete corrupted %s: %w: %w", key, ErrStoreUnavailable, err)
		}
		report.Failed++
		m.metrics.Increment(MetricMigrateFailed)
		m.logger.Warn("deleted corrupted index value",
			"key", key,
			"error", ErrMalformedIndexValue,
		)

	default:
		report.Skipped++
		m.metrics.Increment(MetricMigrateSkipped)
	}

	return nil
}
