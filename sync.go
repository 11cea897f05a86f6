package alertcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Engine projects canonical Alert Definitions into the denormalized lookup
// structures the event-matching runtime reads.
//
// Guarantees:
//   - One MGET read phase and one MULTI/EXEC write phase per alert: O(1)
//     round-trips regardless of how many index keys an alert touches.
//   - The write phase is all-or-nothing at the transport boundary; a failure
//     after the read phase leaves no partial commit.
//   - Non-"v1" Execution Specs never reach any structure (fail-closed).
//
// The engine does not serialize concurrent syncs of the same alert id:
// interleaved read/write windows resolve last-write-wins per index key.
// Alert edits are low-frequency and per-user, so this is accepted here;
// callers needing stronger guarantees must serialize per id above this layer.
type Engine struct {
	client  *redis.Client
	cfg     Config
	logger  Logger
	metrics Metrics
	now     func() time.Time
}

// NewEngine creates a sync engine over an explicit, shared-safe client handle
func NewEngine(client *redis.Client) *Engine {
	return &Engine{
		client:  client,
		cfg:     DefaultConfig(),
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
		now:     time.Now,
	}
}

// WithLogger sets the logger for this engine
func (e *Engine) WithLogger(logger Logger) *Engine {
	e.logger = logger
	return e
}

// WithMetrics sets the metrics collector for this engine
func (e *Engine) WithMetrics(metrics Metrics) *Engine {
	e.metrics = metrics
	return e
}

// WithConfig sets the engine configuration
func (e *Engine) WithConfig(cfg Config) *Engine {
	e.cfg = cfg
	return e
}

// withClock overrides the time source (tests)
func (e *Engine) withClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// SyncReport is the telemetry result of one single-record sync.
type SyncReport struct {
	AlertID      string
	Skipped      bool
	SkipReason   string
	IndexKeys    []string
	TargetErrors []TargetError
}

// scheduleEntry is a pending ZADD into one of the schedule sorted sets.
type scheduleEntry struct {
	key   string
	score float64
}

// syncPlan is the fully-resolved write set for one alert, shared between the
// single-record and batch paths.
type syncPlan struct {
	id             string
	enabled        bool
	fields         map[string]interface{}
	indexKeys      []string
	chainEventKeys []string
	schedule       *scheduleEntry
	targetErrors   []TargetError
}

// plan resolves an alert's targets into the set of implied keys and the hash
// snapshot. Target keys that fail to parse are collected as tagged errors, not
// dropped.
func (e *Engine) plan(a Alert) (*syncPlan, error) {
	fields, err := SnapshotFields(a, e.now())
	if err != nil {
		return nil, err
	}

	p := &syncPlan{
		id:      a.ID(),
		enabled: a.Enabled(),
		fields:  fields,
	}

	kind, indexed := indexKindFor(a.AlertType())
	events := EventTypes(a.TriggerConfig())
	eventDriven := a.TriggerType() == TriggerEventDriven && len(events) > 0

	seenIndex := make(map[string]struct{})
	seenChain := make(map[string]struct{})
	for _, raw := range a.TargetKeys() {
		tk, err := ParseTargetKey(raw)
		if err != nil {
			p.targetErrors = append(p.targetErrors, TargetError{Target: raw, Err: err})
			continue
		}

		if indexed {
			key := DeriveIndexKey(kind, tk.Chain, tk.Network, tk.Address)
			if _, dup := seenIndex[key]; !dup {
				seenIndex[key] = struct{}{}
				p.indexKeys = append(p.indexKeys, key)
			}
		}

		if eventDriven {
			for _, event := range events {
				key := ChainEventKey(tk.Chain, tk.Network, event)
				if _, dup := seenChain[key]; !dup {
					seenChain[key] = struct{}{}
					p.chainEventKeys = append(p.chainEventKeys, key)
				}
			}
		}
	}

	if key := scheduleKeyFor(a.TriggerType()); key != "" {
		meta := a.Metadata()
		var at time.Time
		if a.TriggerType() == TriggerPeriodic {
			at = meta.NextRunAt
		} else {
			at = meta.ScheduledAt
		}
		if !at.IsZero() {
			p.schedule = &scheduleEntry{key: key, score: float64(at.Unix())}
		} else {
			e.logger.Debug("alert has no schedule timestamp, skipping schedule index",
				"alert_id", p.id,
				"trigger_type", string(a.TriggerType()),
			)
		}
	}

	return p, nil
}

// SyncAlert creates or refreshes every cache structure for one alert.
//
// Alerts whose Execution Spec is missing or not at version "v1" are a logged
// no-op (Skipped=true), never an error: the gate is fail-closed, and the next
// successful sync self-heals.
func (e *Engine) SyncAlert(ctx context.Context, a Alert) (*SyncReport, error) {
	start := e.now()
	report := &SyncReport{AlertID: a.ID()}

	spec, ok := a.ExecutionSpec()
	if !ok || !spec.CacheEligible() {
		report.Skipped = true
		report.SkipReason = "execution spec missing or not v1"
		e.logger.Info("skipping alert sync",
			"alert_id", a.ID(),
			"spec_version", spec.Version,
		)
		e.metrics.Increment(MetricSyncSkipped)
		return report, nil
	}

	p, err := e.plan(a)
	if err != nil {
		e.metrics.Increment(MetricSyncError)
		return nil, err
	}
	report.IndexKeys = p.indexKeys
	report.TargetErrors = p.targetErrors
	e.observeTargetErrors(p.targetErrors)

	// Read phase: one round-trip across all implied index keys.
	merged, err := e.readIndexArrays(ctx, p.indexKeys)
	if err != nil {
		e.metrics.Increment(MetricSyncError)
		return nil, err
	}
	for key := range merged {
		merged[key] = appendIfMissing(merged[key], p.id)
	}

	// Write phase: all-or-nothing at the transport boundary.
	pipe := e.client.TxPipeline()
	e.queuePlan(ctx, pipe, p, merged)
	if _, err := pipe.Exec(ctx); err != nil {
		e.metrics.Increment(MetricSyncError)
		return nil, fmt.Errorf("sync write for alert %s: %w: %w", p.id, ErrStoreUnavailable, err)
	}

	e.metrics.Increment(MetricSyncSuccess)
	e.metrics.Timing(MetricSyncDuration, e.now().Sub(start))
	e.logger.Debug("alert synced",
		"alert_id", p.id,
		"enabled", p.enabled,
		"index_keys", len(p.indexKeys),
		"chain_event_keys", len(p.chainEventKeys),
	)
	return report, nil
}

// readIndexArrays fetches every key in one MGET and defensively decodes each
// value. Missing keys and malformed legacy values become empty lists.
func (e *Engine) readIndexArrays(ctx context.Context, keys []string) (map[string][]string, error) {
	merged := make(map[string][]string, len(keys))
	if len(keys) == 0 {
		return merged, nil
	}

	values, err := e.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read index keys: %w: %w", ErrStoreUnavailable, err)
	}

	for i, key := range keys {
		merged[key] = nil
		raw, ok := values[i].(string)
		if !ok || raw == "" {
			continue
		}
		ids, ok := decodeIndexArray(raw)
		if !ok {
			e.logger.Warn("malformed index value treated as empty",
				"key", key,
				"error", ErrMalformedIndexValue,
			)
			e.metrics.Increment(MetricIndexMalformed)
			continue
		}
		merged[key] = ids
	}
	return merged, nil
}

// queuePlan appends one alert's full write set onto a pipeline.
// Index arrays are passed separately so the batch path can queue shared keys once.
func (e *Engine) queuePlan(ctx context.Context, pipe redis.Pipeliner, p *syncPlan, indexArrays map[string][]string) {
	recordKey := RecordKey(p.id)
	pipe.HSet(ctx, recordKey, p.fields)
	pipe.Expire(ctx, recordKey, e.cfg.RecordTTL)

	if p.enabled {
		pipe.SAdd(ctx, ActiveSetKey, p.id)
	} else {
		pipe.SRem(ctx, ActiveSetKey, p.id)
	}

	for key, ids := range indexArrays {
		data, err := json.Marshal(ids)
		if err != nil {
			// []string cannot fail to marshal; guard kept for symmetry.
			continue
		}
		pipe.Set(ctx, key, data, e.cfg.IndexTTL)
	}

	for _, key := range p.chainEventKeys {
		pipe.SAdd(ctx, key, p.id)
	}

	if p.schedule != nil {
		pipe.ZAdd(ctx, p.schedule.key, redis.Z{Score: p.schedule.score, Member: p.id})
	}
}

func (e *Engine) observeTargetErrors(errs []TargetError) {
	for _, te := range errs {
		e.logger.Warn("skipping malformed target key",
			"target", te.Target,
			"error", te.Err,
		)
		e.metrics.Increment(MetricTargetParse)
	}
}
