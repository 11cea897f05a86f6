package alertcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AlertSource supplies Alert Definitions for bulk warm cycles.
// PostgresSource implements it over the relational source of truth.
type AlertSource interface {
	LoadEnabled(ctx context.Context) ([]Alert, error)
}

// BatchFailure records one alert that could not be prepared or written.
type BatchFailure struct {
	AlertID string
	Err     error
}

// BatchResult summarizes a bulk warm cycle.
type BatchResult struct {
	RunID    string
	Synced   int
	Failed   int
	Failures []BatchFailure
}

// SyncAll loads every enabled alert from src and projects it into the cache.
func (e *Engine) SyncAll(ctx context.Context, src AlertSource) (*BatchResult, error) {
	alerts, err := src.LoadEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("load enabled alerts: %w", err)
	}
	return e.SyncBatch(ctx, alerts)
}

// SyncBatch bulk-syncs alerts in fixed-size chunks.
//
// Per chunk it resolves every alert's plan, reads the union of implied index
// keys in one MGET, merges every alert's id into the in-memory arrays, and
// commits the whole chunk in one MULTI/EXEC. Alerts sharing hot index keys
// (e.g. an exchange wallet) therefore cost O(chunks) round-trips, not O(N).
//
// Per-alert preparation failures (bad spec, malformed data) are tallied as
// failed and never abort the chunk. A transport failure on a chunk write
// fails that chunk's alerts and the cycle moves on to the next chunk.
func (e *Engine) SyncBatch(ctx context.Context, alerts []Alert) (*BatchResult, error) {
	start := e.now()
	result := &BatchResult{RunID: NewRunID()}

	chunks := 0
	for begin := 0; begin < len(alerts); begin += e.cfg.ChunkSize {
		end := begin + e.cfg.ChunkSize
		if end > len(alerts) {
			end = len(alerts)
		}
		e.syncChunk(ctx, alerts[begin:end], result)
		chunks++
	}

	e.metrics.Gauge(MetricBatchChunks, float64(chunks))
	e.metrics.Timing(MetricBatchDuration, e.now().Sub(start))
	e.logger.Info("batch sync completed",
		"run_id", result.RunID,
		"total", len(alerts),
		"synced", result.Synced,
		"failed", result.Failed,
		"chunks", chunks,
	)
	return result, nil
}

func (e *Engine) syncChunk(ctx context.Context, alerts []Alert, result *BatchResult) {
	// Preparation: resolve plans, collect the union of index keys touched by
	// the whole chunk.
	plans := make([]*syncPlan, 0, len(alerts))
	var unionKeys []string
	seen := make(map[string]struct{})

	for _, a := range alerts {
		spec, ok := a.ExecutionSpec()
		if !ok || !spec.CacheEligible() {
			result.fail(a.ID(), WithContext(ErrSkippedSpecVersion, map[string]interface{}{
				"alert_id":     a.ID(),
				"spec_version": spec.Version,
			}))
			e.metrics.Increment(MetricBatchFailed)
			continue
		}

		p, err := e.plan(a)
		if err != nil {
			result.fail(a.ID(), err)
			e.metrics.Increment(MetricBatchFailed)
			continue
		}
		e.observeTargetErrors(p.targetErrors)

		plans = append(plans, p)
		for _, key := range p.indexKeys {
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				unionKeys = append(unionKeys, key)
			}
		}
	}

	if len(plans) == 0 {
		return
	}

	// Read phase: one MGET across the chunk's union, never per alert.
	merged, err := e.readIndexArrays(ctx, unionKeys)
	if err != nil {
		e.failChunk(plans, result, err)
		return
	}

	// Merge every chunk alert into its implied keys' logical arrays.
	for _, p := range plans {
		for _, key := range p.indexKeys {
			merged[key] = appendIfMissing(merged[key], p.id)
		}
	}

	// Write phase: one transactional pipeline for the entire chunk.
	pipe := e.client.TxPipeline()
	for _, p := range plans {
		e.queuePlan(ctx, pipe, p, nil)
	}
	for key, ids := range merged {
		data, err := json.Marshal(ids)
		if err != nil {
			continue
		}
		pipe.Set(ctx, key, data, e.cfg.IndexTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		e.failChunk(plans, result, fmt.Errorf("chunk write: %w: %w", ErrStoreUnavailable, err))
		return
	}

	result.Synced += len(plans)
	e.metrics.Histogram(MetricBatchChunkSize, float64(len(plans)))
	for range plans {
		e.metrics.Increment(MetricBatchSynced)
	}
}

// failChunk tallies every plan in a chunk as failed after a transport error.
func (e *Engine) failChunk(plans []*syncPlan, result *BatchResult, err error) {
	e.logger.Error("batch chunk failed", "error", err, "alerts", len(plans))
	for _, p := range plans {
		result.fail(p.id, err)
		e.metrics.Increment(MetricBatchFailed)
	}
}

func (r *BatchResult) fail(alertID string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, BatchFailure{AlertID: alertID, Err: err})
}

// NewRunID generates a UUIDv7 (time-ordered) identifier for warm cycles.
// Sortable by creation time, so runs line up naturally in logs.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fall back to UUIDv4 if NewV7 fails (extremely rare)
		id = uuid.New()
	}
	return id.String()
}
