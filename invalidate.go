package alertcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// legacyChainPrefixes maps numeric chain ids embedded in stored spec triggers
// to canonical prefixes. Compat-only: the table covers a fixed seven-network
// set and is almost certainly wrong outside it. Used exclusively by the
// Remove fallback when a Cache Record carries no usable target keys.
var legacyChainPrefixes = map[int64]string{
	1:     "ETH",
	10:    "OP",
	56:    "BSC",
	137:   "MATIC",
	8453:  "BASE",
	42161: "ARB",
	43114: "AVAX",
}

// Remove scrubs an alert id from every structure it could belong to.
//
// Only the id is available at delete time; the stored Cache Record hash is
// the sole source of truth for reconstructing prior index membership. Every
// step tolerates absent members, so Remove is idempotent.
func (e *Engine) Remove(ctx context.Context, id string) error {
	recordKey := RecordKey(id)
	fields, err := e.client.HGetAll(ctx, recordKey).Result()
	if err != nil {
		e.metrics.Increment(MetricRemoveError)
		return fmt.Errorf("read cache record for %s: %w: %w", id, ErrStoreUnavailable, err)
	}

	indexKeys, chainEventKeys := e.scrubKeysFromRecord(id, fields)

	// Per-key read-modify-write on the shared index arrays. Empty results
	// delete the key outright: no empty index keys persist.
	for _, key := range indexKeys {
		if err := e.removeFromIndexArray(ctx, key, id); err != nil {
			e.metrics.Increment(MetricRemoveError)
			return err
		}
	}

	pipe := e.client.TxPipeline()
	pipe.Del(ctx, recordKey)
	pipe.SRem(ctx, ActiveSetKey, id)
	pipe.ZRem(ctx, PeriodicScheduleKey, id)
	pipe.ZRem(ctx, OneTimeScheduleKey, id)
	for _, key := range chainEventKeys {
		pipe.SRem(ctx, key, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		e.metrics.Increment(MetricRemoveError)
		return fmt.Errorf("remove alert %s: %w: %w", id, ErrStoreUnavailable, err)
	}

	e.metrics.Increment(MetricRemoveSuccess)
	e.logger.Debug("alert removed from cache",
		"alert_id", id,
		"index_keys", len(indexKeys),
		"chain_event_keys", len(chainEventKeys),
	)
	return nil
}

// scrubKeysFromRecord reconstructs the index and chain-event keys an alert
// could occupy from its stored hash fields.
func (e *Engine) scrubKeysFromRecord(id string, fields map[string]string) (indexKeys, chainEventKeys []string) {
	if len(fields) == 0 {
		// Hash already expired or never written: nothing derivable beyond
		// the fixed-name structures handled by the caller's pipeline.
		return nil, nil
	}

	events := eventTypesFromJSON(fields[fieldTriggerConfig])

	var targets []string
	if raw := fields[fieldTargetKeys]; raw != "" {
		if ids, ok := decodeIndexArray(raw); ok {
			targets = ids
		}
	}

	seenIndex := make(map[string]struct{})
	seenChain := make(map[string]struct{})
	kinds := scrubKindsFor(fields[fieldAlertType])

	for _, raw := range targets {
		tk, err := ParseTargetKey(raw)
		if err != nil {
			e.logger.Warn("unparseable target key on stored record",
				"alert_id", id,
				"target", raw,
			)
			continue
		}
		for _, kind := range kinds {
			key := DeriveIndexKey(kind, tk.Chain, tk.Network, tk.Address)
			if _, dup := seenIndex[key]; !dup {
				seenIndex[key] = struct{}{}
				indexKeys = append(indexKeys, key)
			}
		}
		for _, event := range events {
			key := ChainEventKey(tk.Chain, tk.Network, event)
			if _, dup := seenChain[key]; !dup {
				seenChain[key] = struct{}{}
				chainEventKeys = append(chainEventKeys, key)
			}
		}
	}

	if len(targets) == 0 {
		// Legacy fallback: infer one chain from a numeric chain_id embedded
		// in the stored spec's trigger. Documented compatibility behavior,
		// not correctness — see legacyChainPrefixes.
		if chain, ok := legacyChainFromSpec(fields[fieldSpec]); ok {
			e.metrics.Increment(MetricRemoveFallback)
			e.logger.Warn("falling back to chain_id inference for remove",
				"alert_id", id,
				"chain", chain,
			)
			for _, event := range events {
				chainEventKeys = append(chainEventKeys, ChainEventKey(chain, "mainnet", event))
			}
		}
	}

	return indexKeys, chainEventKeys
}

// scrubKindsFor picks which index dimensions to scrub. An unknown or missing
// alert_type scrubs both, since membership in either is possible.
func scrubKindsFor(alertType string) []IndexKind {
	if kind, ok := indexKindFor(AlertType(alertType)); ok {
		return []IndexKind{kind}
	}
	if alertType == string(AlertNetwork) || alertType == string(AlertProtocol) {
		return nil
	}
	return []IndexKind{IndexAddress, IndexContract}
}

// removeFromIndexArray drops id from one stored JSON array, deleting the key
// when the result is empty. The surviving array keeps its TTL.
func (e *Engine) removeFromIndexArray(ctx context.Context, key, id string) error {
	raw, err := e.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index %s: %w: %w", key, ErrStoreUnavailable, err)
	}

	ids, ok := decodeIndexArray(raw)
	if !ok {
		// Corrupted legacy value: nothing trustworthy to preserve.
		e.logger.Warn("deleting malformed index value during remove",
			"key", key,
			"error", ErrMalformedIndexValue,
		)
		e.metrics.Increment(MetricIndexMalformed)
		return e.deleteIndexKey(ctx, key)
	}

	remaining := removeID(ids, id)
	if len(remaining) == len(ids) {
		return nil
	}
	if len(remaining) == 0 {
		return e.deleteIndexKey(ctx, key)
	}

	data, err := json.Marshal(remaining)
	if err != nil {
		return fmt.Errorf("marshal index %s: %w", key, err)
	}
	if err := e.client.Set(ctx, key, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("rewrite index %s: %w: %w", key, ErrStoreUnavailable, err)
	}
	return nil
}

func (e *Engine) deleteIndexKey(ctx context.Context, key string) error {
	if err := e.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete index %s: %w: %w", key, ErrStoreUnavailable, err)
	}
	return nil
}

// eventTypesFromJSON reads event_types out of a stored trigger_config field.
func eventTypesFromJSON(raw string) []string {
	if raw == "" {
		return nil
	}
	var cfg map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil
	}
	return EventTypes(cfg)
}

// legacyChainFromSpec extracts trigger.chain_id from a stored spec JSON and
// maps it through the fixed legacy table.
func legacyChainFromSpec(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	var spec struct {
		Trigger map[string]interface{} `json:"trigger"`
	}
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return "", false
	}
	rawID, ok := spec.Trigger["chain_id"]
	if !ok {
		return "", false
	}

	var chainID int64
	switch v := rawID.(type) {
	case float64:
		chainID = int64(v)
	case int:
		chainID = int64(v)
	case int64:
		chainID = v
	default:
		return "", false
	}

	chain, ok := legacyChainPrefixes[chainID]
	return chain, ok
}
