// Package alertcache projects relationally-owned Alert Definitions into a
// denormalized set of Redis lookup structures, so a high-throughput
// event-matching runtime can answer "which alerts care about address X on
// chain Y" in O(1) without touching the relational store.
//
// # Overview
//
// The cache is a projection, not a database: the relational layer stays the
// source of truth, and every structure here is rebuildable from it. The
// package provides:
//
//   - Single-record sync: one MGET read phase plus one MULTI/EXEC write phase
//     per alert, O(1) round-trips regardless of index fan-out
//   - Batch warm/backfill: chunked bulk sync with union-key amortization, so
//     alerts sharing hot addresses never multiply round-trips
//   - Invalidation: scrubs an id from every structure it could belong to,
//     reconstructed from the stored record hash
//   - Legacy format migration: non-blocking cursor conversion of native Set
//     indexes into canonical JSON arrays
//   - Operational reporting and snapshot archival to S3/GCS/filesystem
//   - Full observability (Prometheus metrics + structured logging via zap)
//
// # Quick Start
//
//	redisClient := redis.NewClient(alertcache.RedisOptions())
//	defer redisClient.Close()
//
//	logger, _ := alertcache.NewProductionZapLogger()
//	engine := alertcache.NewEngine(redisClient).
//	    WithLogger(logger).
//	    WithMetrics(alertcache.NewPrometheusMetrics(nil))
//
//	// Sync one alert after an ORM change hook fires
//	report, err := engine.SyncAlert(ctx, alert)
//
//	// Bulk warm from the relational source of truth
//	source, _ := alertcache.NewPostgresSource(ctx, os.Getenv("DATABASE_URL"))
//	result, err := engine.SyncAll(ctx, source)
//
//	// Remove an alert from every structure
//	err = engine.Remove(ctx, alertID)
//
// # Wire contract
//
// Key names and hash field names are bit-exact contracts consumed by the
// matching runtime and other services:
//
//	alert:{id}                                     hash, 7d TTL
//	alerts:active                                  set
//	alerts:address:{CHAIN}:{network}:{address}     JSON array string, 24h TTL
//	alerts:contract:{CHAIN}:{network}:{address}    JSON array string, 24h TTL
//	alerts:chain:{CHAIN}:{network}:{event}         set
//	periodic_schedule / onetime_schedule           sorted set, score = unix ts
//
// # Consistency model
//
// Eventual consistency with bounded staleness. Concurrent syncs of the same
// id are not serialized; the later writer's merged index value wins per key.
// Failed syncs are not retried inline: the next natural write self-heals.
// Execution Specs not at version "v1" never reach any structure.
package alertcache
