package alertcache

import "time"

// Configuration constants for cache sync operations
const (
	// DefaultChunkSize bounds per-chunk blocking time and peak memory during
	// batch warm cycles.
	DefaultChunkSize = 500

	// DefaultRecordTTL is the defensive TTL on Cache Record hashes. Abandoned
	// records expire on their own; live records are refreshed on every sync.
	DefaultRecordTTL = 7 * 24 * time.Hour

	// DefaultIndexTTL is the staleness safety net on address/contract index
	// arrays. Chain-event sets and the active set carry no TTL.
	DefaultIndexTTL = 24 * time.Hour

	// DefaultScanPageSize bounds SCAN pages during migration and reporting.
	DefaultScanPageSize = 100
)

// Config holds tunables for the sync engines, migrator and reporter
type Config struct {
	ChunkSize    int
	RecordTTL    time.Duration
	IndexTTL     time.Duration
	ScanPageSize int64
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		RecordTTL:    DefaultRecordTTL,
		IndexTTL:     DefaultIndexTTL,
		ScanPageSize: DefaultScanPageSize,
	}
}

// Validate checks if the Config is valid
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "ChunkSize",
			"value":  c.ChunkSize,
			"reason": "must be positive",
		})
	}
	if c.RecordTTL <= 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "RecordTTL",
			"value":  c.RecordTTL,
			"reason": "must be positive",
		})
	}
	if c.IndexTTL <= 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "IndexTTL",
			"value":  c.IndexTTL,
			"reason": "must be positive",
		})
	}
	if c.ScanPageSize <= 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "ScanPageSize",
			"value":  c.ScanPageSize,
			"reason": "must be positive",
		})
	}
	return nil
}
