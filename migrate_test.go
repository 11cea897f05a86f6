package alertcache

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func TestMigratorConvertsLegacySets(t *testing.T) {
	mr, client := newTestStore(t)
	metrics := NewInMemoryMetrics()
	migrator := NewMigrator(client).WithMetrics(metrics)
	ctx := context.Background()

	legacyKey := "alerts:address:ETH:mainnet:0xabc"
	if err := client.SAdd(ctx, legacyKey, "a1", "a2").Err(); err != nil {
		t.Fatal(err)
	}

	report, err := migrator.Run(ctx)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	if report.Migrated != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}

	// Key is now the canonical JSON array with the index TTL applied.
	keyType, _ := client.Type(ctx, legacyKey).Result()
	if keyType != "string" {
		t.Fatalf("key type after migration = %s", keyType)
	}
	got := indexArray(t, client, legacyKey)
	sort.Strings(got)
	if len(got) != 2 || got[0] != "a1" || got[1] != "a2" {
		t.Errorf("migrated members = %v", got)
	}
	if ttl := mr.TTL(legacyKey); ttl != DefaultIndexTTL {
		t.Errorf("TTL after migration = %v, want %v", ttl, DefaultIndexTTL)
	}
	if metrics.Counter(MetricMigrateMigrated) != 1 {
		t.Errorf("migrated counter = %d", metrics.Counter(MetricMigrateMigrated))
	}
}

func TestMigratorIdempotent(t *testing.T) {
	_, client := newTestStore(t)
	migrator := NewMigrator(client)
	ctx := context.Background()

	if err := client.SAdd(ctx, "alerts:contract:ETH:mainnet:0xdef", "a1").Err(); err != nil {
		t.Fatal(err)
	}

	first, err := migrator.Run(ctx)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if first.Migrated != 1 {
		t.Fatalf("first pass report = %+v", first)
	}

	second, err := migrator.Run(ctx)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.Migrated != 0 {
		t.Errorf("second pass migrated %d keys, want 0", second.Migrated)
	}
	if second.Skipped != 1 {
		t.Errorf("second pass skipped = %d, want 1", second.Skipped)
	}
}

func TestMigratorDeletesCorruptValues(t *testing.T) {
	_, client := newTestStore(t)
	migrator := NewMigrator(client)
	ctx := context.Background()

	corruptKey := "alerts:address:ETH:mainnet:0xbad"
	if err := client.Set(ctx, corruptKey, "{oops", 0).Err(); err != nil {
		t.Fatal(err)
	}

	report, err := migrator.Run(ctx)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if exists, _ := client.Exists(ctx, corruptKey).Result(); exists != 0 {
		t.Error("corrupt value should be deleted")
	}
}

func TestMigratorSkipsOtherTypes(t *testing.T) {
	_, client := newTestStore(t)
	migrator := NewMigrator(client)
	ctx := context.Background()

	if err := client.HSet(ctx, "alerts:address:ETH:mainnet:0xodd", "field", "value").Err(); err != nil {
		t.Fatal(err)
	}

	report, err := migrator.Run(ctx)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	if report.Skipped != 1 || report.Migrated != 0 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	keyType, _ := client.Type(ctx, "alerts:address:ETH:mainnet:0xodd").Result()
	if keyType != "hash" {
		t.Errorf("unexpected type mutation: %s", keyType)
	}
}

func TestMigratorIgnoresUnrelatedKeys(t *testing.T) {
	_, client := newTestStore(t)
	migrator := NewMigrator(client)
	ctx := context.Background()

	// Native sets outside the index prefixes are part of the live contract
	// and must never be rewritten.
	if err := client.SAdd(ctx, ActiveSetKey, "a1").Err(); err != nil {
		t.Fatal(err)
	}
	if err := client.SAdd(ctx, "alerts:chain:ETH:mainnet:transfer", "a1").Err(); err != nil {
		t.Fatal(err)
	}

	report, err := migrator.Run(ctx)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	if report.Migrated != 0 {
		t.Errorf("migrated %d unrelated keys", report.Migrated)
	}
	for _, key := range []string{ActiveSetKey, "alerts:chain:ETH:mainnet:transfer"} {
		keyType, _ := client.Type(ctx, key).Result()
		if keyType != "set" {
			t.Errorf("%s rewritten to %s", key, keyType)
		}
	}
}

func TestMigratorStoreUnavailable(t *testing.T) {
	mr, client := newTestStore(t)
	migrator := NewMigrator(client)

	mr.Close()

	if _, err := migrator.Run(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestMigratorSmallScanPages(t *testing.T) {
	_, client := newTestStore(t)
	cfg := DefaultConfig()
	cfg.ScanPageSize = 1
	migrator := NewMigrator(client).WithConfig(cfg)
	ctx := context.Background()

	for _, key := range []string{
		"alerts:address:ETH:mainnet:0x1",
		"alerts:address:ETH:mainnet:0x2",
		"alerts:contract:MATIC:mainnet:0x3",
	} {
		if err := client.SAdd(ctx, key, "a1").Err(); err != nil {
			t.Fatal(err)
		}
	}

	report, err := migrator.Run(ctx)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	if report.Migrated != 3 {
		t.Errorf("migrated = %d, want 3", report.Migrated)
	}
}
