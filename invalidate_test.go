package alertcache

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRemoveScrubsEverything(t *testing.T) {
	_, client := newTestStore(t)
	metrics := NewInMemoryMetrics()
	engine := NewEngine(client).WithMetrics(metrics)
	ctx := context.Background()

	if _, err := engine.SyncAlert(ctx, walletAlert("a1", "eth:mainnet:0xabc")); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if err := engine.Remove(ctx, "a1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if exists, _ := client.Exists(ctx, "alert:a1").Result(); exists != 0 {
		t.Error("record hash survived remove")
	}
	if ok, _ := client.SIsMember(ctx, ActiveSetKey, "a1").Result(); ok {
		t.Error("a1 still in active set")
	}
	// Sole member: the index key is deleted outright, never left empty.
	if exists, _ := client.Exists(ctx, "alerts:address:ETH:mainnet:0xabc").Result(); exists != 0 {
		t.Error("empty index key left behind")
	}
	if ok, _ := client.SIsMember(ctx, "alerts:chain:ETH:mainnet:transfer", "a1").Result(); ok {
		t.Error("a1 still in chain-event set")
	}
	if metrics.Counter(MetricRemoveSuccess) != 1 {
		t.Errorf("remove success counter = %d", metrics.Counter(MetricRemoveSuccess))
	}
}

func TestRemoveLeavesPeers(t *testing.T) {
	mr, client := newTestStore(t)
	engine := NewEngine(client)
	ctx := context.Background()

	if _, err := engine.SyncAlert(ctx, walletAlert("a1", "eth:mainnet:0xabc")); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.SyncAlert(ctx, walletAlert("a2", "eth:mainnet:0xabc")); err != nil {
		t.Fatal(err)
	}

	if err := engine.Remove(ctx, "a1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	got := indexArray(t, client, "alerts:address:ETH:mainnet:0xabc")
	if !reflect.DeepEqual(got, []string{"a2"}) {
		t.Errorf("index after remove = %v, want [a2]", got)
	}
	// The surviving array keeps its TTL rather than being reset.
	if ttl := mr.TTL("alerts:address:ETH:mainnet:0xabc"); ttl != DefaultIndexTTL {
		t.Errorf("index TTL after remove = %v, want %v", ttl, DefaultIndexTTL)
	}
	if ok, _ := client.SIsMember(ctx, ActiveSetKey, "a2").Result(); !ok {
		t.Error("peer a2 dropped from active set")
	}
}

func TestRemoveIdempotent(t *testing.T) {
	_, client := newTestStore(t)
	engine := NewEngine(client)
	ctx := context.Background()

	if _, err := engine.SyncAlert(ctx, walletAlert("a1", "eth:mainnet:0xabc")); err != nil {
		t.Fatal(err)
	}
	if err := engine.Remove(ctx, "a1"); err != nil {
		t.Fatalf("first remove failed: %v", err)
	}
	if err := engine.Remove(ctx, "a1"); err != nil {
		t.Fatalf("second remove failed: %v", err)
	}
	// Removing an id that never existed is also a no-op.
	if err := engine.Remove(ctx, "ghost"); err != nil {
		t.Fatalf("remove of unknown id failed: %v", err)
	}
}

func TestRemoveUnschedules(t *testing.T) {
	_, client := newTestStore(t)
	engine := NewEngine(client)
	ctx := context.Background()

	periodic := &Definition{
		AlertID:   "p1",
		IsEnabled: true,
		Trigger:   TriggerPeriodic,
		Type:      AlertNetwork,
		Spec:      &Spec{Version: SpecVersionV1},
		Meta:      Metadata{NextRunAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
	}
	if _, err := engine.SyncAlert(ctx, periodic); err != nil {
		t.Fatal(err)
	}

	if err := engine.Remove(ctx, "p1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := client.ZScore(ctx, PeriodicScheduleKey, "p1").Err(); err != redis.Nil {
		t.Errorf("p1 still scheduled: %v", err)
	}
}

func TestRemoveDeletesMalformedIndex(t *testing.T) {
	_, client := newTestStore(t)
	engine := NewEngine(client)
	ctx := context.Background()

	if _, err := engine.SyncAlert(ctx, walletAlert("a1", "eth:mainnet:0xabc")); err != nil {
		t.Fatal(err)
	}
	// Corrupt the index out from under the record.
	indexKey := "alerts:address:ETH:mainnet:0xabc"
	if err := client.Set(ctx, indexKey, "{broken", 0).Err(); err != nil {
		t.Fatal(err)
	}

	if err := engine.Remove(ctx, "a1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if exists, _ := client.Exists(ctx, indexKey).Result(); exists != 0 {
		t.Error("malformed index value should be deleted, not preserved")
	}
}

func TestRemoveUnknownTypeScrubsBothKinds(t *testing.T) {
	_, client := newTestStore(t)
	engine := NewEngine(client)
	ctx := context.Background()

	// A record written by an older deploy with an alert_type this version
	// does not recognize: membership in either dimension is possible.
	if err := client.HSet(ctx, "alert:a1", map[string]interface{}{
		fieldAlertType:  "validator",
		fieldTargetKeys: `["eth:mainnet:0xabc"]`,
	}).Err(); err != nil {
		t.Fatal(err)
	}
	if err := client.Set(ctx, "alerts:address:ETH:mainnet:0xabc", `["a1"]`, 0).Err(); err != nil {
		t.Fatal(err)
	}
	if err := client.Set(ctx, "alerts:contract:ETH:mainnet:0xabc", `["a1","a2"]`, 0).Err(); err != nil {
		t.Fatal(err)
	}

	if err := engine.Remove(ctx, "a1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if exists, _ := client.Exists(ctx, "alerts:address:ETH:mainnet:0xabc").Result(); exists != 0 {
		t.Error("address index not scrubbed")
	}
	got := indexArray(t, client, "alerts:contract:ETH:mainnet:0xabc")
	if !reflect.DeepEqual(got, []string{"a2"}) {
		t.Errorf("contract index = %v, want [a2]", got)
	}
}

func TestRemoveLegacyChainIDFallback(t *testing.T) {
	_, client := newTestStore(t)
	metrics := NewInMemoryMetrics()
	engine := NewEngine(client).WithMetrics(metrics)
	ctx := context.Background()

	// Old-format record: no target keys, chain only recoverable from the
	// numeric chain_id embedded in the stored spec trigger.
	if err := client.HSet(ctx, "alert:a1", map[string]interface{}{
		fieldAlertType:     "wallet",
		fieldTargetKeys:    "[]",
		fieldTriggerConfig: `{"event_types":["transfer"]}`,
		fieldSpec:          `{"version":"v1","trigger":{"chain_id":137}}`,
	}).Err(); err != nil {
		t.Fatal(err)
	}
	if err := client.SAdd(ctx, "alerts:chain:MATIC:mainnet:transfer", "a1", "a2").Err(); err != nil {
		t.Fatal(err)
	}

	if err := engine.Remove(ctx, "a1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if ok, _ := client.SIsMember(ctx, "alerts:chain:MATIC:mainnet:transfer", "a1").Result(); ok {
		t.Error("a1 not scrubbed via chain_id fallback")
	}
	if ok, _ := client.SIsMember(ctx, "alerts:chain:MATIC:mainnet:transfer", "a2").Result(); !ok {
		t.Error("peer a2 lost during fallback scrub")
	}
	if metrics.Counter(MetricRemoveFallback) != 1 {
		t.Errorf("fallback counter = %d", metrics.Counter(MetricRemoveFallback))
	}
}

func TestRemoveStoreUnavailable(t *testing.T) {
	mr, client := newTestStore(t)
	engine := NewEngine(client)

	mr.Close()

	err := engine.Remove(context.Background(), "a1")
	if err == nil {
		t.Fatal("expected transport failure to propagate")
	}
	if !IsRetryable(err) {
		t.Errorf("transport failure should classify as retryable: %v", err)
	}
}

func TestLegacyChainFromSpec(t *testing.T) {
	tests := []struct {
		raw   string
		chain string
		ok    bool
	}{
		{`{"version":"v1","trigger":{"chain_id":1}}`, "ETH", true},
		{`{"version":"v1","trigger":{"chain_id":42161}}`, "ARB", true},
		{`{"version":"v1","trigger":{"chain_id":99999}}`, "", false},
		{`{"version":"v1","trigger":{}}`, "", false},
		{`{"version":"v1"}`, "", false},
		{"", "", false},
		{"not-json", "", false},
		{`{"trigger":{"chain_id":"137"}}`, "", false},
	}

	for _, tt := range tests {
		chain, ok := legacyChainFromSpec(tt.raw)
		if chain != tt.chain || ok != tt.ok {
			t.Errorf("legacyChainFromSpec(%q) = (%q, %v), want (%q, %v)",
				tt.raw, chain, ok, tt.chain, tt.ok)
		}
	}
}
