package alertcache

import (
	"context"
	"testing"
	"time"
)

func TestReporterSnapshot(t *testing.T) {
	_, client := newTestStore(t)
	engine := NewEngine(client)
	reporter := NewReporter(client)
	ctx := context.Background()

	if _, err := engine.SyncAlert(ctx, walletAlert("a1", "eth:mainnet:0xabc")); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.SyncAlert(ctx, walletAlert("a2", "polygon:mainnet:0xdef")); err != nil {
		t.Fatal(err)
	}

	token := walletAlert("t1", "eth:mainnet:0xc0ffee")
	token.Type = AlertToken
	if _, err := engine.SyncAlert(ctx, token); err != nil {
		t.Fatal(err)
	}

	periodic := &Definition{
		AlertID:   "p1",
		IsEnabled: true,
		Trigger:   TriggerPeriodic,
		Type:      AlertNetwork,
		Spec:      &Spec{Version: SpecVersionV1},
		Meta:      Metadata{NextRunAt: time.Now().Add(time.Hour)},
	}
	if _, err := engine.SyncAlert(ctx, periodic); err != nil {
		t.Fatal(err)
	}

	oneTime := &Definition{
		AlertID:   "o1",
		IsEnabled: true,
		Trigger:   TriggerOneTime,
		Type:      AlertNetwork,
		Spec:      &Spec{Version: SpecVersionV1},
		Meta:      Metadata{ScheduledAt: time.Now().Add(2 * time.Hour)},
	}
	if _, err := engine.SyncAlert(ctx, oneTime); err != nil {
		t.Fatal(err)
	}

	stats := reporter.Snapshot(ctx)
	if stats.ActiveAlerts != 5 {
		t.Errorf("active alerts = %d, want 5", stats.ActiveAlerts)
	}
	if stats.PeriodicScheduled != 1 {
		t.Errorf("periodic scheduled = %d, want 1", stats.PeriodicScheduled)
	}
	if stats.OneTimeScheduled != 1 {
		t.Errorf("one-time scheduled = %d, want 1", stats.OneTimeScheduled)
	}
	if stats.AddressIndexKeys != 2 {
		t.Errorf("address index keys = %d, want 2", stats.AddressIndexKeys)
	}
	if stats.ContractIndexKeys != 1 {
		t.Errorf("contract index keys = %d, want 1", stats.ContractIndexKeys)
	}
	if stats.CollectedAt.IsZero() {
		t.Error("missing collection timestamp")
	}
}

func TestReporterEmptyStore(t *testing.T) {
	_, client := newTestStore(t)
	reporter := NewReporter(client)

	stats := reporter.Snapshot(context.Background())
	if stats.ActiveAlerts != 0 || stats.AddressIndexKeys != 0 || stats.ContractIndexKeys != 0 {
		t.Errorf("expected zeros on empty store, got %+v", stats)
	}
}

func TestReporterUnavailableStore(t *testing.T) {
	mr, client := newTestStore(t)
	reporter := NewReporter(client)

	mr.Close()

	// Strictly read-only and never raises: failed reads report zero.
	stats := reporter.Snapshot(context.Background())
	if stats.ActiveAlerts != 0 || stats.PeriodicScheduled != 0 || stats.OneTimeScheduled != 0 {
		t.Errorf("expected zeros on unavailable store, got %+v", stats)
	}
}
