package alertcache

import (
	"errors"
	"testing"
	"time"
)

// fakeRows feeds scanDefinition without a live database.
type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Err() error { return r.err }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, src := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = src.(string)
		case *bool:
			*d = src.(bool)
		case *[]byte:
			if src == nil {
				*d = nil
			} else {
				*d = []byte(src.(string))
			}
		case **string:
			if src == nil {
				*d = nil
			} else {
				v := src.(string)
				*d = &v
			}
		case *time.Time:
			*d = src.(time.Time)
		case **time.Time:
			if src == nil {
				*d = nil
			} else {
				v := src.(time.Time)
				*d = &v
			}
		case *int64:
			*d = src.(int64)
		default:
			return errors.New("unsupported scan destination")
		}
	}
	return nil
}

func definitionRow() []any {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	nextRun := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	return []any{
		"a1",                                  // id
		true,                                  // enabled
		"event_driven",                        // trigger_type
		`{"event_types":["transfer"]}`,        // trigger_config
		"wallet",                              // alert_type
		`["eth:mainnet:0xabc"]`,               // target_keys
		`{"version":"v1"}`,                    // execution_spec
		"u1",                                  // user_id
		"whale watch",                         // name
		nil,                                   // template_id
		`{"threshold":"100"}`,                 // template_params
		created,                               // created_at
		nil,                                   // last_job_created_at
		int64(2),                              // job_creation_count
		nextRun,                               // next_run_at
		nil,                                   // scheduled_at
	}
}

func TestScanDefinition(t *testing.T) {
	rows := &fakeRows{rows: [][]any{definitionRow()}}
	if !rows.Next() {
		t.Fatal("no row")
	}

	def, err := scanDefinition(rows)
	if err != nil {
		t.Fatalf("scanDefinition failed: %v", err)
	}

	if def.ID() != "a1" || !def.Enabled() {
		t.Errorf("identity fields: %+v", def)
	}
	if def.TriggerType() != TriggerEventDriven || def.AlertType() != AlertWallet {
		t.Errorf("type fields: %+v", def)
	}
	if got := EventTypes(def.TriggerConfig()); len(got) != 1 || got[0] != "transfer" {
		t.Errorf("trigger config = %v", def.TriggerConfig())
	}
	if len(def.TargetKeys()) != 1 || def.TargetKeys()[0] != "eth:mainnet:0xabc" {
		t.Errorf("targets = %v", def.TargetKeys())
	}

	spec, ok := def.ExecutionSpec()
	if !ok || !spec.CacheEligible() {
		t.Errorf("spec = %+v ok=%v", spec, ok)
	}

	meta := def.Metadata()
	if meta.UserID != "u1" || meta.Name != "whale watch" || meta.TemplateID != "" {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.JobCreationCount != 2 || meta.NextRunAt.IsZero() || !meta.ScheduledAt.IsZero() {
		t.Errorf("metadata timestamps: %+v", meta)
	}
}

func TestScanDefinitionNullSpec(t *testing.T) {
	row := definitionRow()
	row[6] = nil // execution_spec

	rows := &fakeRows{rows: [][]any{row}}
	rows.Next()

	def, err := scanDefinition(rows)
	if err != nil {
		t.Fatalf("scanDefinition failed: %v", err)
	}
	if _, ok := def.ExecutionSpec(); ok {
		t.Error("null execution_spec should report no spec")
	}
}

func TestScanDefinitionMalformedJSON(t *testing.T) {
	row := definitionRow()
	row[3] = "{broken" // trigger_config

	rows := &fakeRows{rows: [][]any{row}}
	rows.Next()

	if _, err := scanDefinition(rows); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCollect(t *testing.T) {
	src := &PostgresSource{logger: &NoOpLogger{}}

	alerts, err := src.collect(&fakeRows{rows: [][]any{definitionRow()}})
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID() != "a1" {
		t.Errorf("alerts = %v", alerts)
	}
}

func TestCollectRowsError(t *testing.T) {
	src := &PostgresSource{logger: &NoOpLogger{}}

	if _, err := src.collect(&fakeRows{err: errors.New("broken pipe")}); err == nil {
		t.Fatal("expected rows error to propagate")
	}
}
