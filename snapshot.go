package alertcache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Cache Record hash field names. Bit-exact wire contract: the execution
// runtime reads these fields literally.
const (
	fieldTriggerType      = "trigger_type"
	fieldTriggerConfig    = "trigger_config"
	fieldSpec             = "spec"
	fieldTemplateID       = "template_id"
	fieldTemplateParams   = "template_params"
	fieldAlertType        = "alert_type"
	fieldTargetKeys       = "target_keys"
	fieldUserID           = "user_id"
	fieldEnabled          = "enabled"
	fieldVersion          = "version"
	fieldCreatedAt        = "created_at"
	fieldLastJobCreatedAt = "last_job_created_at"
	fieldJobCreationCount = "job_creation_count"
	fieldName             = "name"
)

// SnapshotFields flattens an Alert Definition into the wire hash
// representation stored at alert:{id}. Structured values (trigger config,
// spec, template params, target keys) are embedded as JSON strings.
//
// now supplies the created_at fallback when the entity carries no creation
// timestamp.
func SnapshotFields(a Alert, now time.Time) (map[string]interface{}, error) {
	spec, ok := a.ExecutionSpec()
	if !ok {
		return nil, WithContext(ErrSkippedSpecVersion, map[string]interface{}{
			"alert_id": a.ID(),
			"reason":   "no resolved execution spec",
		})
	}

	triggerConfig, err := json.Marshal(orEmptyMap(a.TriggerConfig()))
	if err != nil {
		return nil, fmt.Errorf("marshal trigger_config for %s: %w", a.ID(), err)
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal spec for %s: %w", a.ID(), err)
	}

	meta := a.Metadata()
	templateParams, err := json.Marshal(orEmptyMap(meta.TemplateParams))
	if err != nil {
		return nil, fmt.Errorf("marshal template_params for %s: %w", a.ID(), err)
	}

	targets := a.TargetKeys()
	if targets == nil {
		targets = []string{}
	}
	targetKeys, err := json.Marshal(targets)
	if err != nil {
		return nil, fmt.Errorf("marshal target_keys for %s: %w", a.ID(), err)
	}

	enabled := "0"
	if a.Enabled() {
		enabled = "1"
	}

	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	lastJob := ""
	if !meta.LastJobCreatedAt.IsZero() {
		lastJob = meta.LastJobCreatedAt.UTC().Format(time.RFC3339)
	}

	return map[string]interface{}{
		fieldTriggerType:      string(a.TriggerType()),
		fieldTriggerConfig:    string(triggerConfig),
		fieldSpec:             string(specJSON),
		fieldTemplateID:       meta.TemplateID,
		fieldTemplateParams:   string(templateParams),
		fieldAlertType:        string(a.AlertType()),
		fieldTargetKeys:       string(targetKeys),
		fieldUserID:           meta.UserID,
		fieldEnabled:          enabled,
		fieldVersion:          spec.Version,
		fieldCreatedAt:        createdAt.UTC().Format(time.RFC3339),
		fieldLastJobCreatedAt: lastJob,
		fieldJobCreationCount: meta.JobCreationCount,
		fieldName:             meta.Name,
	}, nil
}

func orEmptyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

// decodeIndexArray defensively parses a stored index value as a JSON array of
// strings. Malformed or non-array legacy values are reported as not ok and
// treated as an empty list by callers.
func decodeIndexArray(raw string) ([]string, bool) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, false
	}
	return ids, true
}

// appendIfMissing adds id to ids unless it is already present (idempotent).
func appendIfMissing(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// removeID drops id from ids, preserving order.
func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
