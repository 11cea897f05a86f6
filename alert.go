package alertcache

import "time"

// TriggerType classifies how an alert is evaluated.
type TriggerType string

const (
	TriggerPeriodic    TriggerType = "periodic"
	TriggerOneTime     TriggerType = "one_time"
	TriggerEventDriven TriggerType = "event_driven"
)

// AlertType classifies what an alert monitors.
type AlertType string

const (
	AlertWallet   AlertType = "wallet"
	AlertToken    AlertType = "token"
	AlertContract AlertType = "contract"
	AlertNFT      AlertType = "nft"
	AlertNetwork  AlertType = "network"
	AlertProtocol AlertType = "protocol"
)

// SpecVersionV1 is the only Execution Spec version eligible for the cache.
// Anything else is rejected fail-closed and never reaches any structure.
const SpecVersionV1 = "v1"

// Spec is a resolved, versioned Execution Spec.
type Spec struct {
	Version string                 `json:"version"`
	Trigger map[string]interface{} `json:"trigger,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// CacheEligible reports whether this spec may be projected into the cache.
func (s Spec) CacheEligible() bool {
	return s.Version == SpecVersionV1
}

// Metadata carries the record fields that are not part of the matching
// contract but are stored on the Cache Record hash for the execution runtime.
type Metadata struct {
	UserID           string
	Name             string
	TemplateID       string
	TemplateParams   map[string]interface{}
	CreatedAt        time.Time
	LastJobCreatedAt time.Time
	JobCreationCount int64

	// NextRunAt scores periodic alerts in the periodic schedule;
	// ScheduledAt scores one-time alerts in the one-time schedule.
	NextRunAt   time.Time
	ScheduledAt time.Time
}

// Alert is the narrow upstream contract over the relationally-owned Alert
// Definition. Callers adapt their entity to this interface; the engines never
// probe optional attributes.
type Alert interface {
	ID() string
	Enabled() bool
	TriggerType() TriggerType
	TriggerConfig() map[string]interface{}
	AlertType() AlertType
	TargetKeys() []string
	ExecutionSpec() (Spec, bool)
	Metadata() Metadata
}

// Definition is a plain-struct adapter implementing Alert. The relational
// source and tests build these directly.
type Definition struct {
	AlertID     string
	IsEnabled   bool
	Trigger     TriggerType
	TriggerConf map[string]interface{}
	Type        AlertType
	Targets     []string
	Spec        *Spec
	Meta        Metadata
}

func (d *Definition) ID() string                            { return d.AlertID }
func (d *Definition) Enabled() bool                         { return d.IsEnabled }
func (d *Definition) TriggerType() TriggerType              { return d.Trigger }
func (d *Definition) TriggerConfig() map[string]interface{} { return d.TriggerConf }
func (d *Definition) AlertType() AlertType                  { return d.Type }
func (d *Definition) TargetKeys() []string                  { return d.Targets }
func (d *Definition) Metadata() Metadata                    { return d.Meta }

func (d *Definition) ExecutionSpec() (Spec, bool) {
	if d.Spec == nil {
		return Spec{}, false
	}
	return *d.Spec, true
}

// EventTypes extracts the recognized "event_types" key from a trigger config.
// Both []string and []interface{} shapes are accepted; anything else yields nil.
func EventTypes(triggerConfig map[string]interface{}) []string {
	if triggerConfig == nil {
		return nil
	}
	raw, ok := triggerConfig["event_types"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		events := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				events = append(events, s)
			}
		}
		return events
	default:
		return nil
	}
}
