package alertcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource loads Alert Definitions from the relational source of truth
// for warm/backfill cycles. It is the reference implementation of the
// upstream contract: the ORM owns the schema, this side only reads the
// projection columns.
type PostgresSource struct {
	pool   *pgxpool.Pool
	logger Logger
}

const alertDefinitionColumns = `
	id, enabled, trigger_type, trigger_config, alert_type, target_keys,
	execution_spec, user_id, name, template_id, template_params,
	created_at, last_job_created_at, job_creation_count,
	next_run_at, scheduled_at`

// NewPostgresSource connects a pooled source to the given database URL.
func NewPostgresSource(ctx context.Context, databaseURL string) (*PostgresSource, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresSource{pool: pool, logger: &NoOpLogger{}}, nil
}

// NewPostgresSourceFromPool wraps an existing pool (shared with other readers)
func NewPostgresSourceFromPool(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool, logger: &NoOpLogger{}}
}

// WithLogger sets the logger for this source
func (s *PostgresSource) WithLogger(logger Logger) *PostgresSource {
	s.logger = logger
	return s
}

// Close releases the pool
func (s *PostgresSource) Close() {
	s.pool.Close()
}

// Ping checks database connectivity
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// LoadEnabled returns every enabled alert definition, ready for a warm cycle.
func (s *PostgresSource) LoadEnabled(ctx context.Context) ([]Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertDefinitionColumns+`
		 FROM alert_definitions
		 WHERE enabled = true
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query enabled alerts: %w", err)
	}
	defer rows.Close()

	return s.collect(rows)
}

// LoadByIDs returns the named alert definitions regardless of enabled state.
func (s *PostgresSource) LoadByIDs(ctx context.Context, ids []string) ([]Alert, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+alertDefinitionColumns+`
		 FROM alert_definitions
		 WHERE id = ANY($1)
		 ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query alerts by ids: %w", err)
	}
	defer rows.Close()

	return s.collect(rows)
}

type alertRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func (s *PostgresSource) collect(rows alertRows) ([]Alert, error) {
	var alerts []Alert
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, def)
	}
	return alerts, rows.Err()
}

// scanDefinition maps one row onto the Definition adapter. JSONB columns
// arrive as raw bytes; nullable columns as pointers.
func scanDefinition(rows alertRows) (*Definition, error) {
	var (
		id, triggerType, alertType        string
		enabled                           bool
		triggerConfig, targetKeys         []byte
		executionSpec, templateParams     []byte
		userID, name, templateID          *string
		createdAt                         time.Time
		lastJobCreatedAt, nextRunAt       *time.Time
		scheduledAt                       *time.Time
		jobCreationCount                  int64
	)

	if err := rows.Scan(
		&id, &enabled, &triggerType, &triggerConfig, &alertType, &targetKeys,
		&executionSpec, &userID, &name, &templateID, &templateParams,
		&createdAt, &lastJobCreatedAt, &jobCreationCount,
		&nextRunAt, &scheduledAt,
	); err != nil {
		return nil, fmt.Errorf("scan alert definition: %w", err)
	}

	def := &Definition{
		AlertID:   id,
		IsEnabled: enabled,
		Trigger:   TriggerType(triggerType),
		Type:      AlertType(alertType),
		Meta: Metadata{
			CreatedAt:        createdAt,
			JobCreationCount: jobCreationCount,
		},
	}

	if len(triggerConfig) > 0 {
		if err := json.Unmarshal(triggerConfig, &def.TriggerConf); err != nil {
			return nil, fmt.Errorf("decode trigger_config for %s: %w", id, err)
		}
	}
	if len(targetKeys) > 0 {
		if err := json.Unmarshal(targetKeys, &def.Targets); err != nil {
			return nil, fmt.Errorf("decode target_keys for %s: %w", id, err)
		}
	}
	if len(executionSpec) > 0 {
		var spec Spec
		if err := json.Unmarshal(executionSpec, &spec); err != nil {
			return nil, fmt.Errorf("decode execution_spec for %s: %w", id, err)
		}
		def.Spec = &spec
	}
	if len(templateParams) > 0 {
		if err := json.Unmarshal(templateParams, &def.Meta.TemplateParams); err != nil {
			return nil, fmt.Errorf("decode template_params for %s: %w", id, err)
		}
	}

	if userID != nil {
		def.Meta.UserID = *userID
	}
	if name != nil {
		def.Meta.Name = *name
	}
	if templateID != nil {
		def.Meta.TemplateID = *templateID
	}
	if lastJobCreatedAt != nil {
		def.Meta.LastJobCreatedAt = *lastJobCreatedAt
	}
	if nextRunAt != nil {
		def.Meta.NextRunAt = *nextRunAt
	}
	if scheduledAt != nil {
		def.Meta.ScheduledAt = *scheduledAt
	}

	return def, nil
}
