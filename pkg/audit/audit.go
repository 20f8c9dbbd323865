// Package audit persists the provisioning execution log: one append-only row
// per pipeline step, success or failure. The log is the only state that
// survives a run; the pipeline itself keeps nothing.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResultOK is the literal success marker stored for a completed step.
const ResultOK = "ok"

// maxResultLen bounds a stored failure result. The tail of the message is
// kept because the deepest wrapped cause sits at the end.
const maxResultLen = 1000

// Record is one row of execution_log.
type Record struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement;column:id"`
	ScenarioType       string    `gorm:"column:scenario_type;not null"`
	ScenarioTask       string    `gorm:"column:scenario_task;not null"`
	ProcessStepID      string    `gorm:"column:process_step_id;not null"`
	ExecutionTimestamp time.Time `gorm:"column:execution_timestamp;not null"`
	TenantID           string    `gorm:"column:tenant_id;not null"`
	Result             string    `gorm:"column:result"`
}

// TableName returns the GORM table name.
func (Record) TableName() string { return "execution_log" }

// Store appends execution log records to the catalog store.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store over an open catalog store connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the execution_log table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("auto-migrate execution_log: %w", err)
	}
	return nil
}

// Append inserts one record. Records are never updated or deleted.
func (s *Store) Append(ctx context.Context, rec *Record) error {
	if rec.ExecutionTimestamp.IsZero() {
		rec.ExecutionTimestamp = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("append execution log: %w", err)
	}
	return nil
}

// List returns all records for a tenant, oldest first. Used by tests and
// operator tooling.
func (s *Store) List(ctx context.Context, tenantID string) ([]Record, error) {
	var recs []Record
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id asc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list execution log: %w", err)
	}
	return recs, nil
}

// Trail binds the execution log to one pipeline run: a scenario, a tenant,
// and a run-scoped step UUID shared by all of the run's records.
type Trail struct {
	store    *Store
	scenario string
	tenant   string
	runID    string
	logger   *slog.Logger
}

// NewTrail creates a Trail for one run. The run ID is generated here and is
// the same for every record the trail appends.
func NewTrail(store *Store, scenario, tenant string, logger *slog.Logger) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{
		store:    store,
		scenario: scenario,
		tenant:   tenant,
		runID:    uuid.New().String(),
		logger:   logger,
	}
}

// RunID returns the run-scoped step UUID.
func (t *Trail) RunID() string { return t.runID }

// Append records the outcome of one named step.
func (t *Trail) Append(ctx context.Context, step, result string) error {
	return t.store.Append(ctx, &Record{
		ScenarioType:  t.scenario,
		ScenarioTask:  step,
		ProcessStepID: t.runID,
		TenantID:      t.tenant,
		Result:        result,
	})
}

// Step runs fn as one audited pipeline step. On success a ResultOK record is
// appended; on failure the error is truncated, appended, and returned
// unchanged so the caller aborts the run. Steps are never retried here.
func (t *Trail) Step(ctx context.Context, name string, fn func(context.Context) error) error {
	t.logger.Info("step starting", "scenario", t.scenario, "step", name)

	if err := fn(ctx); err != nil {
		t.logger.Error("step failed", "scenario", t.scenario, "step", name, "error", err)
		if auditErr := t.Append(ctx, name, truncateResult(err.Error())); auditErr != nil {
			// The step failure takes precedence; losing the audit row is
			// reported but must not mask the original error.
			t.logger.Error("failed to audit step failure", "step", name, "error", auditErr)
		}
		return err
	}

	if err := t.Append(ctx, name, ResultOK); err != nil {
		return err
	}
	t.logger.Info("step finished", "scenario", t.scenario, "step", name)
	return nil
}

// truncateResult keeps the final maxResultLen bytes of a failure result.
func truncateResult(s string) string {
	if len(s) <= maxResultLen {
		return s
	}
	return s[len(s)-maxResultLen:]
}
