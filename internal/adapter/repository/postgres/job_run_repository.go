package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/user/assistor/internal/domain"
)

// JobRunRepository implements domain.JobRunRecorder on PostgreSQL. Run rows
// are upserted by (job_id, attempt) so a redelivered outcome report stays
// idempotent.
type JobRunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJobRunRepository creates a new PostgreSQL job run repository.
func NewJobRunRepository(db *sql.DB, logger *slog.Logger) *JobRunRepository {
	return &JobRunRepository{db: db, logger: logger}
}

// RecordRun persists the outcome of one processing attempt.
func (r *JobRunRepository) RecordRun(ctx context.Context, run domain.JobRun) error {
	query := `
		INSERT INTO job_runs (job_id, tenant_key, status, attempt, error, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (job_id, attempt) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at;
	`
	_, err := r.db.ExecContext(ctx, query,
		run.JobID, run.TenantKey, string(run.Status), run.Attempt, run.Error, run.FinishedAt)
	if err != nil {
		r.logger.Error("failed to record job run",
			"job_id", run.JobID, "tenant_key", run.TenantKey, "status", run.Status, "error", err)
		return err
	}
	return nil
}

// ListRuns returns the most recent run outcomes for a tenant.
func (r *JobRunRepository) ListRuns(ctx context.Context, tenantKey string, limit int) ([]domain.JobRun, error) {
	query := `
		SELECT job_id, tenant_key, status, attempt, error, finished_at
		FROM job_runs
		WHERE tenant_key = $1
		ORDER BY finished_at DESC
		LIMIT $2;
	`
	rows, err := r.db.QueryContext(ctx, query, tenantKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.JobRun
	for rows.Next() {
		var run domain.JobRun
		var status string
		if err := rows.Scan(&run.JobID, &run.TenantKey, &status, &run.Attempt, &run.Error, &run.FinishedAt); err != nil {
			return nil, err
		}
		run.Status = domain.JobRunStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
