package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
)

const jobColumns = `id, user_id, target_upload_id, target_ids, status,
	attempts, summary, error_detail, created_at, started_at, completed_at`

// CreateJob inserts a new categorization job in the queued state.
func (s *SQLiteStorage) CreateJob(ctx context.Context, job *model.CategorizationJob) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.createJobTx(ctx, s.db, job)
}

func (s *SQLiteStorage) createJobTx(ctx context.Context, q dbtx, job *model.CategorizationJob) error {
	if err := validateJob(job); err != nil {
		return err
	}

	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = model.JobQueued
	}

	targetIDs, err := json.Marshal(job.Target.TransactionIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal target ids: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO categorization_jobs (
			id, user_id, target_upload_id, target_ids, status, attempts,
			error_detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.UserID,
		job.Target.UploadID,
		string(targetIDs),
		string(job.Status),
		job.Attempts,
		job.ErrorDetail,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetJob fetches one job scoped to its owner.
func (s *SQLiteStorage) GetJob(ctx context.Context, userID, jobID string) (*model.CategorizationJob, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getJobTx(ctx, s.db, userID, jobID)
}

func (s *SQLiteStorage) getJobTx(ctx context.Context, q dbtx, userID, jobID string) (*model.CategorizationJob, error) {
	if err := validateString(jobID, "jobID"); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM categorization_jobs
		WHERE id = ? AND user_id = ?`,
		jobID, userID)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %s", common.ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// NextQueuedJob returns the oldest queued job, or nil when the queue is
// empty. The caller still has to win ClaimJob before working on it.
func (s *SQLiteStorage) NextQueuedJob(ctx context.Context) (*model.CategorizationJob, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.nextQueuedJobTx(ctx, s.db)
}

func (s *SQLiteStorage) nextQueuedJobTx(ctx context.Context, q dbtx) (*model.CategorizationJob, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM categorization_jobs
		WHERE status = 'queued'
		ORDER BY created_at ASC
		LIMIT 1`)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queued job: %w", err)
	}
	return job, nil
}

// ClaimJob moves a job queued -> running. The conditional update makes the
// claim exclusive; a second claimant gets false.
func (s *SQLiteStorage) ClaimJob(ctx context.Context, jobID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return s.claimJobTx(ctx, s.db, jobID)
}

func (s *SQLiteStorage) claimJobTx(ctx context.Context, q dbtx, jobID string) (bool, error) {
	if err := validateString(jobID, "jobID"); err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE categorization_jobs
		SET status = 'running', started_at = ?
		WHERE id = ? AND status = 'queued'`,
		time.Now().UTC(), jobID)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check claim result: %w", err)
	}
	return affected == 1, nil
}

// CompleteJob records the summary and marks the job terminal.
func (s *SQLiteStorage) CompleteJob(ctx context.Context, jobID string, summary model.JobSummary) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.completeJobTx(ctx, s.db, jobID, summary)
}

func (s *SQLiteStorage) completeJobTx(ctx context.Context, q dbtx, jobID string, summary model.JobSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE categorization_jobs
		SET status = 'completed', summary = ?, completed_at = ?
		WHERE id = ? AND status = 'running'`,
		string(raw), time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check completion result: %w", err)
	}
	if affected == 0 {
		return common.NewInvalidStateError("complete job", "not running")
	}
	return nil
}

// FailJob marks the job terminal with the last error preserved.
func (s *SQLiteStorage) FailJob(ctx context.Context, jobID string, errDetail string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.failJobTx(ctx, s.db, jobID, errDetail)
}

func (s *SQLiteStorage) failJobTx(ctx context.Context, q dbtx, jobID string, errDetail string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE categorization_jobs
		SET status = 'failed', error_detail = ?, completed_at = ?
		WHERE id = ? AND status IN ('queued', 'running')`,
		errDetail, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check failure result: %w", err)
	}
	if affected == 0 {
		return common.NewInvalidStateError("fail job", "terminal")
	}
	return nil
}

// IncrementJobAttempts bumps the attempt counter for diagnostics.
func (s *SQLiteStorage) IncrementJobAttempts(ctx context.Context, jobID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.incrementJobAttemptsTx(ctx, s.db, jobID)
}

func (s *SQLiteStorage) incrementJobAttemptsTx(ctx context.Context, q dbtx, jobID string) error {
	if _, err := q.ExecContext(ctx,
		`UPDATE categorization_jobs SET attempts = attempts + 1 WHERE id = ?`, jobID); err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}
	return nil
}

// FailExpiredJobs enforces the maximum job lifetime: anything running
// longer than maxAge is forced to failed instead of hanging forever.
func (s *SQLiteStorage) FailExpiredJobs(ctx context.Context, maxAge time.Duration) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.failExpiredJobsTx(ctx, s.db, maxAge)
}

func (s *SQLiteStorage) failExpiredJobsTx(ctx context.Context, q dbtx, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := q.ExecContext(ctx, `
		UPDATE categorization_jobs
		SET status = 'failed', error_detail = 'job exceeded maximum lifetime', completed_at = ?
		WHERE status = 'running' AND started_at < ?`,
		time.Now().UTC(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check expiry result: %w", err)
	}
	return int(affected), nil
}

func scanJob(row scanner) (*model.CategorizationJob, error) {
	var job model.CategorizationJob
	var status, targetIDs string
	var summary sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Target.UploadID,
		&targetIDs,
		&status,
		&job.Attempts,
		&summary,
		&job.ErrorDetail,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(targetIDs), &job.Target.TransactionIDs); err != nil {
		return nil, fmt.Errorf("corrupt target ids: %w", err)
	}
	if summary.Valid {
		var s model.JobSummary
		if err := json.Unmarshal([]byte(summary.String), &s); err != nil {
			return nil, fmt.Errorf("corrupt summary: %w", err)
		}
		job.Summary = &s
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
