package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/service"
)

// WorkerConfig tunes the polling loop.
type WorkerConfig struct {
	PollInterval time.Duration
	JobLifetime  time.Duration
	BatchSize    int
	Retry        service.RetryOptions
}

// Worker drains the categorization queue. Multiple workers may run
// against the same database; the conditional claim keeps each job on
// exactly one of them.
type Worker struct {
	storage     service.Storage
	categorizer service.Categorizer
	cfg         WorkerConfig
}

// NewWorker creates a categorization worker.
func NewWorker(storage service.Storage, categorizer service.Categorizer, cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.JobLifetime <= 0 {
		cfg.JobLifetime = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		}
	}
	return &Worker{storage: storage, categorizer: categorizer, cfg: cfg}
}

// Run polls until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("Categorization worker started",
		"poll_interval", w.cfg.PollInterval,
		"job_lifetime", w.cfg.JobLifetime)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.Tick(ctx); err != nil && ctx.Err() == nil {
			common.LogError(err, "worker tick failed", nil)
		}

		select {
		case <-ctx.Done():
			slog.Info("Categorization worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs one poll cycle: reap expired jobs, then claim and process
// at most one queued job.
func (w *Worker) Tick(ctx context.Context) error {
	reaped, err := w.storage.FailExpiredJobs(ctx, w.cfg.JobLifetime)
	if err != nil {
		return err
	}
	if reaped > 0 {
		slog.Warn("Expired running jobs failed", "count", reaped)
	}

	job, err := w.storage.NextQueuedJob(ctx)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	claimed, err := w.storage.ClaimJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another worker got there first.
		return nil
	}

	return w.process(ctx, job)
}

// process runs one claimed job to a terminal state.
func (w *Worker) process(ctx context.Context, job *model.CategorizationJob) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobLifetime)
	defer cancel()

	if err := w.storage.IncrementJobAttempts(ctx, job.ID); err != nil {
		return err
	}

	records, annotate, err := w.resolveTarget(ctx, job)
	if err != nil {
		return w.fail(job, err)
	}
	if len(records) == 0 {
		return w.fail(job, fmt.Errorf("target has no records to categorize"))
	}

	summary := model.JobSummary{Total: len(records)}

	// Only ids from the resolved target may be written. The provider
	// response is untrusted input; anything else it names is dropped.
	allowed := make(map[string]bool, len(records))
	for _, r := range records {
		allowed[r.ID] = true
	}

	for start := 0; start < len(records); start += w.cfg.BatchSize {
		end := start + w.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		var assignments []service.CategorizerAssignment
		err := common.WithRetry(ctx, func() error {
			var classifyErr error
			assignments, classifyErr = w.categorizer.Classify(ctx, batch)
			return classifyErr
		}, w.cfg.Retry)
		if err != nil {
			return w.fail(job, fmt.Errorf("categorization failed: %w", err))
		}

		for _, a := range assignments {
			if !allowed[a.ID] {
				slog.Warn("Dropping assignment for record outside job target",
					"job_id", job.ID,
					"record_id", a.ID)
				continue
			}
			updated, annotateErr := annotate(ctx, a)
			if annotateErr != nil {
				return w.fail(job, annotateErr)
			}
			if updated {
				summary.Updated++
			}
		}
	}

	if err := w.storage.CompleteJob(ctx, job.ID, summary); err != nil {
		return err
	}
	slog.Info("Categorization job completed",
		"job_id", job.ID,
		"total", summary.Total,
		"updated", summary.Updated)
	return nil
}

// annotateFunc writes one assignment to whichever table the target lives
// in. The bool reports whether the category actually changed.
type annotateFunc func(ctx context.Context, a service.CategorizerAssignment) (bool, error)

// resolveTarget loads the records a job should annotate. Upload targets
// follow the upload's state: staged candidates while it awaits review,
// ledger rows once it is processed.
func (w *Worker) resolveTarget(ctx context.Context, job *model.CategorizationJob) ([]service.CategorizerRecord, annotateFunc, error) {
	if job.Target.UploadID != "" {
		upload, err := w.storage.GetUpload(ctx, job.UserID, job.Target.UploadID)
		if err != nil {
			return nil, nil, err
		}

		if upload.Status == model.StatusProcessed {
			committed, err := w.storage.GetCommittedByUpload(ctx, upload.ID)
			if err != nil {
				return nil, nil, err
			}
			records := make([]service.CategorizerRecord, 0, len(committed))
			for _, txn := range committed {
				records = append(records, committedRecord(&txn))
			}
			return records, w.annotateCommitted, nil
		}

		candidates, err := w.storage.GetCandidates(ctx, upload.ID)
		if err != nil {
			return nil, nil, err
		}
		records := make([]service.CategorizerRecord, 0, len(candidates))
		for _, c := range candidates {
			if c.Rejected {
				continue
			}
			records = append(records, candidateRecord(&c))
		}
		return records, w.annotateCandidate, nil
	}

	records := make([]service.CategorizerRecord, 0, len(job.Target.TransactionIDs))
	for _, id := range job.Target.TransactionIDs {
		txn, err := w.storage.GetCommitted(ctx, job.UserID, id)
		if err != nil {
			return nil, nil, fmt.Errorf("transaction %s: %w", id, err)
		}
		records = append(records, committedRecord(txn))
	}
	return records, w.annotateCommitted, nil
}

func (w *Worker) annotateCandidate(ctx context.Context, a service.CategorizerAssignment) (bool, error) {
	return w.storage.AnnotateCandidate(ctx, a.ID, a.Category, a.Confidence, a.Rationale)
}

func (w *Worker) annotateCommitted(ctx context.Context, a service.CategorizerAssignment) (bool, error) {
	return w.storage.AnnotateCommitted(ctx, a.ID, a.Category, a.Confidence, a.Rationale)
}

// fail records the terminal failure on the job row. The original cause
// wins over any bookkeeping error.
func (w *Worker) fail(job *model.CategorizationJob, cause error) error {
	// Job bookkeeping survives the job-lifetime deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.storage.FailJob(ctx, job.ID, cause.Error()); err != nil {
		common.LogError(err, "failed to record job failure", common.Fields{"job_id": job.ID})
	}
	slog.Warn("Categorization job failed", "job_id", job.ID, "error", cause)
	return cause
}

func candidateRecord(c *model.CandidateTransaction) service.CategorizerRecord {
	return service.CategorizerRecord{
		ID:           c.ID,
		Date:         c.OccurredAt.Format("2006-01-02"),
		Amount:       c.Amount.String(),
		Description:  c.Description,
		Reference:    c.Reference,
		Counterparty: c.Counterparty,
	}
}

func committedRecord(t *model.CommittedTransaction) service.CategorizerRecord {
	return service.CategorizerRecord{
		ID:           t.ID,
		Date:         t.OccurredAt.Format("2006-01-02"),
		Amount:       t.Amount.String(),
		Description:  t.Description,
		Reference:    t.Reference,
		Counterparty: t.Counterparty,
	}
}
