// Package jobs implements the asynchronous categorization pipeline: a
// storage-backed queue, a polling worker, and the additive annotation
// rules that keep manual edits authoritative.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/service"
)

// Queue accepts categorization requests and answers status polls.
type Queue struct {
	storage service.Storage
}

// NewQueue creates a job queue over the given store.
func NewQueue(storage service.Storage) *Queue {
	return &Queue{storage: storage}
}

// Enqueue validates the target and records a queued job. Work happens
// later in a worker process; callers poll with the returned job id.
func (q *Queue) Enqueue(ctx context.Context, requester string, target model.JobTarget) (*model.CategorizationJob, error) {
	if requester == "" {
		return nil, common.NewValidationError("requester", "missing identity")
	}
	if target.Empty() {
		return nil, common.NewValidationError("target", "must name an upload or transaction ids")
	}
	if target.UploadID != "" && len(target.TransactionIDs) > 0 {
		return nil, common.NewValidationError("target", "upload and transaction ids are mutually exclusive")
	}

	// Ownership is checked up front so a bad id fails the enqueue call,
	// not the job.
	if target.UploadID != "" {
		if _, err := q.storage.GetUpload(ctx, requester, target.UploadID); err != nil {
			return nil, err
		}
	}
	for _, id := range target.TransactionIDs {
		if _, err := q.storage.GetCommitted(ctx, requester, id); err != nil {
			return nil, err
		}
	}

	job := &model.CategorizationJob{
		ID:        uuid.NewString(),
		UserID:    requester,
		Target:    target,
		Status:    model.JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.storage.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	common.LogInfo("Categorization job enqueued", common.Fields{
		"job_id":       job.ID,
		"upload_id":    target.UploadID,
		"transactions": len(target.TransactionIDs),
	})
	return job, nil
}

// Poll returns the current job state for its owner.
func (q *Queue) Poll(ctx context.Context, requester, jobID string) (*model.CategorizationJob, error) {
	return q.storage.GetJob(ctx, requester, jobID)
}
