package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
)

// ApprovalResult summarizes a successful commit of a review session.
type ApprovalResult struct {
	UploadID      string
	ApprovedCount int
	RejectedCount int
}

// ApprovalRequest carries the caller's final review decisions: last-minute
// field patches keyed by candidate id, plus ids excluded from the commit.
type ApprovalRequest struct {
	Patches     map[string]model.CandidatePatch
	RejectedIDs []string
}

// Approve atomically moves an upload's surviving candidates into the
// permanent ledger and closes out the upload. Either every accepted
// candidate is committed and the staging area cleared, or nothing changes.
func (c *Controller) Approve(ctx context.Context, requester, uploadID string, req ApprovalRequest) (*ApprovalResult, error) {
	unlock := c.locks.acquire(uploadID)
	defer unlock()

	upload, err := c.storage.GetUpload(ctx, requester, uploadID)
	if err != nil {
		return nil, err
	}
	if upload.Status != model.StatusAwaitingReview {
		return nil, common.NewInvalidStateError("approve", string(upload.Status))
	}

	candidates, err := c.storage.GetCandidates(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.CandidateTransaction, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}

	var failures []common.FieldFailure

	for _, id := range req.RejectedIDs {
		candidate, ok := byID[id]
		if !ok {
			failures = append(failures, common.FieldFailure{
				RecordID: id, Field: "id", Reason: "no such candidate in this upload",
			})
			continue
		}
		candidate.Rejected = true
	}

	for id, patch := range req.Patches {
		candidate, ok := byID[id]
		if !ok {
			failures = append(failures, common.FieldFailure{
				RecordID: id, Field: "id", Reason: "no such candidate in this upload",
			})
			continue
		}
		if err := validatePatch(patch); err != nil {
			failures = append(failures, patchFailure(id, err))
			continue
		}
		patch.Apply(candidate)
	}

	accepted := make([]*model.CandidateTransaction, 0, len(candidates))
	rejected := 0
	for i := range candidates {
		if candidates[i].Rejected {
			rejected++
			continue
		}
		failures = append(failures, validateForCommit(&candidates[i])...)
		accepted = append(accepted, &candidates[i])
	}

	if len(failures) > 0 {
		return nil, &common.ValidationFailures{Failures: failures}
	}

	now := time.Now().UTC()
	committed := make([]model.CommittedTransaction, 0, len(accepted))
	for _, candidate := range accepted {
		candidate.Category = model.NormalizeCategory(candidate.Category)
		committed = append(committed, model.FromCandidate(candidate, requester, uuid.NewString(), now))
	}

	tx, err := c.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if len(committed) > 0 {
		if err := tx.SaveCommitted(ctx, committed); err != nil {
			return nil, err
		}
	}
	if err := tx.DeleteCandidates(ctx, uploadID); err != nil {
		return nil, err
	}
	if err := tx.TransitionUpload(ctx, uploadID, model.StatusProcessed, "",
		model.StatusAwaitingReview); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	slog.Info("Review approved",
		"upload_id", uploadID,
		"approved", len(committed),
		"rejected", rejected)

	return &ApprovalResult{
		UploadID:      uploadID,
		ApprovedCount: len(committed),
		RejectedCount: rejected,
	}, nil
}

// validateForCommit enforces the ledger's mandatory fields on an accepted
// candidate after patches are applied.
func validateForCommit(c *model.CandidateTransaction) []common.FieldFailure {
	var failures []common.FieldFailure
	if c.OccurredAt.IsZero() {
		failures = append(failures, common.FieldFailure{
			RecordID: c.ID, Field: "occurred_at", Reason: "missing date",
		})
	}
	if c.Amount.IsZero() {
		failures = append(failures, common.FieldFailure{
			RecordID: c.ID, Field: "amount", Reason: "must be non-zero",
		})
	}
	if c.Description == "" {
		failures = append(failures, common.FieldFailure{
			RecordID: c.ID, Field: "description", Reason: "must not be empty",
		})
	}
	if !model.ValidTransactionKind(c.Kind) {
		failures = append(failures, common.FieldFailure{
			RecordID: c.ID, Field: "kind", Reason: fmt.Sprintf("unknown kind %q", c.Kind),
		})
	}
	return failures
}

func patchFailure(id string, err error) common.FieldFailure {
	if valErr, ok := err.(*common.ValidationError); ok {
		return common.FieldFailure{RecordID: id, Field: valErr.Field, Reason: valErr.Reason}
	}
	return common.FieldFailure{RecordID: id, Field: "patch", Reason: err.Error()}
}
