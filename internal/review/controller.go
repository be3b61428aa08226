// Package review exposes the staging area: listing, editing, and rejecting
// candidate transactions, and the atomic approval that moves them into the
// permanent ledger.
package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/service"
)

// Controller mediates all access to staged candidates.
type Controller struct {
	storage service.Storage
	locks   *uploadLocks
}

// NewController creates a review controller.
func NewController(storage service.Storage) *Controller {
	return &Controller{storage: storage, locks: newUploadLocks()}
}

// ListCandidates returns the upload and its staged candidates in position
// order. While extraction is still running the list is empty rather than
// an error, so clients can poll one call.
func (c *Controller) ListCandidates(ctx context.Context, requester, uploadID string) (*model.UploadRecord, []model.CandidateTransaction, error) {
	upload, err := c.storage.GetUpload(ctx, requester, uploadID)
	if err != nil {
		return nil, nil, err
	}

	if upload.Status == model.StatusProcessing || upload.Status == model.StatusUploaded {
		return upload, []model.CandidateTransaction{}, nil
	}

	candidates, err := c.storage.GetCandidates(ctx, uploadID)
	if err != nil {
		return nil, nil, err
	}
	return upload, candidates, nil
}

// EditCandidate applies a field patch to one staged candidate. Edits are
// only legal while the upload awaits review.
func (c *Controller) EditCandidate(ctx context.Context, requester, uploadID, candidateID string, patch model.CandidatePatch) (*model.CandidateTransaction, error) {
	if patch.Empty() {
		return nil, common.NewValidationError("patch", "no fields to change")
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	unlock := c.locks.acquire(uploadID)
	defer unlock()

	candidate, err := c.reviewableCandidate(ctx, requester, uploadID, candidateID)
	if err != nil {
		return nil, err
	}

	patch.Apply(candidate)
	if err := c.storage.UpdateCandidate(ctx, candidate); err != nil {
		return nil, err
	}

	slog.Debug("Candidate edited", "upload_id", uploadID, "candidate_id", candidateID)
	return candidate, nil
}

// SetRejected flips the exclusion flag on one staged candidate. Rejected
// candidates survive until approval, then are discarded instead of
// committed.
func (c *Controller) SetRejected(ctx context.Context, requester, uploadID, candidateID string, rejected bool) error {
	unlock := c.locks.acquire(uploadID)
	defer unlock()

	if _, err := c.reviewableCandidate(ctx, requester, uploadID, candidateID); err != nil {
		return err
	}
	return c.storage.SetCandidateRejected(ctx, uploadID, candidateID, rejected)
}

// reviewableCandidate loads a candidate after checking ownership and that
// the upload is still in the mutable awaiting_review state.
func (c *Controller) reviewableCandidate(ctx context.Context, requester, uploadID, candidateID string) (*model.CandidateTransaction, error) {
	upload, err := c.storage.GetUpload(ctx, requester, uploadID)
	if err != nil {
		return nil, err
	}
	if upload.Status != model.StatusAwaitingReview {
		return nil, common.NewInvalidStateError("review", string(upload.Status))
	}
	return c.storage.GetCandidate(ctx, uploadID, candidateID)
}

func validatePatch(patch model.CandidatePatch) error {
	if patch.Amount != nil && patch.Amount.IsZero() {
		return common.NewValidationError("amount", "must be non-zero")
	}
	if patch.Description != nil && *patch.Description == "" {
		return common.NewValidationError("description", "must not be empty")
	}
	if patch.Kind != nil && !model.ValidTransactionKind(*patch.Kind) {
		return common.NewValidationError("kind", fmt.Sprintf("unknown kind %q", *patch.Kind))
	}
	if patch.Category != nil && *patch.Category != "" && !model.ValidCategory(*patch.Category) {
		return common.NewValidationError("category", fmt.Sprintf("unknown category %q", *patch.Category))
	}
	return nil
}
