package review

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/testutil"
)

func setupReview(t *testing.T) (*Controller, *testutil.TestDB, *model.UploadRecord, []model.CandidateTransaction) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	upload := db.SeedUpload("user-1", model.StatusAwaitingReview)
	candidates := db.SeedCandidates(upload.ID, 3)
	return NewController(db.Storage), db, upload, candidates
}

func strPtr(s string) *string                         { return &s }
func kindPtr(k model.TransactionKind) *model.TransactionKind { return &k }

func TestListCandidates(t *testing.T) {
	ctrl, _, upload, seeded := setupReview(t)

	got, candidates, err := ctrl.ListCandidates(context.Background(), "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingReview, got.Status)
	require.Len(t, candidates, len(seeded))
	for i, c := range candidates {
		assert.Equal(t, i, c.Position)
	}
}

func TestListCandidatesWhileProcessing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	upload := db.SeedUpload("user-1", model.StatusProcessing)
	ctrl := NewController(db.Storage)

	got, candidates, err := ctrl.ListCandidates(context.Background(), "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.Empty(t, candidates)
}

func TestListCandidatesWrongOwner(t *testing.T) {
	ctrl, _, upload, _ := setupReview(t)

	_, _, err := ctrl.ListCandidates(context.Background(), "user-2", upload.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEditCandidate(t *testing.T) {
	ctrl, db, upload, candidates := setupReview(t)
	ctx := context.Background()

	amount := decimal.New(-9999, -2)
	patch := model.CandidatePatch{
		Amount:      &amount,
		Description: strPtr("SM Supermarket groceries"),
		Kind:        kindPtr(model.KindExpense),
		Category:    strPtr("food"),
	}

	edited, err := ctrl.EditCandidate(ctx, "user-1", upload.ID, candidates[0].ID, patch)
	require.NoError(t, err)
	assert.Equal(t, "SM Supermarket groceries", edited.Description)

	stored, err := db.Storage.GetCandidate(ctx, upload.ID, candidates[0].ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(amount))
	assert.Equal(t, "food", stored.Category)
}

func TestEditCandidateValidation(t *testing.T) {
	ctrl, _, upload, candidates := setupReview(t)
	ctx := context.Background()
	zero := decimal.Zero

	tests := []struct {
		name  string
		patch model.CandidatePatch
		field string
	}{
		{"empty patch", model.CandidatePatch{}, "patch"},
		{"zero amount", model.CandidatePatch{Amount: &zero}, "amount"},
		{"blank description", model.CandidatePatch{Description: strPtr("")}, "description"},
		{"unknown kind", model.CandidatePatch{Kind: kindPtr("sideways")}, "kind"},
		{"unknown category", model.CandidatePatch{Category: strPtr("crypto_winnings")}, "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctrl.EditCandidate(ctx, "user-1", upload.ID, candidates[0].ID, tt.patch)
			var valErr *common.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.field, valErr.Field)
		})
	}
}

func TestEditOutsideReviewState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	upload := db.SeedUpload("user-1", model.StatusProcessing)
	ctrl := NewController(db.Storage)

	_, err := ctrl.EditCandidate(context.Background(), "user-1", upload.ID, "any",
		model.CandidatePatch{Description: strPtr("x")})
	assert.True(t, common.IsInvalidState(err), "want invalid state, got %v", err)
}

func TestRejectAndUnreject(t *testing.T) {
	ctrl, db, upload, candidates := setupReview(t)
	ctx := context.Background()

	require.NoError(t, ctrl.SetRejected(ctx, "user-1", upload.ID, candidates[1].ID, true))
	stored, err := db.Storage.GetCandidate(ctx, upload.ID, candidates[1].ID)
	require.NoError(t, err)
	assert.True(t, stored.Rejected)

	require.NoError(t, ctrl.SetRejected(ctx, "user-1", upload.ID, candidates[1].ID, false))
	stored, err = db.Storage.GetCandidate(ctx, upload.ID, candidates[1].ID)
	require.NoError(t, err)
	assert.False(t, stored.Rejected)
}

func TestApprove(t *testing.T) {
	ctrl, db, upload, candidates := setupReview(t)
	ctx := context.Background()

	result, err := ctrl.Approve(ctx, "user-1", upload.ID, ApprovalRequest{
		RejectedIDs: []string{candidates[2].ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ApprovedCount)
	assert.Equal(t, 1, result.RejectedCount)

	stored, err := db.Storage.GetUpload(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	remaining, err := db.Storage.GetCandidates(ctx, upload.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining, "staging area must be cleared")

	ledger, err := db.Storage.GetCommittedByUpload(ctx, upload.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	for _, txn := range ledger {
		assert.NotEqual(t, candidates[2].ID, txn.CandidateID,
			"rejected candidate must not reach the ledger")
		assert.Equal(t, "user-1", txn.UserID)
		assert.False(t, txn.CommittedAt.IsZero())
	}
}

func TestApproveWithPatches(t *testing.T) {
	ctrl, db, upload, candidates := setupReview(t)
	ctx := context.Background()

	_, err := ctrl.Approve(ctx, "user-1", upload.ID, ApprovalRequest{
		Patches: map[string]model.CandidatePatch{
			candidates[0].ID: {Description: strPtr("Meralco bill"), Category: strPtr("utilities")},
		},
	})
	require.NoError(t, err)

	ledger, err := db.Storage.GetCommittedByUpload(ctx, upload.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 3)

	var patched *model.CommittedTransaction
	for i := range ledger {
		if ledger[i].CandidateID == candidates[0].ID {
			patched = &ledger[i]
		}
	}
	require.NotNil(t, patched)
	assert.Equal(t, "Meralco bill", patched.Description)
	assert.Equal(t, "utilities", patched.Category)
}

func TestApproveUnknownCandidateBlocksCommit(t *testing.T) {
	ctrl, db, upload, _ := setupReview(t)
	ctx := context.Background()

	_, err := ctrl.Approve(ctx, "user-1", upload.ID, ApprovalRequest{
		RejectedIDs: []string{"not-a-candidate"},
	})
	var failures *common.ValidationFailures
	require.ErrorAs(t, err, &failures)
	require.Len(t, failures.Failures, 1)
	assert.Equal(t, "not-a-candidate", failures.Failures[0].RecordID)

	// Nothing moved.
	stored, err := db.Storage.GetUpload(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingReview, stored.Status)

	count, err := db.Storage.CountCommittedByUpload(ctx, upload.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestApproveInvalidPatchBlocksCommit(t *testing.T) {
	ctrl, db, upload, candidates := setupReview(t)
	ctx := context.Background()
	zero := decimal.Zero

	_, err := ctrl.Approve(ctx, "user-1", upload.ID, ApprovalRequest{
		Patches: map[string]model.CandidatePatch{
			candidates[0].ID: {Amount: &zero},
		},
	})
	var failures *common.ValidationFailures
	require.ErrorAs(t, err, &failures)

	remaining, err := db.Storage.GetCandidates(ctx, upload.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 3, "failed approval must leave staging intact")
}

func TestApproveTwice(t *testing.T) {
	ctrl, _, upload, _ := setupReview(t)
	ctx := context.Background()

	_, err := ctrl.Approve(ctx, "user-1", upload.ID, ApprovalRequest{})
	require.NoError(t, err)

	_, err = ctrl.Approve(ctx, "user-1", upload.ID, ApprovalRequest{})
	assert.True(t, common.IsInvalidState(err), "want invalid state, got %v", err)
}

func TestApproveAllRejected(t *testing.T) {
	ctrl, db, upload, candidates := setupReview(t)
	ctx := context.Background()

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}

	result, err := ctrl.Approve(ctx, "user-1", upload.ID, ApprovalRequest{RejectedIDs: ids})
	require.NoError(t, err)
	assert.Zero(t, result.ApprovedCount)
	assert.Equal(t, 3, result.RejectedCount)

	stored, err := db.Storage.GetUpload(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, stored.Status)

	count, err := db.Storage.CountCommittedByUpload(ctx, upload.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
