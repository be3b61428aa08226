package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
)

func setupStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newUpload(userID string) *model.UploadRecord {
	return &model.UploadRecord{
		ID:               uuid.NewString(),
		UserID:           userID,
		OriginalFilename: "statement.csv",
		FileType:         model.FileTypeBankStatement,
		SourcePlatform:   "bpi",
		Status:           model.StatusUploaded,
		FileSize:         1024,
		CreatedAt:        time.Now().UTC(),
	}
}

func newCandidate(uploadID string, position int) model.CandidateTransaction {
	return model.CandidateTransaction{
		ID:             uuid.NewString(),
		UploadID:       uploadID,
		Position:       position,
		OccurredAt:     time.Date(2026, 2, 1+position, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.New(-12050, -2),
		Description:    "7-ELEVEN BGC",
		Kind:           model.KindExpense,
		SourcePlatform: "bpi",
		Confidence:     90,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestMigrateOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perabook.db")
	store, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Close())

	// Reopening against the migrated file must succeed at the same version.
	store, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Close())
}

func TestUploadRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	upload := newUpload("user-1")
	require.NoError(t, store.CreateUpload(ctx, upload))

	got, err := store.GetUpload(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, upload.ID, got.ID)
	assert.Equal(t, model.StatusUploaded, got.Status)
	assert.Equal(t, model.FileTypeBankStatement, got.FileType)
	assert.Nil(t, got.CompletedAt)

	_, err = store.GetUpload(ctx, "user-2", upload.ID)
	assert.ErrorIs(t, err, common.ErrNotFound, "ownership scopes lookups")

	_, err = store.GetUpload(ctx, "user-1", "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTransitionUpload(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	upload := newUpload("user-1")
	require.NoError(t, store.CreateUpload(ctx, upload))

	require.NoError(t, store.TransitionUpload(ctx, upload.ID, model.StatusProcessing, "",
		model.StatusUploaded, model.StatusFailed))

	// The row left the from-set, so a second claim loses.
	err := store.TransitionUpload(ctx, upload.ID, model.StatusProcessing, "",
		model.StatusUploaded, model.StatusFailed)
	require.Error(t, err)
	assert.True(t, common.IsInvalidState(err))

	require.NoError(t, store.TransitionUpload(ctx, upload.ID, model.StatusFailed, "parser exploded",
		model.StatusProcessing))

	got, err := store.GetUpload(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "parser exploded", got.ErrorDetail)
	assert.NotNil(t, got.CompletedAt, "terminal states set completed_at")

	// Retry clears the error and the completion timestamp.
	require.NoError(t, store.TransitionUpload(ctx, upload.ID, model.StatusProcessing, "",
		model.StatusFailed))
	got, err = store.GetUpload(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ErrorDetail)
	assert.Nil(t, got.CompletedAt)
}

func TestTransitionUploadIllegalTarget(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	upload := newUpload("user-1")
	require.NoError(t, store.CreateUpload(ctx, upload))

	err := store.TransitionUpload(ctx, upload.ID, model.StatusProcessed, "", model.StatusUploaded)
	assert.Error(t, err, "uploaded -> processed skips the state machine")
}

func TestTransitionUploadUnknownID(t *testing.T) {
	store := setupStore(t)
	err := store.TransitionUpload(context.Background(), "ghost", model.StatusProcessing, "",
		model.StatusUploaded)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListAndSoftDeleteUploads(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := newUpload("user-1")
	second := newUpload("user-1")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	other := newUpload("user-2")
	require.NoError(t, store.CreateUpload(ctx, first))
	require.NoError(t, store.CreateUpload(ctx, second))
	require.NoError(t, store.CreateUpload(ctx, other))

	uploads, err := store.ListUploads(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, second.ID, uploads[0].ID, "newest first")

	require.NoError(t, store.SoftDeleteUpload(ctx, "user-1", first.ID))

	uploads, err = store.ListUploads(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, uploads, 1)

	_, err = store.GetUpload(ctx, "user-1", first.ID)
	assert.ErrorIs(t, err, common.ErrNotFound, "soft-deleted uploads disappear from reads")

	err = store.SoftDeleteUpload(ctx, "user-2", second.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCandidatePositionUniqueness(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	upload := newUpload("user-1")
	require.NoError(t, store.CreateUpload(ctx, upload))

	first := newCandidate(upload.ID, 0)
	duplicate := newCandidate(upload.ID, 0)
	require.NoError(t, store.SaveCandidates(ctx, []model.CandidateTransaction{first}))
	err := store.SaveCandidates(ctx, []model.CandidateTransaction{duplicate})
	assert.Error(t, err, "duplicate position within an upload must be rejected")
}

func TestCommittedDuplicateCandidate(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	upload := newUpload("user-1")
	require.NoError(t, store.CreateUpload(ctx, upload))
	candidate := newCandidate(upload.ID, 0)

	record := model.FromCandidate(&candidate, "user-1", uuid.NewString(), time.Now().UTC())
	record.Category = "other"
	require.NoError(t, store.SaveCommitted(ctx, []model.CommittedTransaction{record}))

	again := model.FromCandidate(&candidate, "user-1", uuid.NewString(), time.Now().UTC())
	again.Category = "other"
	err := store.SaveCommitted(ctx, []model.CommittedTransaction{again})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestAnnotateCandidateAdditive(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	upload := newUpload("user-1")
	require.NoError(t, store.CreateUpload(ctx, upload))

	blank := newCandidate(upload.ID, 0)
	manual := newCandidate(upload.ID, 1)
	manual.Category = "rent"
	require.NoError(t, store.SaveCandidates(ctx, []model.CandidateTransaction{blank, manual}))

	updated, err := store.AnnotateCandidate(ctx, blank.ID, "food", "high", "convenience store")
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = store.AnnotateCandidate(ctx, manual.ID, "food", "high", "convenience store")
	require.NoError(t, err)
	assert.False(t, updated, "manual category must not be overwritten")

	got, err := store.GetCandidate(ctx, upload.ID, manual.ID)
	require.NoError(t, err)
	assert.Equal(t, "rent", got.Category)
	assert.True(t, got.AICategorized)
	assert.Equal(t, "high", got.AIConfidence)

	updated, err = store.AnnotateCandidate(ctx, "ghost", "food", "high", "x")
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestTransactionAtomicity(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	upload := newUpload("user-1")
	require.NoError(t, store.CreateUpload(ctx, upload))
	candidate := newCandidate(upload.ID, 0)
	require.NoError(t, store.SaveCandidates(ctx, []model.CandidateTransaction{candidate}))
	require.NoError(t, store.TransitionUpload(ctx, upload.ID, model.StatusProcessing, "", model.StatusUploaded))
	require.NoError(t, store.TransitionUpload(ctx, upload.ID, model.StatusAwaitingReview, "", model.StatusProcessing))

	// Rolled-back work must leave no trace.
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	record := model.FromCandidate(&candidate, "user-1", uuid.NewString(), time.Now().UTC())
	record.Category = "other"
	require.NoError(t, tx.SaveCommitted(ctx, []model.CommittedTransaction{record}))
	require.NoError(t, tx.DeleteCandidates(ctx, upload.ID))
	require.NoError(t, tx.Rollback())

	count, err := store.CountCommittedByUpload(ctx, upload.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	candidates, err := store.GetCandidates(ctx, upload.ID)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)

	// The same work committed must stick.
	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveCommitted(ctx, []model.CommittedTransaction{record}))
	require.NoError(t, tx.DeleteCandidates(ctx, upload.ID))
	require.NoError(t, tx.TransitionUpload(ctx, upload.ID, model.StatusProcessed, "", model.StatusAwaitingReview))
	require.NoError(t, tx.Commit())

	count, err = store.CountCommittedByUpload(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSetManuallyVerified(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	upload := newUpload("user-1")
	require.NoError(t, store.CreateUpload(ctx, upload))
	candidate := newCandidate(upload.ID, 0)
	record := model.FromCandidate(&candidate, "user-1", uuid.NewString(), time.Now().UTC())
	record.Category = "other"
	require.NoError(t, store.SaveCommitted(ctx, []model.CommittedTransaction{record}))

	require.NoError(t, store.SetManuallyVerified(ctx, "user-1", record.ID, true, "checked against passbook"))

	got, err := store.GetCommitted(ctx, "user-1", record.ID)
	require.NoError(t, err)
	assert.True(t, got.ManuallyVerified)
	assert.Equal(t, "checked against passbook", got.VerifiedNotes)

	err = store.SetManuallyVerified(ctx, "user-2", record.ID, true, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAnnotateCommittedVerifiedRowKeepsCategory(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	upload := newUpload("user-1")
	require.NoError(t, store.CreateUpload(ctx, upload))
	candidate := newCandidate(upload.ID, 0)
	record := model.FromCandidate(&candidate, "user-1", uuid.NewString(), time.Now().UTC())
	record.Category = "other"
	require.NoError(t, store.SaveCommitted(ctx, []model.CommittedTransaction{record}))
	require.NoError(t, store.SetManuallyVerified(ctx, "user-1", record.ID, true, ""))

	updated, err := store.AnnotateCommitted(ctx, record.ID, "food", "high", "merchant keyword")
	require.NoError(t, err)
	assert.False(t, updated, "verified rows keep their category")

	got, err := store.GetCommitted(ctx, "user-1", record.ID)
	require.NoError(t, err)
	assert.Equal(t, "other", got.Category)
	assert.True(t, got.AICategorized)
	assert.Equal(t, "high", got.AIConfidence)

	// Clearing the flag makes the row annotatable again.
	require.NoError(t, store.SetManuallyVerified(ctx, "user-1", record.ID, false, ""))
	updated, err = store.AnnotateCommitted(ctx, record.ID, "food", "high", "merchant keyword")
	require.NoError(t, err)
	assert.True(t, updated)
}
