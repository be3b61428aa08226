package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/parser"
	"github.com/perabook/perabook/internal/testutil"
)

const sampleCSV = `Date,Description,Amount,Type
2026-02-03,"GRAB RIDE MAKATI",-185.00,debit
2026-02-01,"SALARY FEBRUARY",25000.00,credit
2026-02-02,"7-ELEVEN BGC",-120.50,debit
`

func newTestEngine(t *testing.T) (*Engine, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	engine := New(db.Storage, parser.NewRegistry(), Config{DataDir: t.TempDir()})
	return engine, db
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestSubmit(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "february.csv", sampleCSV)

	upload, err := engine.Submit(ctx, "user-1", path, model.FileTypeBankStatement, "BPI")
	require.NoError(t, err)

	assert.Equal(t, model.StatusUploaded, upload.Status)
	assert.Equal(t, "february.csv", upload.OriginalFilename)
	assert.Equal(t, "bpi", upload.SourcePlatform)
	assert.FileExists(t, upload.StoredPath)

	stored, err := db.Storage.GetUpload(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, stored.Status)
}

func TestSubmitValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	path := writeTempFile(t, "february.csv", sampleCSV)

	tests := []struct {
		name      string
		requester string
		path      string
		fileType  model.FileType
		platform  string
		wantField string
	}{
		{"missing requester", "", path, model.FileTypeBankStatement, "bpi", "requester"},
		{"unknown file type", "user-1", path, "screenshot", "bpi", "file_type"},
		{"missing platform", "user-1", path, model.FileTypeBankStatement, "", "source_platform"},
		{"unsupported extension", "user-1", writeTempFile(t, "notes.docx", "x"), model.FileTypeOther, "bpi", "file"},
		{"missing file", "user-1", filepath.Join(t.TempDir(), "gone.csv"), model.FileTypeBankStatement, "bpi", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Submit(ctx, tt.requester, tt.path, tt.fileType, tt.platform)
			var valErr *common.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.wantField, valErr.Field)
		})
	}
}

func TestSubmitSizeCeiling(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := New(db.Storage, parser.NewRegistry(), Config{DataDir: t.TempDir(), MaxFileSize: 10})

	path := writeTempFile(t, "big.csv", sampleCSV)
	_, err := engine.Submit(context.Background(), "user-1", path, model.FileTypeBankStatement, "bpi")

	var valErr *common.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "file", valErr.Field)
}

func TestSubmitUnknownPlatformDegrades(t *testing.T) {
	engine, _ := newTestEngine(t)
	path := writeTempFile(t, "february.csv", sampleCSV)

	upload, err := engine.Submit(context.Background(), "user-1", path, model.FileTypeBankStatement, "SomeNewWallet")
	require.NoError(t, err)
	assert.Equal(t, "other", upload.SourcePlatform)
}

func TestProcessStagesCandidatesInDateOrder(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "february.csv", sampleCSV)
	upload, err := engine.Submit(ctx, "user-1", path, model.FileTypeBankStatement, "bpi")
	require.NoError(t, err)

	require.NoError(t, engine.Process(ctx, "user-1", upload.ID))

	stored, err := db.Storage.GetUpload(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingReview, stored.Status)

	candidates, err := db.Storage.GetCandidates(ctx, upload.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, "SALARY FEBRUARY", candidates[0].Description)
	assert.Equal(t, "7-ELEVEN BGC", candidates[1].Description)
	assert.Equal(t, "GRAB RIDE MAKATI", candidates[2].Description)
	for i, c := range candidates {
		assert.Equal(t, i, c.Position)
	}

	assert.Equal(t, model.KindIncome, candidates[0].Kind)
	assert.True(t, candidates[0].Amount.Equal(mustDecimal(t, "25000.00")))
}

func TestProcessRejectsBusyUpload(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	upload := db.SeedUpload("user-1", model.StatusProcessing)

	_, err := engine.Begin(ctx, "user-1", upload.ID)
	assert.True(t, common.IsInvalidState(err), "expected invalid state, got %v", err)
}

func TestProcessWrongOwner(t *testing.T) {
	engine, db := newTestEngine(t)
	upload := db.SeedUpload("user-1", model.StatusUploaded)

	_, err := engine.Begin(context.Background(), "user-2", upload.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestProcessFallbackSynthesis(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	// Headers only: the CSV parser reports no data rows.
	path := writeTempFile(t, "empty.csv", "Date,Description,Amount\n")
	upload, err := engine.Submit(ctx, "user-1", path, model.FileTypeEwalletStatement, "gcash")
	require.NoError(t, err)

	require.NoError(t, engine.Process(ctx, "user-1", upload.ID))

	stored, err := db.Storage.GetUpload(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingReview, stored.Status)

	candidates, err := db.Storage.GetCandidates(ctx, upload.ID)
	require.NoError(t, err)
	require.Len(t, candidates, parser.SyntheticCount)

	for _, c := range candidates {
		assert.Less(t, c.Confidence, model.LowConfidenceThreshold,
			"synthesized rows must read as low confidence")
		assert.False(t, c.OccurredAt.IsZero())
		assert.False(t, c.Amount.IsZero())
	}
}

func TestProcessGarbageFallsBack(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "garbage.csv", "this is not a statement at all")
	upload, err := engine.Submit(ctx, "user-1", path, model.FileTypeOther, "paymaya")
	require.NoError(t, err)

	require.NoError(t, engine.Process(ctx, "user-1", upload.ID))

	candidates, err := db.Storage.GetCandidates(ctx, upload.ID)
	require.NoError(t, err)
	assert.Len(t, candidates, parser.SyntheticCount)
}

func TestRetryAfterFailure(t *testing.T) {
	engine, db := newTestEngine(t)
	ctx := context.Background()

	path := writeTempFile(t, "february.csv", sampleCSV)
	upload, err := engine.Submit(ctx, "user-1", path, model.FileTypeBankStatement, "bpi")
	require.NoError(t, err)

	// Force a failure by removing the stored document.
	started, err := engine.Begin(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(started.StoredPath))
	require.Error(t, engine.Run(ctx, started))

	stored, err := db.Storage.GetUpload(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorDetail)

	// Put the document back and retry from failed.
	require.NoError(t, os.WriteFile(started.StoredPath, []byte(sampleCSV), 0600))
	require.NoError(t, engine.Process(ctx, "user-1", upload.ID))

	stored, err = db.Storage.GetUpload(ctx, "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingReview, stored.Status)
	assert.Empty(t, stored.ErrorDetail)
}

func TestRunCancelledContext(t *testing.T) {
	engine, db := newTestEngine(t)

	path := writeTempFile(t, "february.csv", sampleCSV)
	upload, err := engine.Submit(context.Background(), "user-1", path, model.FileTypeBankStatement, "bpi")
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = engine.Begin(cancelled, "user-1", upload.ID)
	require.Error(t, err)

	stored, err := db.Storage.GetUpload(context.Background(), "user-1", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, stored.Status)
}
