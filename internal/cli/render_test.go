package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/perabook/perabook/internal/model"
)

func TestRenderUpload(t *testing.T) {
	var buf bytes.Buffer
	completed := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	RenderUpload(&buf, &model.UploadRecord{
		ID:               "up-1",
		OriginalFilename: "bpi-feb.csv",
		FileType:         model.FileTypeBankStatement,
		SourcePlatform:   "bpi",
		Status:           model.StatusProcessed,
		CreatedAt:        time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		CompletedAt:      &completed,
		FileSize:         2048,
	})

	out := buf.String()
	assert.Contains(t, out, "up-1")
	assert.Contains(t, out, "bpi-feb.csv")
	assert.Contains(t, out, "processed")
	assert.Contains(t, out, "completed 2026-03-02")
}

func TestRenderUploadFailure(t *testing.T) {
	var buf bytes.Buffer
	RenderUpload(&buf, &model.UploadRecord{
		ID:          "up-2",
		Status:      model.StatusFailed,
		ErrorDetail: "no extractable data",
	})

	assert.Contains(t, buf.String(), "no extractable data")
}

func TestRenderCandidates(t *testing.T) {
	var buf bytes.Buffer
	RenderCandidates(&buf, []model.CandidateTransaction{
		{
			ID:          "c-1",
			Position:    0,
			OccurredAt:  time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromFloat(185.50),
			Kind:        model.KindExpense,
			Description: "GRAB RIDE",
			Category:    "transportation",
			Confidence:  95,
		},
		{
			ID:          "c-2",
			Position:    1,
			OccurredAt:  time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(900),
			Kind:        model.KindExpense,
			Description: "UNCLEAR SCAN",
			Confidence:  35,
		},
		{
			ID:         "c-3",
			Position:   2,
			OccurredAt: time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
			Amount:     decimal.NewFromInt(50),
			Kind:       model.KindFee,
			Rejected:   true,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "GRAB RIDE [transportation]")
	assert.Contains(t, out, "(low confidence)")
	assert.Contains(t, out, "(rejected)")
}

func TestRenderCandidatesEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderCandidates(&buf, nil)
	assert.Contains(t, buf.String(), "No candidates staged.")
}

func TestRenderLedgerVerifiedMarker(t *testing.T) {
	var buf bytes.Buffer
	RenderLedger(&buf, []model.CommittedTransaction{
		{
			ID:               "tx-1",
			OccurredAt:       time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
			Amount:           decimal.NewFromInt(250),
			Category:         "food",
			Description:      "JOLLIBEE AYALA",
			ManuallyVerified: true,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "JOLLIBEE AYALA")
	assert.Contains(t, out, "✓")
}

func TestRenderJob(t *testing.T) {
	var buf bytes.Buffer
	RenderJob(&buf, &model.CategorizationJob{
		ID:       "job-1",
		Status:   model.JobCompleted,
		Target:   model.JobTarget{UploadID: "up-1"},
		Attempts: 1,
		Summary:  &model.JobSummary{Total: 4, Updated: 3},
	})

	out := buf.String()
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "target: upload up-1")
	assert.Contains(t, out, "categorized 3 of 4 records")
}
