// Package testutil provides shared helpers for package tests: in-memory
// databases with migrations applied and builders for common fixtures.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/service"
	"github.com/perabook/perabook/internal/storage"
)

// TestDB wraps an in-memory store for a single test.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory SQLite store and registers
// cleanup on the test.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedUpload inserts an upload row in the given state and returns it.
func (db *TestDB) SeedUpload(userID string, status model.UploadStatus) *model.UploadRecord {
	db.t.Helper()

	upload := &model.UploadRecord{
		ID:               uuid.NewString(),
		UserID:           userID,
		OriginalFilename: "statement.csv",
		FileType:         model.FileTypeBankStatement,
		SourcePlatform:   "bpi",
		Status:           model.StatusUploaded,
		FileSize:         2048,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.Storage.CreateUpload(context.Background(), upload); err != nil {
		db.t.Fatalf("failed to seed upload: %v", err)
	}

	// Walk the legal path to the requested state instead of poking the row.
	path := transitionPath(status)
	for _, next := range path {
		if err := db.Storage.TransitionUpload(context.Background(), upload.ID, next, "", upload.Status); err != nil {
			db.t.Fatalf("failed to advance upload to %s: %v", next, err)
		}
		upload.Status = next
	}
	return upload
}

// SeedCandidates stages n candidates for an upload and returns them in
// position order.
func (db *TestDB) SeedCandidates(uploadID string, n int) []model.CandidateTransaction {
	db.t.Helper()

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	candidates := make([]model.CandidateTransaction, 0, n)
	for i := 0; i < n; i++ {
		candidates = append(candidates, model.CandidateTransaction{
			ID:             uuid.NewString(),
			UploadID:       uploadID,
			Position:       i,
			OccurredAt:     base.AddDate(0, 0, i),
			Amount:         decimal.New(int64(-1500-100*i), -2),
			Description:    "Jollibee branch " + uuid.NewString()[:8],
			Kind:           model.KindExpense,
			SourcePlatform: "bpi",
			Confidence:     90,
			CreatedAt:      time.Now().UTC(),
		})
	}
	if err := db.Storage.SaveCandidates(context.Background(), candidates); err != nil {
		db.t.Fatalf("failed to seed candidates: %v", err)
	}
	return candidates
}

func transitionPath(target model.UploadStatus) []model.UploadStatus {
	switch target {
	case model.StatusProcessing:
		return []model.UploadStatus{model.StatusProcessing}
	case model.StatusAwaitingReview:
		return []model.UploadStatus{model.StatusProcessing, model.StatusAwaitingReview}
	case model.StatusProcessed:
		return []model.UploadStatus{model.StatusProcessing, model.StatusAwaitingReview, model.StatusProcessed}
	case model.StatusFailed:
		return []model.UploadStatus{model.StatusProcessing, model.StatusFailed}
	default:
		return nil
	}
}
