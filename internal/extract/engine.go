// Package extract implements the extraction engine: parser dispatch,
// fallback synthesis, and the upload state transitions around them.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/parser"
	"github.com/perabook/perabook/internal/service"
)

// DefaultMaxFileSize is the submission size ceiling when none is configured.
const DefaultMaxFileSize = 10 << 20 // 10 MiB

// Config holds configuration options for the extraction engine.
type Config struct {
	DataDir     string
	MaxFileSize int64
}

// Engine orchestrates extraction for uploaded documents.
type Engine struct {
	storage  service.Storage
	registry *parser.Registry
	cfg      Config
}

// New creates an extraction engine.
func New(storage service.Storage, registry *parser.Registry, cfg Config) *Engine {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	return &Engine{storage: storage, registry: registry, cfg: cfg}
}

// Submit validates and records a new document, copying it into the data
// directory. The upload starts in the uploaded state; extraction is a
// separate call.
func (e *Engine) Submit(ctx context.Context, requester, sourcePath string, fileType model.FileType, sourcePlatform string) (*model.UploadRecord, error) {
	if requester == "" {
		return nil, common.NewValidationError("requester", "missing identity")
	}
	if !model.ValidFileType(fileType) {
		return nil, common.NewValidationError("file_type", fmt.Sprintf("unknown type %q", fileType))
	}
	if sourcePlatform == "" {
		return nil, common.NewValidationError("source_platform", "missing platform")
	}

	if _, err := e.registry.ForFilename(sourcePath); err != nil {
		return nil, common.NewValidationError("file", err.Error())
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, common.NewValidationError("file", fmt.Sprintf("unreadable: %v", err))
	}
	if info.Size() > e.cfg.MaxFileSize {
		return nil, common.NewValidationError("file",
			fmt.Sprintf("size %d exceeds ceiling %d", info.Size(), e.cfg.MaxFileSize))
	}

	upload := &model.UploadRecord{
		ID:               uuid.NewString(),
		UserID:           requester,
		OriginalFilename: filepath.Base(sourcePath),
		FileType:         fileType,
		SourcePlatform:   normalizePlatform(sourcePlatform),
		Status:           model.StatusUploaded,
		FileSize:         info.Size(),
		CreatedAt:        time.Now().UTC(),
	}

	storedPath, err := e.storeDocument(sourcePath, upload)
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	upload.StoredPath = storedPath

	if err := e.storage.CreateUpload(ctx, upload); err != nil {
		return nil, err
	}

	slog.Info("Document submitted",
		"upload_id", upload.ID,
		"filename", upload.OriginalFilename,
		"file_type", upload.FileType,
		"source_platform", upload.SourcePlatform,
		"size", upload.FileSize)

	return upload, nil
}

// Begin gates extraction on the state machine: only uploaded or failed
// uploads may enter processing. A concurrent second call loses the
// conditional transition and gets InvalidStateError, never a queue.
func (e *Engine) Begin(ctx context.Context, requester, uploadID string) (*model.UploadRecord, error) {
	upload, err := e.storage.GetUpload(ctx, requester, uploadID)
	if err != nil {
		return nil, err
	}

	err = e.storage.TransitionUpload(ctx, uploadID, model.StatusProcessing, "",
		model.StatusUploaded, model.StatusFailed)
	if err != nil {
		return nil, err
	}

	upload.Status = model.StatusProcessing
	upload.ErrorDetail = ""
	return upload, nil
}

// Run performs the extraction for an upload already in processing. It
// stages candidates and completes the state transition; callers usually
// invoke it in a background goroutine after Begin.
func (e *Engine) Run(ctx context.Context, upload *model.UploadRecord) error {
	records, err := e.extractRecords(ctx, upload)
	if err != nil {
		// Unexpected failure, not a parse failure: surface and fail the upload.
		if failErr := e.storage.TransitionUpload(ctx, upload.ID, model.StatusFailed, err.Error(),
			model.StatusProcessing); failErr != nil {
			slog.Error("Failed to mark upload failed", "upload_id", upload.ID, "error", failErr)
		}
		return err
	}

	if len(records) == 0 {
		// Genuine zero-record case: even fallback produced nothing usable.
		if err := e.storage.TransitionUpload(ctx, upload.ID, model.StatusFailed,
			common.ErrNoExtractableData.Error(), model.StatusProcessing); err != nil {
			return err
		}
		return fmt.Errorf("upload %s: %w", upload.ID, common.ErrNoExtractableData)
	}

	candidates := e.stageCandidates(upload, records)

	// Staging and the awaiting_review transition land atomically.
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.SaveCandidates(ctx, candidates); err != nil {
		return err
	}
	if err := tx.TransitionUpload(ctx, upload.ID, model.StatusAwaitingReview, "",
		model.StatusProcessing); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit staging: %w", err)
	}

	slog.Info("Extraction complete",
		"upload_id", upload.ID,
		"candidates", len(candidates))
	return nil
}

// Process is Begin followed by Run, for synchronous callers.
func (e *Engine) Process(ctx context.Context, requester, uploadID string) error {
	upload, err := e.Begin(ctx, requester, uploadID)
	if err != nil {
		return err
	}
	return e.Run(ctx, upload)
}

// Status reports the current upload state for polling clients.
func (e *Engine) Status(ctx context.Context, requester, uploadID string) (*model.UploadRecord, error) {
	return e.storage.GetUpload(ctx, requester, uploadID)
}

// extractRecords runs the selected parser and applies the fallback policy:
// a parse failure or an empty result invokes deterministic synthesis so
// review always has something to show.
func (e *Engine) extractRecords(ctx context.Context, upload *model.UploadRecord) ([]model.ExtractedRecord, error) {
	data, err := os.ReadFile(upload.StoredPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored document: %w", err)
	}

	var records []model.ExtractedRecord

	p, err := e.registry.ForFilename(upload.OriginalFilename)
	if err == nil {
		records, err = p.Parse(ctx, data)
	}

	switch {
	case err == nil && len(records) > 0:
		// Parsed cleanly.
	case err != nil && !isParseFailure(err):
		// Context cancellation and other infrastructure errors are not
		// recoverable by synthesis.
		return nil, err
	default:
		slog.Warn("Parser produced nothing, falling back to synthesis",
			"upload_id", upload.ID,
			"source_platform", upload.SourcePlatform,
			"error", err)
		records = parser.Synthesize(upload.SourcePlatform, upload.CreatedAt)
	}

	return dropUnusable(records), nil
}

// stageCandidates orders records by occurrence date ascending with input
// order as the tiebreak, then assigns stable positions.
func (e *Engine) stageCandidates(upload *model.UploadRecord, records []model.ExtractedRecord) []model.CandidateTransaction {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].OccurredAt.Before(records[j].OccurredAt)
	})

	candidates := make([]model.CandidateTransaction, 0, len(records))
	for i, r := range records {
		candidates = append(candidates, model.CandidateTransaction{
			ID:             uuid.NewString(),
			UploadID:       upload.ID,
			Position:       i,
			OccurredAt:     r.OccurredAt,
			Amount:         r.Amount,
			Description:    r.Description,
			Kind:           r.Kind,
			Counterparty:   r.Counterparty,
			Reference:      r.Reference,
			SourcePlatform: upload.SourcePlatform,
			Confidence:     model.ClampScore(r.Confidence),
			CreatedAt:      time.Now().UTC(),
		})
	}
	return candidates
}

// dropUnusable discards records that survived parsing without a usable
// date. Parsers already drop rows with no amount.
func dropUnusable(records []model.ExtractedRecord) []model.ExtractedRecord {
	usable := records[:0]
	for _, r := range records {
		if r.OccurredAt.IsZero() {
			continue
		}
		usable = append(usable, r)
	}
	return usable
}

func isParseFailure(err error) bool {
	var parseErr *common.ParseError
	return errors.As(err, &parseErr)
}

func (e *Engine) storeDocument(sourcePath string, upload *model.UploadRecord) (string, error) {
	dir := filepath.Join(e.cfg.DataDir, "documents", upload.UserID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(dir, upload.ID+strings.ToLower(filepath.Ext(upload.OriginalFilename)))
	if err := os.WriteFile(dest, data, 0640); err != nil {
		return "", err
	}
	return dest, nil
}

func normalizePlatform(platform string) string {
	platform = strings.ToLower(strings.TrimSpace(platform))
	for _, known := range model.SourcePlatforms {
		if platform == known {
			return platform
		}
	}
	return "other"
}
