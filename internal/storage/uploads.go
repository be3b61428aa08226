package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
)

const uploadColumns = `id, user_id, original_filename, stored_path, file_type,
	source_platform, status, error_detail, file_size, created_at, completed_at`

// CreateUpload inserts a new upload record.
func (s *SQLiteStorage) CreateUpload(ctx context.Context, upload *model.UploadRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.createUploadTx(ctx, s.db, upload)
}

func (s *SQLiteStorage) createUploadTx(ctx context.Context, q dbtx, upload *model.UploadRecord) error {
	if err := validateUpload(upload); err != nil {
		return err
	}

	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO uploads (
			id, user_id, original_filename, stored_path, file_type,
			source_platform, status, error_detail, file_size, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		upload.ID,
		upload.UserID,
		upload.OriginalFilename,
		upload.StoredPath,
		string(upload.FileType),
		upload.SourcePlatform,
		string(upload.Status),
		upload.ErrorDetail,
		upload.FileSize,
		upload.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: upload %s", common.ErrDuplicateEntry, upload.ID)
		}
		return fmt.Errorf("failed to insert upload: %w", err)
	}
	return nil
}

// GetUpload fetches one upload scoped to its owner. A wrong owner gets the
// same ErrNotFound as an unknown id.
func (s *SQLiteStorage) GetUpload(ctx context.Context, userID, uploadID string) (*model.UploadRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getUploadTx(ctx, s.db, userID, uploadID)
}

func (s *SQLiteStorage) getUploadTx(ctx context.Context, q dbtx, userID, uploadID string) (*model.UploadRecord, error) {
	if err := validateString(uploadID, "uploadID"); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, `
		SELECT `+uploadColumns+`
		FROM uploads
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		uploadID, userID)

	upload, err := scanUpload(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: upload %s", common.ErrNotFound, uploadID)
		}
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return upload, nil
}

// ListUploads returns all live uploads for a user, newest first.
func (s *SQLiteStorage) ListUploads(ctx context.Context, userID string) ([]model.UploadRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listUploadsTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) listUploadsTx(ctx context.Context, q dbtx, userID string) ([]model.UploadRecord, error) {
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+uploadColumns+`
		FROM uploads
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var uploads []model.UploadRecord
	for rows.Next() {
		upload, scanErr := scanUpload(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", scanErr)
		}
		uploads = append(uploads, *upload)
	}
	return uploads, rows.Err()
}

// TransitionUpload performs a guarded status change. The WHERE clause on
// the prior states makes concurrent transitions race-free: exactly one
// caller wins, the loser sees InvalidStateError with the current state.
func (s *SQLiteStorage) TransitionUpload(ctx context.Context, uploadID string, to model.UploadStatus, errDetail string, from ...model.UploadStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.transitionUploadTx(ctx, s.db, uploadID, to, errDetail, from...)
}

func (s *SQLiteStorage) transitionUploadTx(ctx context.Context, q dbtx, uploadID string, to model.UploadStatus, errDetail string, from ...model.UploadStatus) error {
	if err := validateString(uploadID, "uploadID"); err != nil {
		return err
	}
	if !model.ValidUploadStatus(to) {
		return fmt.Errorf("unknown upload status %q", to)
	}
	if len(from) == 0 {
		return fmt.Errorf("transition requires at least one prior state")
	}
	for _, f := range from {
		if !f.CanTransition(to) {
			return fmt.Errorf("illegal transition %s -> %s", f, to)
		}
	}

	placeholders := strings.Repeat("?,", len(from))
	placeholders = placeholders[:len(placeholders)-1]

	args := []any{string(to), errDetail}
	// completed_at is set only on terminal states and cleared on retry.
	var completedExpr string
	switch {
	case to.IsTerminal():
		completedExpr = ", completed_at = ?"
		args = append(args, time.Now().UTC())
	case to == model.StatusProcessing:
		completedExpr = ", completed_at = NULL"
	}

	args = append(args, uploadID)
	for _, f := range from {
		args = append(args, string(f))
	}

	res, err := q.ExecContext(ctx, `
		UPDATE uploads
		SET status = ?, error_detail = ?`+completedExpr+`
		WHERE id = ? AND deleted_at IS NULL AND status IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to transition upload: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transition result: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Lost the race or wrong state entirely; report the current state.
	var current string
	err = q.QueryRowContext(ctx,
		`SELECT status FROM uploads WHERE id = ? AND deleted_at IS NULL`, uploadID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: upload %s", common.ErrNotFound, uploadID)
	}
	if err != nil {
		return fmt.Errorf("failed to read upload status: %w", err)
	}
	return common.NewInvalidStateError(fmt.Sprintf("transition to %s", to), current)
}

// SoftDeleteUpload hides an upload without removing committed records that
// still reference it.
func (s *SQLiteStorage) SoftDeleteUpload(ctx context.Context, userID, uploadID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.softDeleteUploadTx(ctx, s.db, userID, uploadID)
}

func (s *SQLiteStorage) softDeleteUploadTx(ctx context.Context, q dbtx, userID, uploadID string) error {
	if err := validateString(uploadID, "uploadID"); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE uploads SET deleted_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), uploadID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: upload %s", common.ErrNotFound, uploadID)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(row scanner) (*model.UploadRecord, error) {
	var upload model.UploadRecord
	var fileType, status string
	var completedAt sql.NullTime

	err := row.Scan(
		&upload.ID,
		&upload.UserID,
		&upload.OriginalFilename,
		&upload.StoredPath,
		&fileType,
		&upload.SourcePlatform,
		&status,
		&upload.ErrorDetail,
		&upload.FileSize,
		&upload.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	upload.FileType = model.FileType(fileType)
	upload.Status = model.UploadStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		upload.CompletedAt = &t
	}
	return &upload, nil
}
