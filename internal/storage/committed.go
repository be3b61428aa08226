package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
)

const ledgerColumns = `id, user_id, upload_id, candidate_id, occurred_at,
	committed_at, amount, description, kind, category, counterparty,
	reference, source_platform, confidence, ai_categorized, ai_confidence,
	ai_rationale, manually_verified, verified_notes`

// SaveCommitted writes ledger records. The UNIQUE constraint on
// candidate_id guards against double commits of the same staged record.
func (s *SQLiteStorage) SaveCommitted(ctx context.Context, transactions []model.CommittedTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.saveCommittedTx(ctx, s.db, transactions)
}

func (s *SQLiteStorage) saveCommittedTx(ctx context.Context, q dbtx, transactions []model.CommittedTransaction) error {
	if err := validateCommitted(transactions); err != nil {
		return err
	}

	for i := range transactions {
		t := &transactions[i]
		if t.CommittedAt.IsZero() {
			t.CommittedAt = time.Now().UTC()
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO ledger (
				id, user_id, upload_id, candidate_id, occurred_at,
				committed_at, amount, description, kind, category,
				counterparty, reference, source_platform, confidence,
				ai_categorized, ai_confidence, ai_rationale,
				manually_verified, verified_notes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID,
			t.UserID,
			t.UploadID,
			t.CandidateID,
			t.OccurredAt,
			t.CommittedAt,
			t.Amount.String(),
			t.Description,
			string(t.Kind),
			t.Category,
			t.Counterparty,
			t.Reference,
			t.SourcePlatform,
			t.Confidence,
			boolToInt(t.AICategorized),
			t.AIConfidence,
			t.AIRationale,
			boolToInt(t.ManuallyVerified),
			t.VerifiedNotes,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return fmt.Errorf("%w: candidate %s already committed", common.ErrDuplicateEntry, t.CandidateID)
			}
			return fmt.Errorf("failed to insert ledger record %s: %w", t.ID, err)
		}
	}
	return nil
}

// GetCommitted fetches one ledger record scoped to its owner.
func (s *SQLiteStorage) GetCommitted(ctx context.Context, userID, id string) (*model.CommittedTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCommittedTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) getCommittedTx(ctx context.Context, q dbtx, userID, id string) (*model.CommittedTransaction, error) {
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger
		WHERE id = ? AND user_id = ?`,
		id, userID)

	t, err := scanCommitted(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get ledger record: %w", err)
	}
	return t, nil
}

// GetCommittedByUpload returns the ledger records produced by one upload.
func (s *SQLiteStorage) GetCommittedByUpload(ctx context.Context, uploadID string) ([]model.CommittedTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCommittedByUploadTx(ctx, s.db, uploadID)
}

func (s *SQLiteStorage) getCommittedByUploadTx(ctx context.Context, q dbtx, uploadID string) ([]model.CommittedTransaction, error) {
	if err := validateString(uploadID, "uploadID"); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger
		WHERE upload_id = ?
		ORDER BY occurred_at ASC, committed_at ASC`,
		uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.CommittedTransaction
	for rows.Next() {
		t, scanErr := scanCommitted(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan ledger record: %w", scanErr)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// CountCommittedByUpload reports how many ledger records an upload produced.
func (s *SQLiteStorage) CountCommittedByUpload(ctx context.Context, uploadID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.countCommittedByUploadTx(ctx, s.db, uploadID)
}

func (s *SQLiteStorage) countCommittedByUploadTx(ctx context.Context, q dbtx, uploadID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger WHERE upload_id = ?`, uploadID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger records: %w", err)
	}
	return count, nil
}

// SetManuallyVerified marks a committed record as human-verified.
func (s *SQLiteStorage) SetManuallyVerified(ctx context.Context, userID, id string, verified bool, notes string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.setManuallyVerifiedTx(ctx, s.db, userID, id, verified, notes)
}

func (s *SQLiteStorage) setManuallyVerifiedTx(ctx context.Context, q dbtx, userID, id string, verified bool, notes string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE ledger SET manually_verified = ?, verified_notes = ?
		WHERE id = ? AND user_id = ?`,
		boolToInt(verified), notes, id, userID)
	if err != nil {
		return fmt.Errorf("failed to set verified flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check verify result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return nil
}

// AnnotateCommitted is the post-commit counterpart of AnnotateCandidate
// with the same additive category semantics. Manually verified rows
// keep their category even when it is still "other".
func (s *SQLiteStorage) AnnotateCommitted(ctx context.Context, id, category, band, rationale string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return s.annotateCommittedTx(ctx, s.db, id, category, band, rationale)
}

func (s *SQLiteStorage) annotateCommittedTx(ctx context.Context, q dbtx, id, category, band, rationale string) (bool, error) {
	if err := validateString(id, "id"); err != nil {
		return false, err
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE ledger
		SET ai_categorized = 1, ai_confidence = ?, ai_rationale = ?
		WHERE id = ?`,
		band, rationale, id); err != nil {
		return false, fmt.Errorf("failed to annotate ledger record: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE ledger SET category = ?
		WHERE id = ? AND category IN ('', 'other') AND category != ?
		AND manually_verified = 0`,
		category, id, category)
	if err != nil {
		return false, fmt.Errorf("failed to apply category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check annotate result: %w", err)
	}
	return affected == 1, nil
}

func scanCommitted(row scanner) (*model.CommittedTransaction, error) {
	var t model.CommittedTransaction
	var amount, kind string
	var aiCategorized, manuallyVerified int

	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.UploadID,
		&t.CandidateID,
		&t.OccurredAt,
		&t.CommittedAt,
		&amount,
		&t.Description,
		&kind,
		&t.Category,
		&t.Counterparty,
		&t.Reference,
		&t.SourcePlatform,
		&t.Confidence,
		&aiCategorized,
		&t.AIConfidence,
		&t.AIRationale,
		&manuallyVerified,
		&t.VerifiedNotes,
	)
	if err != nil {
		return nil, err
	}

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	t.Kind = model.TransactionKind(kind)
	t.AICategorized = aiCategorized == 1
	t.ManuallyVerified = manuallyVerified == 1
	return &t, nil
}
