package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
)

const candidateColumns = `id, upload_id, position, occurred_at, amount,
	description, kind, category, counterparty, reference, source_platform,
	confidence, rejected, ai_categorized, ai_confidence, ai_rationale, created_at`

// SaveCandidates stages extracted records for one upload.
func (s *SQLiteStorage) SaveCandidates(ctx context.Context, candidates []model.CandidateTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.saveCandidatesTx(ctx, s.db, candidates)
}

func (s *SQLiteStorage) saveCandidatesTx(ctx context.Context, q dbtx, candidates []model.CandidateTransaction) error {
	if err := validateCandidates(candidates); err != nil {
		return err
	}

	for i := range candidates {
		c := &candidates[i]
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO candidates (
				id, upload_id, position, occurred_at, amount, description,
				kind, category, counterparty, reference, source_platform,
				confidence, rejected, ai_categorized, ai_confidence,
				ai_rationale, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID,
			c.UploadID,
			c.Position,
			c.OccurredAt,
			c.Amount.String(),
			c.Description,
			string(c.Kind),
			c.Category,
			c.Counterparty,
			c.Reference,
			c.SourcePlatform,
			c.Confidence,
			boolToInt(c.Rejected),
			boolToInt(c.AICategorized),
			c.AIConfidence,
			c.AIRationale,
			c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", c.ID, err)
		}
	}
	return nil
}

// GetCandidates returns the staged records of one upload in staging order.
func (s *SQLiteStorage) GetCandidates(ctx context.Context, uploadID string) ([]model.CandidateTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCandidatesTx(ctx, s.db, uploadID)
}

func (s *SQLiteStorage) getCandidatesTx(ctx context.Context, q dbtx, uploadID string) ([]model.CandidateTransaction, error) {
	if err := validateString(uploadID, "uploadID"); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM candidates
		WHERE upload_id = ?
		ORDER BY position ASC`,
		uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []model.CandidateTransaction
	for rows.Next() {
		c, scanErr := scanCandidate(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", scanErr)
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// GetCandidate fetches one staged record scoped to its upload.
func (s *SQLiteStorage) GetCandidate(ctx context.Context, uploadID, candidateID string) (*model.CandidateTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCandidateTx(ctx, s.db, uploadID, candidateID)
}

func (s *SQLiteStorage) getCandidateTx(ctx context.Context, q dbtx, uploadID, candidateID string) (*model.CandidateTransaction, error) {
	if err := validateString(candidateID, "candidateID"); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, `
		SELECT `+candidateColumns+`
		FROM candidates
		WHERE id = ? AND upload_id = ?`,
		candidateID, uploadID)

	c, err := scanCandidate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: candidate %s", common.ErrNotFound, candidateID)
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return c, nil
}

// UpdateCandidate overwrites the mutable fields of a staged record.
func (s *SQLiteStorage) UpdateCandidate(ctx context.Context, candidate *model.CandidateTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updateCandidateTx(ctx, s.db, candidate)
}

func (s *SQLiteStorage) updateCandidateTx(ctx context.Context, q dbtx, candidate *model.CandidateTransaction) error {
	if candidate == nil {
		return fmt.Errorf("candidate cannot be nil")
	}
	if !model.ValidTransactionKind(candidate.Kind) {
		return fmt.Errorf("unknown kind %q", candidate.Kind)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE candidates
		SET amount = ?, description = ?, kind = ?, category = ?,
			counterparty = ?, ai_categorized = ?, ai_confidence = ?,
			ai_rationale = ?
		WHERE id = ? AND upload_id = ?`,
		candidate.Amount.String(),
		candidate.Description,
		string(candidate.Kind),
		candidate.Category,
		candidate.Counterparty,
		boolToInt(candidate.AICategorized),
		candidate.AIConfidence,
		candidate.AIRationale,
		candidate.ID,
		candidate.UploadID,
	)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: candidate %s", common.ErrNotFound, candidate.ID)
	}
	return nil
}

// SetCandidateRejected toggles the reversible reject flag.
func (s *SQLiteStorage) SetCandidateRejected(ctx context.Context, uploadID, candidateID string, rejected bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.setCandidateRejectedTx(ctx, s.db, uploadID, candidateID, rejected)
}

func (s *SQLiteStorage) setCandidateRejectedTx(ctx context.Context, q dbtx, uploadID, candidateID string, rejected bool) error {
	if err := validateString(candidateID, "candidateID"); err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE candidates SET rejected = ?
		WHERE id = ? AND upload_id = ?`,
		boolToInt(rejected), candidateID, uploadID)
	if err != nil {
		return fmt.Errorf("failed to set reject flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check reject result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: candidate %s", common.ErrNotFound, candidateID)
	}
	return nil
}

// DeleteCandidates discards every staged record of an upload. Called as
// part of the approval transaction once the ledger rows exist.
func (s *SQLiteStorage) DeleteCandidates(ctx context.Context, uploadID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.deleteCandidatesTx(ctx, s.db, uploadID)
}

func (s *SQLiteStorage) deleteCandidatesTx(ctx context.Context, q dbtx, uploadID string) error {
	if err := validateString(uploadID, "uploadID"); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM candidates WHERE upload_id = ?`, uploadID); err != nil {
		return fmt.Errorf("failed to delete candidates: %w", err)
	}
	return nil
}

// AnnotateCandidate writes categorization output. The category only lands
// while the stored value is empty or "other" so manual edits always win.
func (s *SQLiteStorage) AnnotateCandidate(ctx context.Context, candidateID, category, band, rationale string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return s.annotateCandidateTx(ctx, s.db, candidateID, category, band, rationale)
}

func (s *SQLiteStorage) annotateCandidateTx(ctx context.Context, q dbtx, candidateID, category, band, rationale string) (bool, error) {
	if err := validateString(candidateID, "candidateID"); err != nil {
		return false, err
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE candidates
		SET ai_categorized = 1, ai_confidence = ?, ai_rationale = ?
		WHERE id = ?`,
		band, rationale, candidateID); err != nil {
		return false, fmt.Errorf("failed to annotate candidate: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE candidates SET category = ?
		WHERE id = ? AND category IN ('', 'other') AND category != ?`,
		category, candidateID, category)
	if err != nil {
		return false, fmt.Errorf("failed to apply category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check annotate result: %w", err)
	}
	return affected == 1, nil
}

func scanCandidate(row scanner) (*model.CandidateTransaction, error) {
	var c model.CandidateTransaction
	var amount, kind string
	var rejected, aiCategorized int

	err := row.Scan(
		&c.ID,
		&c.UploadID,
		&c.Position,
		&c.OccurredAt,
		&amount,
		&c.Description,
		&kind,
		&c.Category,
		&c.Counterparty,
		&c.Reference,
		&c.SourcePlatform,
		&c.Confidence,
		&rejected,
		&aiCategorized,
		&c.AIConfidence,
		&c.AIRationale,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	c.Kind = model.TransactionKind(kind)
	c.Rejected = rejected == 1
	c.AICategorized = aiCategorized == 1
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
