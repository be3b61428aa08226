package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommittedTransaction is a permanent ledger record produced by approval.
// Creation is immutable; later edits go through the generic edit path.
type CommittedTransaction struct {
	OccurredAt       time.Time
	CommittedAt      time.Time
	ID               string
	UserID           string
	UploadID         string
	CandidateID      string
	Description      string
	Category         string
	Counterparty     string
	Reference        string
	SourcePlatform   string
	Kind             TransactionKind
	AIConfidence     string
	AIRationale      string
	VerifiedNotes    string
	Amount           decimal.Decimal
	Confidence       int
	AICategorized    bool
	ManuallyVerified bool
}

// FromCandidate builds the ledger record for an accepted candidate.
func FromCandidate(c *CandidateTransaction, userID, id string, now time.Time) CommittedTransaction {
	return CommittedTransaction{
		ID:             id,
		UserID:         userID,
		UploadID:       c.UploadID,
		CandidateID:    c.ID,
		OccurredAt:     c.OccurredAt,
		CommittedAt:    now,
		Amount:         c.Amount,
		Description:    c.Description,
		Kind:           c.Kind,
		Category:       c.Category,
		Counterparty:   c.Counterparty,
		Reference:      c.Reference,
		SourcePlatform: c.SourcePlatform,
		Confidence:     c.Confidence,
		AICategorized:  c.AICategorized,
		AIConfidence:   c.AIConfidence,
		AIRationale:    c.AIRationale,
	}
}
