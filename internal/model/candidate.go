package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind tags the direction or nature of a financial record.
type TransactionKind string

// Transaction kinds.
const (
	KindIncome      TransactionKind = "income"
	KindExpense     TransactionKind = "expense"
	KindTransferIn  TransactionKind = "transfer_in"
	KindTransferOut TransactionKind = "transfer_out"
	KindFee         TransactionKind = "fee"
	KindRefund      TransactionKind = "refund"
	KindOther       TransactionKind = "other"
)

var transactionKinds = map[TransactionKind]bool{
	KindIncome:      true,
	KindExpense:     true,
	KindTransferIn:  true,
	KindTransferOut: true,
	KindFee:         true,
	KindRefund:      true,
	KindOther:       true,
}

// ValidTransactionKind reports whether k is a known kind token.
func ValidTransactionKind(k TransactionKind) bool {
	return transactionKinds[k]
}

// UnknownDescription is the sentinel used when a parser cannot recover a
// description for an otherwise usable record.
const UnknownDescription = "(unknown)"

// ExtractedRecord is a parser's raw output before it is staged. Amount and
// date are mandatory; everything else may carry sentinels.
type ExtractedRecord struct {
	OccurredAt   time.Time
	Description  string
	Counterparty string
	Reference    string
	Kind         TransactionKind
	Amount       decimal.Decimal
	Confidence   int
}

// CandidateTransaction is a staged, not-yet-committed record owned by one
// upload. It stays mutable until the upload leaves awaiting_review.
type CandidateTransaction struct {
	OccurredAt     time.Time
	CreatedAt      time.Time
	ID             string
	UploadID       string
	Description    string
	Category       string
	Counterparty   string
	Reference      string
	SourcePlatform string
	Kind           TransactionKind
	AIConfidence   string
	AIRationale    string
	Amount         decimal.Decimal
	Position       int
	Confidence     int
	Rejected       bool
	AICategorized  bool
}

// CandidatePatch carries field-level overwrites for one staged candidate.
// Nil fields are left untouched.
type CandidatePatch struct {
	Amount       *decimal.Decimal
	Description  *string
	Kind         *TransactionKind
	Category     *string
	Counterparty *string
}

// Apply overwrites the patched fields on c.
func (p CandidatePatch) Apply(c *CandidateTransaction) {
	if p.Amount != nil {
		c.Amount = *p.Amount
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Kind != nil {
		c.Kind = *p.Kind
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.Counterparty != nil {
		c.Counterparty = *p.Counterparty
	}
}

// Empty reports whether the patch changes nothing.
func (p CandidatePatch) Empty() bool {
	return p.Amount == nil && p.Description == nil && p.Kind == nil &&
		p.Category == nil && p.Counterparty == nil
}
