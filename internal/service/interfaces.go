// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/perabook/perabook/internal/model"
)

// Storage defines the contract for our persistence layer. Ownership checks
// are folded into the queries: a wrong-owner lookup is indistinguishable
// from an unknown id (common.ErrNotFound).
type Storage interface {
	// Upload operations
	CreateUpload(ctx context.Context, upload *model.UploadRecord) error
	GetUpload(ctx context.Context, userID, uploadID string) (*model.UploadRecord, error)
	ListUploads(ctx context.Context, userID string) ([]model.UploadRecord, error)
	// TransitionUpload performs a conditional status update: it succeeds
	// only while the row is in one of the from states, otherwise it
	// reports the current state via InvalidStateError.
	TransitionUpload(ctx context.Context, uploadID string, to model.UploadStatus, errDetail string, from ...model.UploadStatus) error
	SoftDeleteUpload(ctx context.Context, userID, uploadID string) error

	// Candidate operations
	SaveCandidates(ctx context.Context, candidates []model.CandidateTransaction) error
	GetCandidates(ctx context.Context, uploadID string) ([]model.CandidateTransaction, error)
	GetCandidate(ctx context.Context, uploadID, candidateID string) (*model.CandidateTransaction, error)
	UpdateCandidate(ctx context.Context, candidate *model.CandidateTransaction) error
	SetCandidateRejected(ctx context.Context, uploadID, candidateID string, rejected bool) error
	DeleteCandidates(ctx context.Context, uploadID string) error
	// AnnotateCandidate applies categorization output additively: the
	// category is written only while the stored value is empty or
	// "other"; confidence band and rationale are always recorded.
	AnnotateCandidate(ctx context.Context, candidateID, category, band, rationale string) (bool, error)

	// Ledger operations
	SaveCommitted(ctx context.Context, transactions []model.CommittedTransaction) error
	GetCommitted(ctx context.Context, userID, id string) (*model.CommittedTransaction, error)
	GetCommittedByUpload(ctx context.Context, uploadID string) ([]model.CommittedTransaction, error)
	CountCommittedByUpload(ctx context.Context, uploadID string) (int, error)
	SetManuallyVerified(ctx context.Context, userID, id string, verified bool, notes string) error
	AnnotateCommitted(ctx context.Context, id, category, band, rationale string) (bool, error)

	// Categorization job operations
	CreateJob(ctx context.Context, job *model.CategorizationJob) error
	GetJob(ctx context.Context, userID, jobID string) (*model.CategorizationJob, error)
	NextQueuedJob(ctx context.Context) (*model.CategorizationJob, error)
	// ClaimJob transitions queued -> running; it reports false when
	// another worker already holds the job.
	ClaimJob(ctx context.Context, jobID string) (bool, error)
	CompleteJob(ctx context.Context, jobID string, summary model.JobSummary) error
	FailJob(ctx context.Context, jobID string, errDetail string) error
	IncrementJobAttempts(ctx context.Context, jobID string) error
	// FailExpiredJobs forces running jobs older than maxAge to failed.
	FailExpiredJobs(ctx context.Context, maxAge time.Duration) (int, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// CategorizerRecord is the narrow view of a transaction handed to the
// categorization provider. Amounts travel as decimal strings.
type CategorizerRecord struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Reference    string `json:"reference,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
}

// CategorizerAssignment is one categorization result from the provider.
type CategorizerAssignment struct {
	ID         string `json:"id"`
	Kind       string `json:"transaction_type"`
	Category   string `json:"category"`
	Confidence string `json:"confidence"`
	Rationale  string `json:"reasoning"`
}

// Categorizer is the external classification provider contract.
type Categorizer interface {
	Classify(ctx context.Context, records []CategorizerRecord) ([]CategorizerAssignment, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
