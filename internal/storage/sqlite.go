// Package storage implements the persistence layer on SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so entity queries can run
// inside or outside an explicit transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{tx: tx, storage: s}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) CreateUpload(ctx context.Context, upload *model.UploadRecord) error {
	return t.storage.createUploadTx(ctx, t.tx, upload)
}

func (t *sqliteTransaction) GetUpload(ctx context.Context, userID, uploadID string) (*model.UploadRecord, error) {
	return t.storage.getUploadTx(ctx, t.tx, userID, uploadID)
}

func (t *sqliteTransaction) ListUploads(ctx context.Context, userID string) ([]model.UploadRecord, error) {
	return t.storage.listUploadsTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) TransitionUpload(ctx context.Context, uploadID string, to model.UploadStatus, errDetail string, from ...model.UploadStatus) error {
	return t.storage.transitionUploadTx(ctx, t.tx, uploadID, to, errDetail, from...)
}

func (t *sqliteTransaction) SoftDeleteUpload(ctx context.Context, userID, uploadID string) error {
	return t.storage.softDeleteUploadTx(ctx, t.tx, userID, uploadID)
}

func (t *sqliteTransaction) SaveCandidates(ctx context.Context, candidates []model.CandidateTransaction) error {
	return t.storage.saveCandidatesTx(ctx, t.tx, candidates)
}

func (t *sqliteTransaction) GetCandidates(ctx context.Context, uploadID string) ([]model.CandidateTransaction, error) {
	return t.storage.getCandidatesTx(ctx, t.tx, uploadID)
}

func (t *sqliteTransaction) GetCandidate(ctx context.Context, uploadID, candidateID string) (*model.CandidateTransaction, error) {
	return t.storage.getCandidateTx(ctx, t.tx, uploadID, candidateID)
}

func (t *sqliteTransaction) UpdateCandidate(ctx context.Context, candidate *model.CandidateTransaction) error {
	return t.storage.updateCandidateTx(ctx, t.tx, candidate)
}

func (t *sqliteTransaction) SetCandidateRejected(ctx context.Context, uploadID, candidateID string, rejected bool) error {
	return t.storage.setCandidateRejectedTx(ctx, t.tx, uploadID, candidateID, rejected)
}

func (t *sqliteTransaction) DeleteCandidates(ctx context.Context, uploadID string) error {
	return t.storage.deleteCandidatesTx(ctx, t.tx, uploadID)
}

func (t *sqliteTransaction) AnnotateCandidate(ctx context.Context, candidateID, category, band, rationale string) (bool, error) {
	return t.storage.annotateCandidateTx(ctx, t.tx, candidateID, category, band, rationale)
}

func (t *sqliteTransaction) SaveCommitted(ctx context.Context, transactions []model.CommittedTransaction) error {
	return t.storage.saveCommittedTx(ctx, t.tx, transactions)
}

func (t *sqliteTransaction) GetCommitted(ctx context.Context, userID, id string) (*model.CommittedTransaction, error) {
	return t.storage.getCommittedTx(ctx, t.tx, userID, id)
}

func (t *sqliteTransaction) GetCommittedByUpload(ctx context.Context, uploadID string) ([]model.CommittedTransaction, error) {
	return t.storage.getCommittedByUploadTx(ctx, t.tx, uploadID)
}

func (t *sqliteTransaction) CountCommittedByUpload(ctx context.Context, uploadID string) (int, error) {
	return t.storage.countCommittedByUploadTx(ctx, t.tx, uploadID)
}

func (t *sqliteTransaction) SetManuallyVerified(ctx context.Context, userID, id string, verified bool, notes string) error {
	return t.storage.setManuallyVerifiedTx(ctx, t.tx, userID, id, verified, notes)
}

func (t *sqliteTransaction) AnnotateCommitted(ctx context.Context, id, category, band, rationale string) (bool, error) {
	return t.storage.annotateCommittedTx(ctx, t.tx, id, category, band, rationale)
}

func (t *sqliteTransaction) CreateJob(ctx context.Context, job *model.CategorizationJob) error {
	return t.storage.createJobTx(ctx, t.tx, job)
}

func (t *sqliteTransaction) GetJob(ctx context.Context, userID, jobID string) (*model.CategorizationJob, error) {
	return t.storage.getJobTx(ctx, t.tx, userID, jobID)
}

func (t *sqliteTransaction) NextQueuedJob(ctx context.Context) (*model.CategorizationJob, error) {
	return t.storage.nextQueuedJobTx(ctx, t.tx)
}

func (t *sqliteTransaction) ClaimJob(ctx context.Context, jobID string) (bool, error) {
	return t.storage.claimJobTx(ctx, t.tx, jobID)
}

func (t *sqliteTransaction) CompleteJob(ctx context.Context, jobID string, summary model.JobSummary) error {
	return t.storage.completeJobTx(ctx, t.tx, jobID, summary)
}

func (t *sqliteTransaction) FailJob(ctx context.Context, jobID string, errDetail string) error {
	return t.storage.failJobTx(ctx, t.tx, jobID, errDetail)
}

func (t *sqliteTransaction) IncrementJobAttempts(ctx context.Context, jobID string) error {
	return t.storage.incrementJobAttemptsTx(ctx, t.tx, jobID)
}

func (t *sqliteTransaction) FailExpiredJobs(ctx context.Context, maxAge time.Duration) (int, error) {
	return t.storage.failExpiredJobsTx(ctx, t.tx, maxAge)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
