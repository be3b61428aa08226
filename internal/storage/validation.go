package storage

import (
	"context"
	"fmt"

	"github.com/perabook/perabook/internal/model"
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	return ctx.Err()
}

func validateString(value, name string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	return nil
}

func validateUpload(upload *model.UploadRecord) error {
	if upload == nil {
		return fmt.Errorf("upload cannot be nil")
	}
	if err := validateString(upload.ID, "upload.ID"); err != nil {
		return err
	}
	if err := validateString(upload.UserID, "upload.UserID"); err != nil {
		return err
	}
	if err := validateString(upload.OriginalFilename, "upload.OriginalFilename"); err != nil {
		return err
	}
	if !model.ValidUploadStatus(upload.Status) {
		return fmt.Errorf("unknown upload status %q", upload.Status)
	}
	if !model.ValidFileType(upload.FileType) {
		return fmt.Errorf("unknown file type %q", upload.FileType)
	}
	return nil
}

func validateCandidates(candidates []model.CandidateTransaction) error {
	if len(candidates) == 0 {
		return fmt.Errorf("candidates cannot be empty")
	}
	for i := range candidates {
		c := &candidates[i]
		if c.ID == "" {
			return fmt.Errorf("candidate %d: missing ID", i)
		}
		if c.UploadID == "" {
			return fmt.Errorf("candidate %s: missing upload ID", c.ID)
		}
		if c.OccurredAt.IsZero() {
			return fmt.Errorf("candidate %s: missing occurrence date", c.ID)
		}
		if !model.ValidTransactionKind(c.Kind) {
			return fmt.Errorf("candidate %s: unknown kind %q", c.ID, c.Kind)
		}
	}
	return nil
}

func validateCommitted(transactions []model.CommittedTransaction) error {
	if len(transactions) == 0 {
		return fmt.Errorf("transactions cannot be empty")
	}
	for i := range transactions {
		t := &transactions[i]
		if t.ID == "" {
			return fmt.Errorf("transaction %d: missing ID", i)
		}
		if t.UserID == "" || t.UploadID == "" || t.CandidateID == "" {
			return fmt.Errorf("transaction %s: missing ownership reference", t.ID)
		}
		if !model.ValidTransactionKind(t.Kind) {
			return fmt.Errorf("transaction %s: unknown kind %q", t.ID, t.Kind)
		}
	}
	return nil
}

func validateJob(job *model.CategorizationJob) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	if err := validateString(job.ID, "job.ID"); err != nil {
		return err
	}
	if err := validateString(job.UserID, "job.UserID"); err != nil {
		return err
	}
	if job.Target.Empty() {
		return fmt.Errorf("job %s: empty target set", job.ID)
	}
	return nil
}
