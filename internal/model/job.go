package model

import "time"

// JobStatus represents the lifecycle state of a categorization job.
type JobStatus string

// Categorization job states. Completed and failed are terminal.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal reports whether the job can no longer change state.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobTarget names the record set a categorization job annotates: either
// every candidate of one upload, or an explicit transaction id list.
type JobTarget struct {
	UploadID       string   `json:"upload_id,omitempty"`
	TransactionIDs []string `json:"transaction_ids,omitempty"`
}

// Empty reports whether the target selects nothing.
func (t JobTarget) Empty() bool {
	return t.UploadID == "" && len(t.TransactionIDs) == 0
}

// JobSummary is the poll-visible outcome of a completed job. Full
// assignments are fetched from the annotated records, not streamed here.
type JobSummary struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
}

// CategorizationJob tracks one asynchronous enrichment request.
type CategorizationJob struct {
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Summary     *JobSummary
	ID          string
	UserID      string
	ErrorDetail string
	Target      JobTarget
	Status      JobStatus
	Attempts    int
}
