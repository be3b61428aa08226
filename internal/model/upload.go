package model

import (
	"fmt"
	"time"
)

// UploadStatus represents the lifecycle state of a submitted document.
type UploadStatus string

// Upload lifecycle states.
const (
	StatusUploaded       UploadStatus = "uploaded"
	StatusProcessing     UploadStatus = "processing"
	StatusAwaitingReview UploadStatus = "awaiting_review"
	StatusProcessed      UploadStatus = "processed"
	StatusFailed         UploadStatus = "failed"
)

// uploadTransitions is the exhaustive table of legal forward transitions.
// The only backward edge is the explicit retry path failed -> processing.
var uploadTransitions = map[UploadStatus][]UploadStatus{
	StatusUploaded:       {StatusProcessing},
	StatusProcessing:     {StatusAwaitingReview, StatusFailed},
	StatusAwaitingReview: {StatusProcessed},
	StatusFailed:         {StatusProcessing},
	StatusProcessed:      {},
}

// ValidUploadStatus reports whether s is a known status token.
func ValidUploadStatus(s UploadStatus) bool {
	_, ok := uploadTransitions[s]
	return ok
}

// CanTransition reports whether moving from -> to is a legal transition.
func (s UploadStatus) CanTransition(to UploadStatus) bool {
	for _, next := range uploadTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status closes out the upload.
// A failed upload is terminal until explicitly retried.
func (s UploadStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// FileType is the declared document category of an upload.
type FileType string

// Declared document types.
const (
	FileTypeBankStatement    FileType = "bank_statement"
	FileTypeEwalletStatement FileType = "ewallet_statement"
	FileTypeReceipt          FileType = "receipt"
	FileTypeInvoice          FileType = "invoice"
	FileTypePayslip          FileType = "payslip"
	FileTypeOther            FileType = "other"
)

var fileTypes = map[FileType]bool{
	FileTypeBankStatement:    true,
	FileTypeEwalletStatement: true,
	FileTypeReceipt:          true,
	FileTypeInvoice:          true,
	FileTypePayslip:          true,
	FileTypeOther:            true,
}

// ValidFileType reports whether t is a known document type token.
func ValidFileType(t FileType) bool {
	return fileTypes[t]
}

// SourcePlatforms lists the declared source platforms accepted on submit.
// Unknown platforms degrade to "other" rather than failing validation.
var SourcePlatforms = []string{
	"gcash", "paymaya", "grabpay", "coins_ph",
	"bpi", "bdo", "metrobank", "unionbank", "security_bank", "pnb", "landbank",
	"other_bank", "other_ewallet", "manual_entry", "other",
}

// UploadRecord represents one submitted financial document.
type UploadRecord struct {
	CreatedAt        time.Time
	CompletedAt      *time.Time
	DeletedAt        *time.Time
	ID               string
	UserID           string
	OriginalFilename string
	StoredPath       string
	FileType         FileType
	SourcePlatform   string
	Status           UploadStatus
	ErrorDetail      string
	FileSize         int64
}

func (u *UploadRecord) String() string {
	return fmt.Sprintf("%s (%s, %s)", u.OriginalFilename, u.ID, u.Status)
}
