package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/perabook/perabook/internal/model"
)

// statusStyles maps upload states to their display style.
func statusStyle(status model.UploadStatus) string {
	switch status {
	case model.StatusProcessed:
		return SuccessStyle.Render(string(status))
	case model.StatusFailed:
		return ErrorStyle.Render(string(status))
	case model.StatusAwaitingReview:
		return WarningStyle.Render(string(status))
	default:
		return SubtleStyle.Render(string(status))
	}
}

// RenderUpload prints one upload with its lifecycle details.
func RenderUpload(w io.Writer, upload *model.UploadRecord) {
	fmt.Fprintf(w, "%s  %s\n", BoldStyle.Render(upload.ID), statusStyle(upload.Status))
	fmt.Fprintf(w, "  %s (%s, %s, %d bytes)\n",
		upload.OriginalFilename, upload.FileType, upload.SourcePlatform, upload.FileSize)
	fmt.Fprintf(w, "  submitted %s\n", upload.CreatedAt.Format("2006-01-02 15:04:05"))
	if upload.CompletedAt != nil {
		fmt.Fprintf(w, "  completed %s\n", upload.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if upload.ErrorDetail != "" {
		fmt.Fprintf(w, "  %s\n", ErrorStyle.Render(upload.ErrorDetail))
	}
}

// RenderUploadList prints a compact table of uploads.
func RenderUploadList(w io.Writer, uploads []model.UploadRecord) {
	if len(uploads) == 0 {
		fmt.Fprintln(w, SubtleStyle.Render("No uploads."))
		return
	}

	fmt.Fprintln(w, TableHeaderStyle.Render(fmt.Sprintf("%-36s  %-15s  %-10s  %s",
		"ID", "STATUS", "PLATFORM", "FILE")))
	for i := range uploads {
		u := &uploads[i]
		fmt.Fprintf(w, "%-36s  %-15s  %-10s  %s\n",
			u.ID, string(u.Status), u.SourcePlatform, u.OriginalFilename)
	}
}

// RenderCandidates prints the staged records of an upload for review.
func RenderCandidates(w io.Writer, candidates []model.CandidateTransaction) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, SubtleStyle.Render("No candidates staged."))
		return
	}

	fmt.Fprintln(w, TableHeaderStyle.Render(fmt.Sprintf("%-4s %-36s  %-10s  %12s  %-13s  %s",
		"#", "ID", "DATE", "AMOUNT", "KIND", "DESCRIPTION")))
	for i := range candidates {
		c := &candidates[i]
		line := fmt.Sprintf("%-4d %-36s  %-10s  %12s  %-13s  %s",
			c.Position, c.ID, c.OccurredAt.Format("2006-01-02"),
			c.Amount.StringFixed(2), c.Kind, describeCandidate(c))
		switch {
		case c.Rejected:
			fmt.Fprintln(w, SubtleStyle.Render(line+"  (rejected)"))
		case c.Confidence < model.LowConfidenceThreshold:
			fmt.Fprintln(w, WarningStyle.Render(line+"  (low confidence)"))
		default:
			fmt.Fprintln(w, line)
		}
	}
}

func describeCandidate(c *model.CandidateTransaction) string {
	parts := []string{c.Description}
	if c.Category != "" {
		parts = append(parts, "["+c.Category+"]")
	}
	return strings.Join(parts, " ")
}

// RenderLedger prints committed transactions.
func RenderLedger(w io.Writer, transactions []model.CommittedTransaction) {
	if len(transactions) == 0 {
		fmt.Fprintln(w, SubtleStyle.Render("No committed transactions."))
		return
	}

	fmt.Fprintln(w, TableHeaderStyle.Render(fmt.Sprintf("%-36s  %-10s  %12s  %-16s  %s",
		"ID", "DATE", "AMOUNT", "CATEGORY", "DESCRIPTION")))
	for i := range transactions {
		t := &transactions[i]
		verified := ""
		if t.ManuallyVerified {
			verified = SuccessStyle.Render(" ✓")
		}
		fmt.Fprintf(w, "%-36s  %-10s  %12s  %-16s  %s%s\n",
			t.ID, t.OccurredAt.Format("2006-01-02"),
			t.Amount.StringFixed(2), t.Category, t.Description, verified)
	}
}

// RenderJob prints a categorization job's poll-visible state.
func RenderJob(w io.Writer, job *model.CategorizationJob) {
	var status string
	switch job.Status {
	case model.JobCompleted:
		status = SuccessStyle.Render(string(job.Status))
	case model.JobFailed:
		status = ErrorStyle.Render(string(job.Status))
	default:
		status = WarningStyle.Render(string(job.Status))
	}

	fmt.Fprintf(w, "%s  %s\n", BoldStyle.Render(job.ID), status)
	if job.Target.UploadID != "" {
		fmt.Fprintf(w, "  target: upload %s\n", job.Target.UploadID)
	} else {
		fmt.Fprintf(w, "  target: %d transactions\n", len(job.Target.TransactionIDs))
	}
	fmt.Fprintf(w, "  attempts: %d\n", job.Attempts)
	if job.Summary != nil {
		fmt.Fprintf(w, "  categorized %d of %d records\n", job.Summary.Updated, job.Summary.Total)
	}
	if job.ErrorDetail != "" {
		fmt.Fprintf(w, "  %s\n", ErrorStyle.Render(job.ErrorDetail))
	}
}
