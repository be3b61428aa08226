package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/perabook/perabook/internal/cli"
	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
	"github.com/spf13/cobra"
)

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Submit a financial document for extraction",
		Long: `Submit a statement, receipt, or other financial document.

The file is copied into local document storage and recorded as an
upload. Run 'perabook extract' afterwards (or pass --extract) to pull
candidate transactions out of it.`,
		Args: cobra.ExactArgs(1),
		RunE: runSubmit,
	}

	cmd.Flags().StringP("type", "t", "bank_statement", "document type (bank_statement, ewallet_statement, receipt, invoice, payslip, other)")
	cmd.Flags().StringP("platform", "p", "other", "source platform (gcash, paymaya, bpi, bdo, ...)")
	cmd.Flags().Bool("extract", false, "run extraction immediately after submitting")

	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	fileType, _ := cmd.Flags().GetString("type")
	platform, _ := cmd.Flags().GetString("platform")
	andExtract, _ := cmd.Flags().GetBool("extract")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	engine := initEngine(store)

	upload, err := engine.Submit(ctx, user, args[0], model.FileType(fileType), platform)
	if err != nil {
		var failures *common.ValidationFailures
		if errors.As(err, &failures) {
			for _, f := range failures.Failures {
				slog.Error("invalid submission", "field", f.Field, "reason", f.Reason)
			}
		}
		return fmt.Errorf("submission rejected: %w", err)
	}

	slog.Info("Document submitted", "upload_id", upload.ID, "file", upload.OriginalFilename)
	cli.RenderUpload(os.Stdout, upload)

	if !andExtract {
		return nil
	}

	if err := engine.Process(ctx, user, upload.ID); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	final, err := engine.Status(ctx, user, upload.ID)
	if err != nil {
		return err
	}
	cli.RenderUpload(os.Stdout, final)
	return nil
}
