package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/perabook/perabook/internal/cli"
	"github.com/perabook/perabook/internal/common"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <upload-id>...",
		Short: "Extract candidate transactions from submitted documents",
		Long: `Run extraction on one or more uploads.

Each upload moves to awaiting_review with staged candidate
transactions, or to failed if the document cannot be read at all.
Failed uploads can be retried with the same command.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExtract,
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	engine := initEngine(store)

	var bar *progressbar.ProgressBar
	if len(args) > 1 {
		bar = progressbar.NewOptions(len(args),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan][bold]Extracting documents...[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(os.Stderr)
			}),
		)
	}

	var failed int
	for _, uploadID := range args {
		if err := engine.Process(ctx, user, uploadID); err != nil {
			failed++
			common.LogError(err, "extraction failed", common.Fields{"upload_id": uploadID})
		}
		if bar != nil {
			_ = bar.Add(1)
		}

		upload, statusErr := engine.Status(ctx, user, uploadID)
		if statusErr == nil {
			cli.RenderUpload(os.Stdout, upload)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed extraction", failed, len(args))
	}

	slog.Info("Extraction complete", "uploads", len(args))
	return nil
}
