package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/perabook/perabook/internal/cli"
	"github.com/perabook/perabook/internal/jobs"
	"github.com/perabook/perabook/internal/model"
	"github.com/spf13/cobra"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize [upload-id]",
		Short: "Queue an AI categorization job",
		Long: `Queue asynchronous AI categorization for the candidates of an
upload, or for specific ledger transactions via --transactions.

The job runs in the background; a worker must be running
('perabook worker') for it to make progress. Poll it with
'perabook jobs status <job-id>'. Categories you set by hand are never
overwritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCategorize,
	}

	cmd.Flags().StringSlice("transactions", []string{}, "ledger transaction ids to categorize (comma-separated)")

	return cmd
}

func runCategorize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	transactions, _ := cmd.Flags().GetStringSlice("transactions")

	target := model.JobTarget{TransactionIDs: transactions}
	if len(args) == 1 {
		target.UploadID = args[0]
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	queue := jobs.NewQueue(store)
	job, err := queue.Enqueue(ctx, user, target)
	if err != nil {
		return err
	}

	slog.Info("Categorization job queued", "job_id", job.ID)
	cli.RenderJob(os.Stdout, job)
	return nil
}
