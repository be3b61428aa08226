package main

import (
	"fmt"
	"os"
	"time"

	"github.com/perabook/perabook/internal/cli"
	"github.com/perabook/perabook/internal/jobs"
	"github.com/spf13/cobra"
)

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect categorization jobs",
	}

	cmd.AddCommand(jobsStatusCmd())

	return cmd
}

func jobsStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state of a categorization job",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobsStatus,
	}

	cmd.Flags().Bool("watch", false, "poll until the job reaches a terminal state")
	cmd.Flags().Duration("interval", 2*time.Second, "polling interval with --watch")

	return cmd
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	queue := jobs.NewQueue(store)

	for {
		job, err := queue.Poll(ctx, user, args[0])
		if err != nil {
			return err
		}

		cli.RenderJob(os.Stdout, job)

		if !watch || job.Status.IsTerminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
