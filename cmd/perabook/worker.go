package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/perabook/perabook/internal/categorize"
	"github.com/perabook/perabook/internal/jobs"
	"github.com/perabook/perabook/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the categorization worker",
		Long: `Poll the database for queued categorization jobs and run them
against the configured AI provider. Runs until interrupted. Several
workers may share one database; each job is claimed by exactly one.

Requires an API key in categorizer.api_key or PERABOOK_CATEGORIZER_API_KEY.
Pass --mock to run without a provider, using keyword matching.`,
		RunE: runWorker,
	}

	cmd.Flags().Duration("poll-interval", 5*time.Second, "how often to look for queued jobs")
	cmd.Flags().Duration("job-lifetime", 10*time.Minute, "running jobs older than this are failed")
	cmd.Flags().Int("batch-size", 20, "records sent to the provider per request")
	cmd.Flags().Bool("mock", false, "use the offline keyword categorizer")

	_ = viper.BindPFlag("worker.poll_interval", cmd.Flags().Lookup("poll-interval"))
	_ = viper.BindPFlag("worker.job_lifetime", cmd.Flags().Lookup("job-lifetime"))
	_ = viper.BindPFlag("worker.batch_size", cmd.Flags().Lookup("batch-size"))

	return cmd
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	mock, _ := cmd.Flags().GetBool("mock")

	var categorizer service.Categorizer
	if mock {
		categorizer = &categorize.MockCategorizer{}
	} else {
		categorizer, err = categorize.NewClient(categorize.Config{
			APIKey:  viper.GetString("categorizer.api_key"),
			Model:   viper.GetString("categorizer.model"),
			BaseURL: viper.GetString("categorizer.base_url"),
		})
		if err != nil {
			return fmt.Errorf("failed to create categorizer: %w", err)
		}
	}

	worker := jobs.NewWorker(store, categorizer, jobs.WorkerConfig{
		PollInterval: viper.GetDuration("worker.poll_interval"),
		JobLifetime:  viper.GetDuration("worker.job_lifetime"),
		BatchSize:    viper.GetInt("worker.batch_size"),
	})

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
