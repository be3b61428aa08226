package main

import (
	"fmt"
	"os"

	"github.com/perabook/perabook/internal/cli"
	"github.com/perabook/perabook/internal/review"
	"github.com/spf13/cobra"
)

func candidatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "candidates <upload-id>",
		Short: "List staged candidate transactions for review",
		Long: `Show the candidate transactions extracted from an upload, in
document order. Candidates only exist while the upload is awaiting
review; once approved they move into the ledger.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			controller := review.NewController(store)
			upload, candidates, err := controller.ListCandidates(ctx, user, args[0])
			if err != nil {
				return err
			}

			cli.RenderUpload(os.Stdout, upload)
			fmt.Fprintln(os.Stdout)
			cli.RenderCandidates(os.Stdout, candidates)
			return nil
		},
	}
}
