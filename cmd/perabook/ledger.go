package main

import (
	"fmt"
	"os"

	"github.com/perabook/perabook/internal/cli"
	"github.com/spf13/cobra"
)

func ledgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger <upload-id>",
		Short: "Show ledger transactions approved from an upload",
		Args:  cobra.ExactArgs(1),
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

			// Ownership check before touching ledger rows.
			if _, err := store.GetUpload(ctx, user, args[0]); err != nil {
				return err
			}

			transactions, err := store.GetCommittedByUpload(ctx, args[0])
			if err != nil {
				return err
			}

			cli.RenderLedger(os.Stdout, transactions)
			return nil
		},
	}
}
