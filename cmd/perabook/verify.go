package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <transaction-id>",
		Short: "Mark a ledger transaction as manually verified",
		Long: `Record that you checked a ledger transaction against the source
document. Verified transactions keep their category even when an AI
categorization job later covers them.`,
		Args: cobra.ExactArgs(1),
		RunE: runVerify,
	}

	cmd.Flags().Bool("undo", false, "clear the verified flag")
	cmd.Flags().String("notes", "", "reviewer notes to attach")

	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	undo, _ := cmd.Flags().GetBool("undo")
	notes, _ := cmd.Flags().GetString("notes")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.SetManuallyVerified(ctx, user, args[0], !undo, notes); err != nil {
		return err
	}

	if undo {
		slog.Info("Verification cleared", "transaction_id", args[0])
	} else {
		slog.Info("Transaction verified", "transaction_id", args[0])
	}
	return nil
}
