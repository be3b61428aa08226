package main

import (
	"fmt"
	"log/slog"

	"github.com/perabook/perabook/internal/review"
	"github.com/spf13/cobra"
)

func rejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <upload-id> <candidate-id>",
		Short: "Exclude a candidate from the upcoming approval",
		Long: `Mark a candidate as rejected. Rejected candidates are discarded
when the upload is approved instead of entering the ledger. Use --undo
to bring one back before approving.`,
		Args: cobra.ExactArgs(2),
		RunE: runReject,
	}

	cmd.Flags().Bool("undo", false, "clear the rejection instead of setting it")

	return cmd
}

func runReject(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	undo, _ := cmd.Flags().GetBool("undo")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	controller := review.NewController(store)
	if err := controller.SetRejected(ctx, user, args[0], args[1], !undo); err != nil {
		return err
	}

	if undo {
		slog.Info("Rejection cleared", "candidate_id", args[1])
	} else {
		slog.Info("Candidate rejected", "candidate_id", args[1])
	}
	return nil
}
