package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/perabook/perabook/internal/cli"
	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/review"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <upload-id> <candidate-id>",
		Short: "Correct a staged candidate before approval",
		Long: `Overwrite fields on a candidate transaction while the upload is
awaiting review. Only the flags you pass are changed; a manually set
category is preserved through later AI categorization.`,
		Args: cobra.ExactArgs(2),
		RunE: runEdit,
	}

	cmd.Flags().String("amount", "", "transaction amount, e.g. 1250.50")
	cmd.Flags().String("description", "", "transaction description")
	cmd.Flags().String("kind", "", "transaction kind (expense, income, transfer_in, transfer_out, fee, refund)")
	cmd.Flags().String("category", "", "spending category")
	cmd.Flags().String("counterparty", "", "merchant or counterparty name")

	return cmd
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	patch, err := patchFromFlags(cmd)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	controller := review.NewController(store)
	candidate, err := controller.EditCandidate(ctx, user, args[0], args[1], patch)
	if err != nil {
		return err
	}

	slog.Info("Candidate updated", "candidate_id", candidate.ID)
	cli.RenderCandidates(os.Stdout, []model.CandidateTransaction{*candidate})
	return nil
}

func patchFromFlags(cmd *cobra.Command) (model.CandidatePatch, error) {
	var patch model.CandidatePatch

	if cmd.Flags().Changed("amount") {
		raw, _ := cmd.Flags().GetString("amount")
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return patch, fmt.Errorf("invalid amount %q: %w", raw, err)
		}
		patch.Amount = &amount
	}
	if cmd.Flags().Changed("description") {
		desc, _ := cmd.Flags().GetString("description")
		patch.Description = &desc
	}
	if cmd.Flags().Changed("kind") {
		raw, _ := cmd.Flags().GetString("kind")
		kind := model.TransactionKind(raw)
		patch.Kind = &kind
	}
	if cmd.Flags().Changed("category") {
		category, _ := cmd.Flags().GetString("category")
		patch.Category = &category
	}
	if cmd.Flags().Changed("counterparty") {
		counterparty, _ := cmd.Flags().GetString("counterparty")
		patch.Counterparty = &counterparty
	}

	return patch, nil
}
