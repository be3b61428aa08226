package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/perabook/perabook/internal/cli"
	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/review"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func approveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <upload-id>",
		Short: "Approve staged candidates into the permanent ledger",
		Long: `Approve an upload that is awaiting review. Accepted candidates
become permanent ledger transactions and the staging area is cleared,
all in one step. Rejected candidates are discarded.

Last-second corrections can be supplied as a JSON file keyed by
candidate id:

  {"c1": {"category": "utilities", "description": "Meralco bill"}}

If any correction or candidate fails validation, nothing is committed.`,
		Args: cobra.ExactArgs(1),
		RunE: runApprove,
	}

	cmd.Flags().StringSlice("reject", []string{}, "candidate ids to discard (comma-separated)")
	cmd.Flags().String("patches", "", "JSON file with per-candidate corrections")

	return cmd
}

// approvePatch is the JSON shape of one correction in a --patches file.
type approvePatch struct {
	Amount       *string `json:"amount,omitempty"`
	Description  *string `json:"description,omitempty"`
	Kind         *string `json:"kind,omitempty"`
	Category     *string `json:"category,omitempty"`
	Counterparty *string `json:"counterparty,omitempty"`
}

func runApprove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	rejected, _ := cmd.Flags().GetStringSlice("reject")
	patchFile, _ := cmd.Flags().GetString("patches")

	req := review.ApprovalRequest{RejectedIDs: rejected}
	if patchFile != "" {
		patches, err := loadPatches(patchFile)
		if err != nil {
			return err
		}
		req.Patches = patches
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	controller := review.NewController(store)
	result, err := controller.Approve(ctx, user, args[0], req)
	if err != nil {
		var failures *common.ValidationFailures
		if errors.As(err, &failures) {
			slog.Error("Approval blocked; nothing was committed")
			for _, f := range failures.Failures {
				slog.Error("invalid candidate", "candidate_id", f.RecordID, "field", f.Field, "reason", f.Reason)
			}
		}
		return err
	}

	fmt.Fprintln(os.Stdout, cli.FormatSuccess(fmt.Sprintf(
		"✓ Approved %d transactions into the ledger (%d rejected)",
		result.ApprovedCount, result.RejectedCount)))

	transactions, err := store.GetCommittedByUpload(ctx, result.UploadID)
	if err != nil {
		return err
	}
	cli.RenderLedger(os.Stdout, transactions)
	return nil
}

func loadPatches(path string) (map[string]model.CandidatePatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patches file: %w", err)
	}

	var raw map[string]approvePatch
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid patches file: %w", err)
	}

	patches := make(map[string]model.CandidatePatch, len(raw))
	for id, p := range raw {
		var patch model.CandidatePatch
		if p.Amount != nil {
			amount, err := decimal.NewFromString(*p.Amount)
			if err != nil {
				return nil, fmt.Errorf("candidate %s: invalid amount %q: %w", id, *p.Amount, err)
			}
			patch.Amount = &amount
		}
		patch.Description = p.Description
		if p.Kind != nil {
			kind := model.TransactionKind(*p.Kind)
			patch.Kind = &kind
		}
		patch.Category = p.Category
		patch.Counterparty = p.Counterparty
		patches[id] = patch
	}

	return patches, nil
}
