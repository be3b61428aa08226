package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/perabook/perabook/internal/cli"
	"github.com/spf13/cobra"
)

func uploadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "Manage submitted documents",
	}

	cmd.AddCommand(uploadsListCmd())
	cmd.AddCommand(uploadsDeleteCmd())

	return cmd
}

func uploadsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your uploads, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			uploads, err := store.ListUploads(ctx, user)
			if err != nil {
				return err
			}

			cli.RenderUploadList(os.Stdout, uploads)
			return nil
		},
	}
}

func uploadsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <upload-id>",
		Short: "Remove an upload from your listings",
		Long: `Soft-delete an upload. The record and any transactions already
approved from it are retained, but the upload no longer appears in
listings and cannot be extracted or reviewed.`,
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

			if err := store.SoftDeleteUpload(ctx, user, args[0]); err != nil {
				return err
			}

			slog.Info("Upload deleted", "upload_id", args[0])
			return nil
		},
	}
}
