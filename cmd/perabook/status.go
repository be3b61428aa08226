package main

import (
	"fmt"
	"os"

	"github.com/perabook/perabook/internal/cli"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <upload-id>",
		Short: "Show the lifecycle state of an upload",
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

			upload, err := store.GetUpload(ctx, user, args[0])
			if err != nil {
				return err
			}

			cli.RenderUpload(os.Stdout, upload)
			return nil
		},
	}
}
