package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
	"github.com/jimmystridh/whisperx-transcription/internal/snapshot"
)

func newDismissCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss",
		Short: "Clear a reported daemon error",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()

			state, err := api.ReadStateSnapshot(cfg.Paths.StateFile)
			if err != nil {
				return err
			}
			if state == nil || state.Status != api.DaemonError {
				fmt.Fprintln(stdout, "No error to dismiss")
				return nil
			}

			if err := snapshot.DismissError(cmd.Context(), ctx.snapshotPaths()); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Error dismissed")
			return nil
		},
	}
}
