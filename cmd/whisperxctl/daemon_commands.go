package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the transcription daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			supervisor, err := ctx.supervisor()
			if err != nil {
				return err
			}

			if st := supervisor.Status(); st.Running {
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", st.PID)
				return nil
			}

			st, err := supervisor.Start(cmd.Context())
			if err != nil {
				return err
			}
			if st.Running {
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", st.PID)
			} else {
				fmt.Fprintln(stdout, "Daemon launched but not yet confirmed running; check the daemon log")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the transcription daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			supervisor, err := ctx.supervisor()
			if err != nil {
				return err
			}

			if st := supervisor.Status(); !st.Running {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}

			st, err := supervisor.Stop(cmd.Context())
			if err != nil {
				return err
			}
			if st.Running {
				fmt.Fprintf(stdout, "Daemon (pid %d) has not exited yet; it may still be finishing a job\n", st.PID)
			} else {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the transcription daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			supervisor, err := ctx.supervisor()
			if err != nil {
				return err
			}

			st, err := supervisor.Restart(cmd.Context())
			if err != nil {
				return err
			}
			if st.Running {
				fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", st.PID)
			} else {
				fmt.Fprintln(stdout, "Daemon relaunched but not yet confirmed running; check the daemon log")
			}
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd}
}
