package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
)

// newStatusCommand builds the one-shot status view. It reads the daemon's
// state files directly and probes the PID file, so it works whether or not
// the daemon is up.
func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and transcription status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			supervisor, err := ctx.supervisor()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon Process", colorize) {
				fmt.Fprintln(stdout, line)
			}
			proc := supervisor.Status()
			if proc.Running {
				fmt.Fprintln(stdout, renderStatusLine("Process", statusOK, fmt.Sprintf("running (pid %d)", proc.PID), colorize))
			} else if proc.PID > 0 {
				fmt.Fprintln(stdout, renderStatusLine("Process", statusWarn, fmt.Sprintf("not running (stale pid file: %d)", proc.PID), colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Process", statusWarn, "not running", colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Transcription", colorize) {
				fmt.Fprintln(stdout, line)
			}

			state, err := api.ReadStateSnapshot(cfg.Paths.StateFile)
			if err != nil {
				fmt.Fprintln(stdout, renderStatusLine("State", statusError, err.Error(), colorize))
				return nil
			}
			if state == nil {
				fmt.Fprintln(stdout, renderStatusLine("State", statusInfo, "no state file; the daemon has not run yet", colorize))
				return nil
			}

			switch state.Status {
			case api.DaemonTranscribing:
				fmt.Fprintln(stdout, renderStatusLine("State", statusOK, "transcribing", colorize))
				if state.Current != nil {
					fmt.Fprintln(stdout, renderStatusLine("File", statusInfo, state.Current.Filename, colorize))
					fmt.Fprintln(stdout, renderStatusLine("Stage", statusInfo, stageOrDefault(state.Current.Stage), colorize))
					fmt.Fprintln(stdout, renderStatusLine("Progress", statusInfo, formatPercent(state.Current.ProgressPercent), colorize))
				}
				progress, progErr := api.ReadProgressSnapshot(cfg.Paths.ProgressFile)
				if progErr == nil && progress != nil {
					detail := stageOrDefault(progress.Stage) + " " + formatPercent(progress.Percent)
					if progress.Detail != "" {
						detail += " (" + progress.Detail + ")"
					}
					fmt.Fprintln(stdout, renderStatusLine("Live progress", statusInfo, detail, colorize))
				}
			case api.DaemonError:
				message := state.ErrorMessage
				if message == "" {
					message = "unknown error"
				}
				fmt.Fprintln(stdout, renderStatusLine("State", statusError, message, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Hint", statusInfo, "clear with `whisperxctl dismiss`", colorize))
			default:
				fmt.Fprintln(stdout, renderStatusLine("State", statusOK, "idle", colorize))
			}

			if len(state.Queue) > 0 {
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(stdout, line)
				}
				rows := make([][]string, 0, len(state.Queue))
				for i, name := range state.Queue {
					rows = append(rows, []string{strconv.Itoa(i + 1), name})
				}
				table := renderTable([]string{"#", "File"}, rows, []columnAlignment{alignRight, alignLeft})
				fmt.Fprintln(stdout, table)
			}
			return nil
		},
	}
}

func stageOrDefault(stage string) string {
	if stage == "" {
		return "working"
	}
	return stage
}

func formatPercent(value float64) string {
	return strconv.FormatFloat(value, 'f', 1, 64) + "%"
}
