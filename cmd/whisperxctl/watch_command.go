package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jimmystridh/whisperx-transcription/internal/monitor"
	"github.com/jimmystridh/whisperx-transcription/internal/status"
)

// newWatchCommand builds the live view: the full monitoring pipeline runs in
// the foreground and prints one line per reconciled state change until
// interrupted.
func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow transcription status live",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mon := monitor.New(cfg, ctx.loggerValue())
			mon.SubscribeStatus(func(st status.State) {
				printWatchLine(stdout, st, colorize)
			})

			if err := mon.Start(runCtx); err != nil {
				return err
			}
			defer mon.Stop()

			printWatchLine(stdout, mon.Status(), colorize)

			<-runCtx.Done()
			fmt.Fprintln(stdout)
			return nil
		},
	}
}

func printWatchLine(w io.Writer, st status.State, colorize bool) {
	stamp := time.Now().Format("15:04:05")
	label, kind := watchLabel(st.Status)

	var detail strings.Builder
	switch st.Status {
	case status.StatusTranscribing:
		detail.WriteString(st.Filename)
		detail.WriteString("  ")
		detail.WriteString(stageOrDefault(st.Stage))
		detail.WriteString(" ")
		detail.WriteString(formatPercent(st.Percent))
	case status.StatusError:
		if st.Message != "" {
			detail.WriteString(st.Message)
		} else {
			detail.WriteString("unknown error")
		}
	case status.StatusIdle:
		if n := len(st.Queue); n > 0 {
			fmt.Fprintf(&detail, "%d queued", n)
		}
	}

	line := fmt.Sprintf("%s  %-13s %s", stamp, label, detail.String())
	if colorize {
		if color := statusKindColor(kind); color != "" {
			line = color + line + ansiReset
		}
	}
	fmt.Fprintln(w, strings.TrimRight(line, " "))
}

func watchLabel(s status.Status) (string, statusKind) {
	switch s {
	case status.StatusTranscribing:
		return "TRANSCRIBING", statusOK
	case status.StatusError:
		return "ERROR", statusError
	case status.StatusIdle:
		return "IDLE", statusInfo
	default:
		return "DISCONNECTED", statusWarn
	}
}
