package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
	"github.com/jimmystridh/whisperx-transcription/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var all bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed transcriptions",
		Long: "List completed transcriptions from the daemon's history file. " +
			"The daemon keeps the most recent 50 records; --all reads the local " +
			"archive instead, which retains everything ever observed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()

			var records []api.Transcript
			if all {
				if !cfg.Archive.Enabled {
					return fmt.Errorf("archive is disabled in the configuration")
				}
				archive, err := history.OpenArchive(cfg.Archive.Path)
				if err != nil {
					return fmt.Errorf("open archive: %w", err)
				}
				defer archive.Close()
				records, err = archive.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
			} else {
				fromFile, err := api.ReadHistorySnapshot(cfg.Paths.HistoryFile)
				if err != nil {
					return err
				}
				reconciler := history.NewReconciler(ctx.loggerValue())
				reconciler.Merge(fromFile)
				records = reconciler.Records()
				if limit > 0 && len(records) > limit {
					records = records[:limit]
				}
			}

			if len(records) == 0 {
				fmt.Fprintln(stdout, "No transcriptions recorded")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				result := "ok"
				if !record.Success {
					result = "failed"
					if record.Error != "" {
						result = "failed: " + record.Error
					}
				}
				rows = append(rows, []string{
					formatCompletedAt(record),
					record.OriginalFilename,
					languageName(record.Language),
					formatDuration(record.DurationSeconds),
					strconv.Itoa(record.SpeakerCount),
					result,
				})
			}

			table := renderTable(
				[]string{"Completed", "File", "Language", "Duration", "Speakers", "Result"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			)
			fmt.Fprintln(stdout, table)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum records to show (0 for no limit)")
	cmd.Flags().BoolVar(&all, "all", false, "Read the local archive instead of the daemon history file")
	return cmd
}

func formatCompletedAt(record api.Transcript) string {
	ts, ok := record.CompletedTime()
	if !ok {
		return record.CompletedAt
	}
	return ts.Format("2006-01-02 15:04")
}

// languageName renders an ISO language tag as its English display name,
// falling back to the raw tag when it does not parse.
func languageName(tag string) string {
	if tag == "" {
		return "-"
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	name := display.English.Languages().Name(parsed)
	if name == "" {
		return tag
	}
	return name
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	minutes := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm%02ds", minutes, secs)
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}
