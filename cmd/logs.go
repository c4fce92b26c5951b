package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadflow/internal/model"
)

var (
	logsUser  string
	logsStage string
	logsLimit int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent processing log entries for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListProcessingLogs(cmd.Context(), model.LogFilter{
			UserID: logsUser,
			Stage:  model.Stage(logsStage),
			Limit:  logsLimit,
		})
		if err != nil {
			return err
		}
		return printLogs(cmd.OutOrStdout(), entries)
	},
}

func printLogs(out io.Writer, entries []model.ProcessingLogEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "no log entries")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTAGE\tSTATUS\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Stage,
			e.Status,
			oneLine(e.Message, 100),
		)
	}
	return w.Flush()
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

func init() {
	logsCmd.Flags().StringVar(&logsUser, "user", "", "user id (required)")
	logsCmd.Flags().StringVar(&logsStage, "stage", "", "only show one stage (blacklist, verification, enrichment, email)")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "maximum entries to show")
	_ = logsCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(logsCmd)
}
