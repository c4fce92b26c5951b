package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

var statsUser string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the dashboard aggregates from a user's last run",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ds, err := st.GetDashboardStats(cmd.Context(), statsUser)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
			}
			return err
		}
		return printStats(cmd.OutOrStdout(), ds)
	},
}

func printStats(out io.Writer, ds *model.DashboardStats) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "last processed\t%s\n", ds.LastProcessed.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "total leads\t%d\n", ds.TotalLeads)
	fmt.Fprintf(w, "processed\t%d\n", ds.ProcessedLeads)
	fmt.Fprintf(w, "emails sent\t%d\n", ds.EmailsSent)
	fmt.Fprintf(w, "success rate\t%.1f%%\n", ds.SuccessRate)
	fmt.Fprintf(w, "blacklist size\t%d\n", ds.BlacklistCount)
	fmt.Fprintf(w, "contacts loaded\t%d\n", ds.ContactsCount)
	return w.Flush()
}

func init() {
	statsCmd.Flags().StringVar(&statsUser, "user", "", "user id (required)")
	_ = statsCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(statsCmd)
}
