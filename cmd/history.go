package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dcat-harvester/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent harvest runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		limit, _ := cmd.Flags().GetInt("limit")
		portals, _ := cmd.Flags().GetBool("portals")

		if !cfg.Ledger.Enabled {
			fmt.Println("Run ledger is disabled (ledger.enabled=false)")
			return nil
		}
		led, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		runs, err := led.Recent(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "history")
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet")
			return nil
		}
		formatHistory(os.Stdout, runs, portals)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 10, "maximum number of runs to show")
	historyCmd.Flags().Bool("portals", false, "show each run's per-portal counts")
	rootCmd.AddCommand(historyCmd)
}

func formatHistory(out io.Writer, runs []ledger.Run, portals bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tSTATUS\tPORTALS\tADDED\tREMOVED\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t-----\t-------\t-------\t--------")

	for _, r := range runs {
		added, removed := 0, 0
		for _, p := range r.Portals {
			added += p.Added
			removed += p.Removed
		}
		dur := "-"
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.ActionDate,
			r.Status,
			len(r.Portals),
			added,
			removed,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
		if portals {
			for _, p := range r.Portals {
				detail := fmt.Sprintf("%d/%d/%d", p.Total, p.Added, p.Removed)
				if p.Error != "" {
					detail = "error: " + p.Error
				}
				_, _ = fmt.Fprintf(w, "\t  %s\t%s\t\t\t\t\t\n", p.Portal, detail)
			}
		}
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "\t  error: %s\t\t\t\t\t\t\n", r.Error)
		}
	}
	_ = w.Flush()
}

// truncateID shortens a UUID to its first 8 characters for display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
