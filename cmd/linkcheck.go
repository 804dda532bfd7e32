package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dcat-harvester/internal/linkcheck"
	"github.com/sells-group/dcat-harvester/internal/model"
	"github.com/sells-group/dcat-harvester/internal/report"
)

var linkcheckCmd = &cobra.Command{
	Use:   "linkcheck <allNewItems.csv>",
	Short: "Check the download links of an added-items report",
	Long: `Requests the download link of every row in an added-items CSV report and
prints how many fall in each result category. With --write, rows whose links
are dead are removed from the report.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		write, _ := cmd.Flags().GetBool("write")
		showFailures, _ := cmd.Flags().GetBool("failures")

		rows, err := readAddedReport(args[0])
		if err != nil {
			return err
		}

		kept, results, sum, err := newChecker().Run(ctx, rows)
		if err != nil {
			return eris.Wrap(err, "linkcheck")
		}

		printLinkSummary(os.Stdout, sum)
		if showFailures {
			printFailures(os.Stdout, results)
		}
		if write {
			dir, name := filepath.Split(args[0])
			sink := &report.CSVSink{Dir: dir}
			if _, err := sink.Write(strings.TrimSuffix(name, ".csv"), kept); err != nil {
				return eris.Wrap(err, "linkcheck: rewrite report")
			}
			fmt.Printf("Kept %d of %d rows in %s\n", len(kept), len(rows), args[0])
		}
		return nil
	},
}

func init() {
	linkcheckCmd.Flags().Bool("write", false, "rewrite the report without rows whose links are dead")
	linkcheckCmd.Flags().Bool("failures", false, "list every link that did not check OK")
	rootCmd.AddCommand(linkcheckCmd)
}

func readAddedReport(path string) ([]model.MetadataRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "linkcheck: read %s", path)
	}
	var rows []model.MetadataRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "linkcheck: decode %s", path)
	}
	return rows, nil
}

func printLinkSummary(out io.Writer, sum linkcheck.Summary) {
	_, _ = fmt.Fprintf(out, "Checked %d links in %s\n", sum.Total, sum.Elapsed.Round(time.Millisecond))
	for _, line := range sum.Lines() {
		_, _ = fmt.Fprintf(out, "  %s\n", line)
	}
}

func printFailures(out io.Writer, results []linkcheck.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SLUG\tCATEGORY\tSTATUS\tURL")
	for _, r := range results {
		if r.Category == linkcheck.OK {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Slug, r.Category, r.Status, r.URL)
	}
	_ = w.Flush()
}
