package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/monitoring"
	"github.com/sells-group/dcat-harvester/internal/pipeline"
	"github.com/sells-group/dcat-harvester/internal/portal"
	"github.com/sells-group/dcat-harvester/internal/report"
	"github.com/sells-group/dcat-harvester/internal/snapshot"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest every portal and write the day's reports",
	Long: `Fetches each portal's DCAT catalog, stores it as the day's snapshot, diffs it
against the latest earlier snapshot, and writes the added, removed, status,
and rejected bounding box reports for the action date.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		date, _ := cmd.Flags().GetString("date")
		names, _ := cmd.Flags().GetString("portals")
		skipLinks, _ := cmd.Flags().GetBool("skip-linkcheck")
		format, _ := cmd.Flags().GetString("format")

		if date == "" {
			date = cfg.Harvest.ActionDate
		}
		if date == "" {
			date = today()
		}
		if format == "" {
			format = cfg.Harvest.ReportFormat
		}

		all, err := portal.Load(cfg.Harvest.Path(cfg.Harvest.PortalFile))
		if err != nil {
			return eris.Wrap(err, "harvest: load portals")
		}
		portals := portal.Filter(all, splitAndTrim(names))
		if len(portals) == 0 {
			return eris.New("harvest: no portals selected")
		}

		store, err := snapshot.NewFileStore(cfg.Harvest.Path(cfg.Harvest.JSONsDir))
		if err != nil {
			return eris.Wrap(err, "harvest: snapshot store")
		}
		sink, err := report.NewSink(format, cfg.Harvest.Path(cfg.Harvest.ReportsDir))
		if err != nil {
			return eris.Wrap(err, "harvest: report sink")
		}
		source, closePlaces, err := openPlaces(ctx)
		if err != nil {
			return err
		}
		defer closePlaces()
		led, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer closeQuietly("ledger", led.Close)

		deps := pipeline.Deps{
			Catalogs:  newFetcher(),
			Snapshots: store,
			Places:    source,
			Sink:      sink,
			Ledger:    led,
		}
		if cfg.LinkCheck.Enabled {
			deps.Links = newChecker()
		}

		res, err := pipeline.New(deps).Run(ctx, pipeline.Options{
			Date:              date,
			Portals:           portals,
			SkipLinkCheck:     skipLinks,
			WriteRejected:     cfg.Harvest.WriteRejected,
			IdentifierBaseURL: cfg.Harvest.IdentifierBaseURL,
			StateCodes:        cfg.Harvest.StateCodes,
		})
		monitoring.AfterHarvest(context.WithoutCancel(ctx), cfg.Monitoring, led, date, res)
		if err != nil {
			return eris.Wrap(err, "harvest")
		}

		zap.L().Info("harvest finished", zap.String("run_id", res.RunID), zap.String("date", date))
		printHarvest(os.Stdout, res)
		return nil
	},
}

func init() {
	harvestCmd.Flags().String("date", "", "action date YYYYMMDD (default: harvest.action_date or today)")
	harvestCmd.Flags().String("portals", "", "comma-separated portal names to harvest (default: all)")
	harvestCmd.Flags().Bool("skip-linkcheck", false, "keep added rows without checking download links")
	harvestCmd.Flags().String("format", "", "report format: csv or xlsx (default: harvest.report_format)")
	rootCmd.AddCommand(harvestCmd)
}

func printHarvest(out io.Writer, res *pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PORTAL\tTOTAL\tNEW\tDELETED")
	for _, s := range res.Statuses {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", s.PortalName, s.Total, s.Added, s.Removed)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nAdded: %d  Removed: %d  Rejected boxes: %d  Dead links: %d\n",
		len(res.Added), len(res.Removed), len(res.Rejected), res.DeadLinks)
	if len(res.SkippedPortals) > 0 {
		_, _ = fmt.Fprintf(out, "Skipped portals: %v\n", res.SkippedPortals)
	}
	if len(res.SkippedStates) > 0 {
		_, _ = fmt.Fprintf(out, "States without boundaries: %v\n", res.SkippedStates)
	}
	if res.LinkSummary != nil {
		_, _ = fmt.Fprintln(out, "\nLink check:")
		for _, line := range res.LinkSummary.Lines() {
			_, _ = fmt.Fprintf(out, "  %s\n", line)
		}
	}

	names := make([]string, 0, len(res.Reports))
	for name := range res.Reports {
		names = append(names, name)
	}
	sort.Strings(names)
	_, _ = fmt.Fprintln(out, "\nReports:")
	for _, name := range names {
		_, _ = fmt.Fprintf(out, "  %s\n", res.Reports[name])
	}
}
