package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dcat-harvester/internal/bbox"
	"github.com/sells-group/dcat-harvester/internal/coverage"
	"github.com/sells-group/dcat-harvester/internal/pipeline"
	"github.com/sells-group/dcat-harvester/internal/places"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Resolve the spatial coverage of one bounding box",
	Long: `Resolves a bounding box against a state's reference boundaries and prints the
places that contain, are within, or intersect it, followed by the Spatial
Coverage string a harvested record with that box would get.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		raw, _ := cmd.Flags().GetString("bbox")
		state, _ := cmd.Flags().GetString("state")
		code, _ := cmd.Flags().GetString("code")

		if raw == "" {
			return eris.New("coverage: --bbox is required")
		}
		if state == "" && code != "" {
			s, ok := pipeline.StateFor(code, cfg.Harvest.StateCodes)
			if !ok {
				return eris.Errorf("coverage: no state for portal code %q", code)
			}
			state = s
		}
		if state == "" {
			return eris.New("coverage: --state or --code is required")
		}

		box, err := bbox.Parse(raw)
		if err != nil {
			return eris.Wrap(err, "coverage")
		}
		if reason := box.Check(); reason != "" {
			return eris.Errorf("coverage: bounding box rejected: %s", reason)
		}

		source, closePlaces, err := openPlaces(ctx)
		if err != nil {
			return err
		}
		defer closePlaces()

		m, err := places.NewResolver(source).ResolveBox(ctx, state, box)
		if err != nil {
			return eris.Wrap(err, "coverage")
		}
		printCoverage(os.Stdout, box, m)
		return nil
	},
}

func init() {
	coverageCmd.Flags().String("bbox", "", "bounding box minX,minY,maxX,maxY")
	coverageCmd.Flags().String("state", "", "state name, e.g. Minnesota")
	coverageCmd.Flags().String("code", "", "portal code to map to a state instead of --state")
	rootCmd.AddCommand(coverageCmd)
}

func printCoverage(out io.Writer, box bbox.Box, m places.Match) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Box:\t%s\n", box.Key())
	for _, rel := range places.Relations {
		_, _ = fmt.Fprintf(w, "%s:\t%s\n", rel, joinPlaces(m.Get(rel)))
	}
	_, _ = fmt.Fprintf(w, "Coverage:\t%s\n", coverage.Format(coverage.Select(m)))
	_ = w.Flush()
}

func joinPlaces(ps []places.Place) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name + ", " + p.State
	}
	return strings.Join(names, "; ")
}
