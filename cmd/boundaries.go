package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/boundary"
	"github.com/sells-group/dcat-harvester/internal/db"
)

var boundariesCmd = &cobra.Command{
	Use:   "boundaries",
	Short: "Manage the reference place boundaries",
}

var boundariesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import Census TIGER/Line places and counties",
	Long: `Downloads TIGER/Line PLACE and COUNTY shapefiles, writes per-state city and
county GeoJSON files under the boundaries directory, and optionally loads them
into PostGIS.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		states, _ := cmd.Flags().GetString("states")
		year, _ := cmd.Flags().GetInt("year")
		full, _ := cmd.Flags().GetBool("full-geometry")
		postgis, _ := cmd.Flags().GetBool("postgis")

		if year == 0 {
			year = cfg.Boundaries.TigerYear
		}
		opts := boundary.Options{
			Year:         year,
			BaseURL:      cfg.Boundaries.TigerBaseURL,
			TempDir:      cfg.Boundaries.TempDir,
			OutDir:       cfg.Harvest.Path(cfg.Boundaries.Dir),
			States:       splitAndTrim(states),
			FullGeometry: full,
		}

		var pool db.Pool
		if postgis {
			p, err := db.Open(ctx, cfg.Boundaries.DatabaseURL)
			if err != nil {
				return eris.Wrap(err, "boundaries import")
			}
			defer p.Close()
			pool = p
		}

		m, err := boundary.NewImporter(newFetcher(), pool).Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "boundaries import")
		}
		zap.L().Info("boundary import complete", zap.Int("year", year), zap.Int("states", len(m.States)))
		printManifest(os.Stdout, m)
		return nil
	},
}

var boundariesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the imported reference boundaries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := boundary.ReadManifest(cfg.Harvest.Path(cfg.Boundaries.Dir))
		if err != nil {
			return eris.Wrap(err, "boundaries status")
		}
		if len(m.States) == 0 {
			fmt.Println("No boundaries imported yet")
			return nil
		}
		printManifest(os.Stdout, m)
		return nil
	},
}

func init() {
	boundariesImportCmd.Flags().String("states", "", "comma-separated state names or FIPS codes (default: all 50 + DC)")
	boundariesImportCmd.Flags().Int("year", 0, "TIGER/Line year (default: boundaries.tiger_year)")
	boundariesImportCmd.Flags().Bool("full-geometry", false, "keep place polygons instead of their bounding envelopes")
	boundariesImportCmd.Flags().Bool("postgis", false, "also load the boundaries into boundaries.database_url")
	boundariesCmd.AddCommand(boundariesImportCmd, boundariesStatusCmd)
	rootCmd.AddCommand(boundariesCmd)
}

func printManifest(out io.Writer, m *boundary.Manifest) {
	_, _ = fmt.Fprintf(out, "TIGER/Line %d, full geometry: %t, updated %s\n",
		m.Year, m.FullGeometry, m.UpdatedAt.Format("2006-01-02 15:04"))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATE\tFIPS\tCITIES\tCOUNTIES")
	for _, s := range m.States {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", s.State, s.FIPS, s.Cities, s.Counties)
	}
	_ = w.Flush()
}
