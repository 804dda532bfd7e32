package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dcat-harvester",
	Short: "Harvest DCAT open-data portals into metadata reports",
	Long: `dcat-harvester keeps a daily snapshot of every portal's data.json and
reports what changed since the previous one: new records with their
Spatial Coverage resolved against Census place boundaries, removed records,
and per-portal totals.

Settings come from config.yaml (or --config) and HARVEST_* environment
variables, e.g. HARVEST_HARVEST_BASE_DIR or HARVEST_LOG_LEVEL.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./config.yaml when present)")
	rootCmd.PersistentFlags().String("log-level", "", "override log.level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		c.Log.Level = level
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if err := config.InitLogger(c.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg = c
	zap.L().Debug("config loaded",
		zap.String("file", path),
		zap.String("base_dir", c.Harvest.BaseDir),
		zap.String("boundaries", c.Boundaries.Driver),
	)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
