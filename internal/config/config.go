package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Harvest    HarvestConfig    `yaml:"harvest" mapstructure:"harvest"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	LinkCheck  LinkCheckConfig  `yaml:"linkcheck" mapstructure:"linkcheck"`
	Boundaries BoundariesConfig `yaml:"boundaries" mapstructure:"boundaries"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// HarvestConfig configures catalog harvesting and report output.
type HarvestConfig struct {
	BaseDir           string            `yaml:"base_dir" mapstructure:"base_dir"`
	JSONsDir          string            `yaml:"jsons_dir" mapstructure:"jsons_dir"`
	ReportsDir        string            `yaml:"reports_dir" mapstructure:"reports_dir"`
	PortalFile        string            `yaml:"portal_file" mapstructure:"portal_file"`
	IdentifierBaseURL string            `yaml:"identifier_base_url" mapstructure:"identifier_base_url"`
	ActionDate        string            `yaml:"action_date" mapstructure:"action_date"`
	ReportFormat      string            `yaml:"report_format" mapstructure:"report_format"`
	WriteRejected     bool              `yaml:"write_rejected" mapstructure:"write_rejected"`
	StateCodes        map[string]string `yaml:"state_codes" mapstructure:"state_codes"`
}

// FetchConfig configures the catalog HTTP client.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// LinkCheckConfig configures download-link verification of added rows.
type LinkCheckConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Attempts    int     `yaml:"attempts" mapstructure:"attempts"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// BoundariesConfig configures the place boundary reference data.
type BoundariesConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"`
	Dir          string `yaml:"dir" mapstructure:"dir"`
	DatabaseURL  string `yaml:"database_url" mapstructure:"database_url"`
	TigerYear    int    `yaml:"tiger_year" mapstructure:"tiger_year"`
	TigerBaseURL string `yaml:"tiger_base_url" mapstructure:"tiger_base_url"`
	TempDir      string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// LedgerConfig configures the SQLite run history.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// MonitoringConfig configures post-harvest alerting and metrics. Alerts are
// only sent when WebhookURL is set; metrics are only written when
// TextfilePath is set.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	TextfilePath          string  `yaml:"textfile_path" mapstructure:"textfile_path"`
	LookbackRuns          int     `yaml:"lookback_runs" mapstructure:"lookback_runs"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	SkippedPortalsAlert   int     `yaml:"skipped_portals_alert" mapstructure:"skipped_portals_alert"`
	DeadLinkRateThreshold float64 `yaml:"dead_link_rate_threshold" mapstructure:"dead_link_rate_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultStateCodes maps portal codes (or their two-character prefix) to the
// state whose boundary files cover the portal.
func DefaultStateCodes() map[string]string {
	return map[string]string{
		"01":     "Indiana",
		"02":     "Illinois",
		"03":     "Iowa",
		"04":     "Maryland",
		"04c-01": "District of Columbia",
		"04f-01": "04f-01",
		"05":     "Minnesota",
		"06":     "Michigan",
		"07":     "Michigan",
		"08":     "Pennsylvania",
		"09":     "Indiana",
		"10":     "Wisconsin",
		"11":     "Ohio",
		"12":     "Nebraska",
		"99":     "Esri",
	}
}

// Load reads configuration from ./config.yaml, if present, and the
// environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path and the environment. An empty path
// looks for an optional config.yaml in the working directory; a named file
// must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, eris.Wrapf(err, "config: open %s", path)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("harvest.base_dir", ".")
	v.SetDefault("harvest.jsons_dir", "jsons")
	v.SetDefault("harvest.reports_dir", "reports")
	v.SetDefault("harvest.portal_file", "arcPortals.csv")
	v.SetDefault("harvest.identifier_base_url", "https://hub.arcgis.com/datasets/")
	v.SetDefault("harvest.report_format", "csv")
	v.SetDefault("harvest.write_rejected", true)
	v.SetDefault("harvest.state_codes", DefaultStateCodes())
	v.SetDefault("fetch.user_agent", "dcat-harvester/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_sec", 5.0)
	v.SetDefault("linkcheck.enabled", true)
	v.SetDefault("linkcheck.timeout_secs", 3)
	v.SetDefault("linkcheck.attempts", 3)
	v.SetDefault("linkcheck.concurrency", 8)
	v.SetDefault("linkcheck.rate_per_sec", 10.0)
	v.SetDefault("boundaries.driver", "file")
	v.SetDefault("boundaries.dir", "geojsons")
	v.SetDefault("boundaries.tiger_year", 2024)
	v.SetDefault("boundaries.tiger_base_url", "https://www2.census.gov/geo/tiger")
	v.SetDefault("boundaries.temp_dir", "/tmp/dcat-harvester")
	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.path", "harvest.db")
	v.SetDefault("monitoring.lookback_runs", 10)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.skipped_portals_alert", 1)
	v.SetDefault("monitoring.dead_link_rate_threshold", 0.25)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// An empty state_codes block in config.yaml clears the default.
	if len(cfg.Harvest.StateCodes) == 0 {
		cfg.Harvest.StateCodes = DefaultStateCodes()
	}

	return &cfg, nil
}

// Validate checks enum values and required paths.
func (c *Config) Validate() error {
	switch c.Harvest.ReportFormat {
	case "csv", "xlsx":
	default:
		return eris.Errorf("config: harvest.report_format must be csv or xlsx, got %q", c.Harvest.ReportFormat)
	}
	switch c.Boundaries.Driver {
	case "file":
		if c.Boundaries.Dir == "" {
			return eris.New("config: boundaries.dir is required for the file driver")
		}
	case "postgis":
		if c.Boundaries.DatabaseURL == "" {
			return eris.New("config: boundaries.database_url is required for the postgis driver")
		}
	default:
		return eris.Errorf("config: boundaries.driver must be file or postgis, got %q", c.Boundaries.Driver)
	}
	if c.Harvest.PortalFile == "" {
		return eris.New("config: harvest.portal_file is required")
	}
	if c.Harvest.ActionDate != "" && !isDate(c.Harvest.ActionDate) {
		return eris.Errorf("config: harvest.action_date must be YYYYMMDD, got %q", c.Harvest.ActionDate)
	}
	return nil
}

// Path resolves p against the harvest base directory unless it is absolute.
func (c HarvestConfig) Path(p string) string {
	if filepath.IsAbs(p) || c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

func isDate(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
