package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "config.yaml"
	localConfigPath   = "config_local.yaml"

	configPathEnv = "CACHE_SCANNER_CONFIG"
	csvSourceEnv  = "CACHE_SCANNER_CSV"
	historyDSNEnv = "DATABASE_DSN"
	purgeTokenEnv = "CACHE_SCANNER_PURGE_TOKEN"
)

// Bounds enforced on the checker core; a violation aborts before scheduling.
const (
	MaxConcurrency = 20
	MaxAttemptsCap = 5
)

// Config holds all settings required across the application.
type Config struct {
	CSV     CSVConfig     `yaml:"csv"`
	Columns []string      `yaml:"columns"`
	Checker CheckerConfig `yaml:"checker"`
	Purge   PurgeConfig   `yaml:"purge"`
	History HistoryConfig `yaml:"history"`
	Recheck RecheckConfig `yaml:"recheck"`
	Logging LoggingConfig `yaml:"logging"`
}

// CSVConfig locates the tabular input and output.
type CSVConfig struct {
	Source string `yaml:"source"`
	Output string `yaml:"output"`
}

// CheckerConfig drives the per-URL workflow and the scheduler.
type CheckerConfig struct {
	MaxConcurrent        int      `yaml:"maxConcurrent"`
	MaxAttempts          int      `yaml:"maxAttempts"`
	RetryDelay           string   `yaml:"retryDelay"`
	SettleDelay          string   `yaml:"settleDelay"`
	ProbeTimeout         string   `yaml:"probeTimeout"`
	FetchTimeout         string   `yaml:"fetchTimeout"`
	WarmOnMiss           bool     `yaml:"warmOnMiss"`
	WarnOnWarmMiss       bool     `yaml:"warnOnWarmMiss"`
	RetryOnUnknown       bool     `yaml:"retryOnUnknown"`
	KeepPayload          bool     `yaml:"keepPayload"`
	DownloadDir          string   `yaml:"downloadDir"`
	MissingCell          string   `yaml:"missingCell"`
	RetryStatusAllowlist []int    `yaml:"retryStatusAllowlist"`
	ExpiredRecentWindow  string   `yaml:"expiredRecentWindow"`
	HTMLAllowedColumns   []string `yaml:"htmlAllowedColumns"`
	Vendor               string   `yaml:"vendor"`

	retryDelay    time.Duration `yaml:"-"`
	settleDelay   time.Duration `yaml:"-"`
	probeTimeout  time.Duration `yaml:"-"`
	fetchTimeout  time.Duration `yaml:"-"`
	expiredRecent time.Duration `yaml:"-"`
}

// RetryDelayDuration returns the parsed fixed retry delay.
func (c CheckerConfig) RetryDelayDuration() time.Duration { return c.retryDelay }

// SettleDelayDuration returns the parsed warm-on-miss settle delay.
func (c CheckerConfig) SettleDelayDuration() time.Duration { return c.settleDelay }

// ProbeTimeoutDuration returns the parsed probe request timeout.
func (c CheckerConfig) ProbeTimeoutDuration() time.Duration { return c.probeTimeout }

// FetchTimeoutDuration returns the parsed full-fetch timeout.
func (c CheckerConfig) FetchTimeoutDuration() time.Duration { return c.fetchTimeout }

// ExpiredRecentDuration returns the window in which an EXPIRED entry is still
// treated like a HIT for validation purposes.
func (c CheckerConfig) ExpiredRecentDuration() time.Duration { return c.expiredRecent }

// PurgeConfig wires the CDN control API for cache invalidation.
type PurgeConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	ZoneID     string `yaml:"zoneId"`
	APIToken   string `yaml:"apiToken"`
	MaxPerCall int    `yaml:"maxPerCall"`
}

// HistoryConfig enables optional Postgres scan-history persistence.
type HistoryConfig struct {
	DSN string `yaml:"dsn"`
}

// RecheckConfig enables the optional recent-HIT store.
type RecheckConfig struct {
	Path   string `yaml:"path"`
	Within string `yaml:"within"`

	within time.Duration `yaml:"-"`
}

// WithinDuration returns the parsed freshness window.
func (c RecheckConfig) WithinDuration() time.Duration { return c.within }

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration, applies the local override file and
// environment overrides, and validates the result.
func Load() (Config, error) {
	cfg := defaultConfig()

	path := defaultConfigPath
	if v := os.Getenv(configPathEnv); v != "" {
		path = v
	}

	if err := mergeFile(&cfg, path, path != defaultConfigPath); err != nil {
		return Config{}, err
	}
	if err := mergeFile(&cfg, localConfigPath, false); err != nil {
		return Config{}, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(csvSourceEnv); v != "" {
		c.CSV.Source = v
	}
	if v := os.Getenv(historyDSNEnv); v != "" {
		c.History.DSN = v
	}
	if v := os.Getenv(purgeTokenEnv); v != "" {
		c.Purge.APIToken = v
	}
}

// Validate checks batch-level configuration. Any error here is fatal before
// scheduling.
func (c *Config) Validate() error {
	if c.CSV.Source == "" {
		return fmt.Errorf("config: csv.source is required")
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("config: at least one column is required")
	}
	if c.Checker.MaxConcurrent < 1 || c.Checker.MaxConcurrent > MaxConcurrency {
		return fmt.Errorf("config: checker.maxConcurrent %d out of range [1, %d]", c.Checker.MaxConcurrent, MaxConcurrency)
	}
	if c.Checker.MaxAttempts < 0 || c.Checker.MaxAttempts > MaxAttemptsCap {
		return fmt.Errorf("config: checker.maxAttempts %d out of range [0, %d]", c.Checker.MaxAttempts, MaxAttemptsCap)
	}
	switch c.Checker.MissingCell {
	case "skip", "error":
	default:
		return fmt.Errorf("config: checker.missingCell must be skip or error, got %q", c.Checker.MissingCell)
	}
	if c.Purge.Enabled {
		if c.Purge.ZoneID == "" || c.Purge.APIToken == "" {
			return fmt.Errorf("config: purge.zoneId and purge.apiToken are required when purge is enabled")
		}
		if c.Purge.MaxPerCall < 1 {
			return fmt.Errorf("config: purge.maxPerCall must be positive")
		}
	}

	var err error
	if c.Checker.retryDelay, err = parseDuration("checker.retryDelay", c.Checker.RetryDelay); err != nil {
		return err
	}
	if c.Checker.settleDelay, err = parseDuration("checker.settleDelay", c.Checker.SettleDelay); err != nil {
		return err
	}
	if c.Checker.probeTimeout, err = parseDuration("checker.probeTimeout", c.Checker.ProbeTimeout); err != nil {
		return err
	}
	if c.Checker.fetchTimeout, err = parseDuration("checker.fetchTimeout", c.Checker.FetchTimeout); err != nil {
		return err
	}
	if c.Checker.expiredRecent, err = parseDuration("checker.expiredRecentWindow", c.Checker.ExpiredRecentWindow); err != nil {
		return err
	}
	if c.Recheck.Path != "" {
		if c.Recheck.within, err = parseDuration("recheck.within", c.Recheck.Within); err != nil {
			return err
		}
	}
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("config: %s is required", field)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", field)
	}
	return d, nil
}

func defaultConfig() Config {
	return Config{
		CSV: CSVConfig{
			Output: "checked.csv",
		},
		Columns: []string{"url"},
		Checker: CheckerConfig{
			MaxConcurrent:        5,
			MaxAttempts:          2,
			RetryDelay:           "2s",
			SettleDelay:          "1s",
			ProbeTimeout:         "15s",
			FetchTimeout:         "60s",
			WarmOnMiss:           true,
			RetryOnUnknown:       false,
			KeepPayload:          false,
			DownloadDir:          "downloads",
			MissingCell:          "skip",
			RetryStatusAllowlist: []int{429},
			ExpiredRecentWindow:  "1h",
			Vendor:               "cloudflare",
		},
		Purge: PurgeConfig{
			Endpoint:   "https://api.cloudflare.com/client/v4",
			MaxPerCall: 30,
		},
		Recheck: RecheckConfig{
			Within: "24h",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
