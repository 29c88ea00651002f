package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/rewired-gh/ratiosentry/internal/models"
	"github.com/rewired-gh/ratiosentry/internal/monitor"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Output   OutputConfig   `mapstructure:"output"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// InputConfig describes where observations are read from
type InputConfig struct {
	Format string `mapstructure:"format"` // csv or sqlite
	Path   string `mapstructure:"path"`
	Query  string `mapstructure:"query"` // sqlite only; must yield entity_id, category, period, value
}

// AnalysisConfig holds the rolling-baseline and thresholding parameters
type AnalysisConfig struct {
	WindowSize      int               `mapstructure:"window_size"`
	Lag             int               `mapstructure:"lag"`
	MinSamples      int               `mapstructure:"min_samples"`
	ZThreshold      float64           `mapstructure:"z_threshold"`
	SpreadFloor     float64           `mapstructure:"spread_floor"`
	MinTotalPeriods int               `mapstructure:"min_total_periods"` // 0 = lag + min_samples + 1
	WindowMode      string            `mapstructure:"window_mode"`       // available or calendar
	Workers         int               `mapstructure:"workers"`           // 0 = runtime.NumCPU()
	Categories      []string          `mapstructure:"categories"`        // empty = open set
	KnownEvents     map[string]string `mapstructure:"known_events"`      // period token -> label
	TopEntities     int               `mapstructure:"top_entities"`
}

// OutputConfig holds artifact locations and summary format
type OutputConfig struct {
	Dir            string `mapstructure:"dir"`
	EvaluationFile string `mapstructure:"evaluation_file"`
	SummaryFile    string `mapstructure:"summary_file"`
	SummaryFormat  string `mapstructure:"summary_format"`
}

// TelegramConfig holds run-digest notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"input":             "input.path",
	"input-format":      "input.format",
	"query":             "input.query",
	"window-size":       "analysis.window_size",
	"lag":               "analysis.lag",
	"min-samples":       "analysis.min_samples",
	"z-threshold":       "analysis.z_threshold",
	"spread-floor":      "analysis.spread_floor",
	"min-total-periods": "analysis.min_total_periods",
	"window-mode":       "analysis.window_mode",
	"workers":           "analysis.workers",
	"top-entities":      "analysis.top_entities",
	"output-dir":        "output.dir",
	"summary-format":    "output.summary_format",
	"log-level":         "logging.level",
	"log-format":        "logging.format",
}

// Load reads configuration from an optional file, environment variables and
// command-line flags, in increasing order of precedence. An empty path skips
// the file. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. RATIOSENTRY_ANALYSIS_WINDOW_SIZE
	v.SetEnvPrefix("RATIOSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDerivedDefaults()
	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Input defaults
	v.SetDefault("input.format", "csv")
	v.SetDefault("input.path", "")
	v.SetDefault("input.query", "")

	// Analysis defaults
	v.SetDefault("analysis.window_size", 12)
	v.SetDefault("analysis.lag", 1)
	v.SetDefault("analysis.min_samples", 6)
	v.SetDefault("analysis.z_threshold", 2.0)
	v.SetDefault("analysis.spread_floor", 1e-9)
	v.SetDefault("analysis.min_total_periods", 0)
	v.SetDefault("analysis.window_mode", "available")
	v.SetDefault("analysis.workers", 0)
	v.SetDefault("analysis.top_entities", 5)

	// Output defaults
	v.SetDefault("output.dir", "./out")
	v.SetDefault("output.evaluation_file", "evaluations.csv")
	v.SetDefault("output.summary_file", "summary")
	v.SetDefault("output.summary_format", "json")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// applyDerivedDefaults fills options whose default depends on other options.
func (c *Config) applyDerivedDefaults() {
	if c.Analysis.MinTotalPeriods == 0 {
		c.Analysis.MinTotalPeriods = c.Analysis.Lag + c.Analysis.MinSamples + 1
	}
	if c.Analysis.Workers <= 0 {
		c.Analysis.Workers = runtime.NumCPU()
	}
	c.Input.Format = strings.ToLower(c.Input.Format)
	c.Analysis.WindowMode = strings.ToLower(c.Analysis.WindowMode)
	c.Output.SummaryFormat = strings.ToLower(c.Output.SummaryFormat)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// Validate Input config
	if c.Input.Format != "csv" && c.Input.Format != "sqlite" {
		return fmt.Errorf("input.format must be one of: csv, sqlite")
	}
	if c.Input.Path == "" {
		return fmt.Errorf("input.path is required")
	}
	if c.Input.Query != "" && c.Input.Format != "sqlite" {
		return fmt.Errorf("input.query is only valid with input.format sqlite")
	}

	// Validate Analysis config
	a := c.Analysis
	if a.WindowSize < 1 {
		return fmt.Errorf("analysis.window_size must be at least 1")
	}
	if a.Lag < 0 {
		return fmt.Errorf("analysis.lag must not be negative")
	}
	if a.MinSamples < 1 {
		return fmt.Errorf("analysis.min_samples must be at least 1")
	}
	if a.MinSamples > a.WindowSize {
		return fmt.Errorf("analysis.min_samples must not exceed analysis.window_size")
	}
	if a.ZThreshold <= 0 {
		return fmt.Errorf("analysis.z_threshold must be positive")
	}
	if a.SpreadFloor <= 0 {
		return fmt.Errorf("analysis.spread_floor must be positive")
	}
	if a.MinTotalPeriods < 1 {
		return fmt.Errorf("analysis.min_total_periods must be at least 1")
	}
	if a.WindowMode != "available" && a.WindowMode != "calendar" {
		return fmt.Errorf("analysis.window_mode must be one of: available, calendar")
	}
	if a.TopEntities < 0 {
		return fmt.Errorf("analysis.top_entities must not be negative")
	}
	for token := range a.KnownEvents {
		if _, err := models.ParsePeriod(token); err != nil {
			return fmt.Errorf("analysis.known_events: %v", err)
		}
	}

	// Validate Output config
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Output.EvaluationFile == "" || c.Output.SummaryFile == "" {
		return fmt.Errorf("output.evaluation_file and output.summary_file are required")
	}
	validFormats := map[string]bool{"json": true, "text": true, "markdown": true, "html": true}
	if !validFormats[c.Output.SummaryFormat] {
		return fmt.Errorf("output.summary_format must be one of: json, text, markdown, html")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// MonitorParams returns the estimator settings for monitor.New.
func (c *Config) MonitorParams() monitor.Params {
	return monitor.Params{
		WindowSize:      c.Analysis.WindowSize,
		Lag:             c.Analysis.Lag,
		MinSamples:      c.Analysis.MinSamples,
		ZThreshold:      c.Analysis.ZThreshold,
		SpreadFloor:     c.Analysis.SpreadFloor,
		MinTotalPeriods: c.Analysis.MinTotalPeriods,
		WindowMode:      monitor.WindowMode(c.Analysis.WindowMode),
		Workers:         c.Analysis.Workers,
		KnownEvents:     c.Analysis.KnownEvents,
		TopEntities:     c.Analysis.TopEntities,
	}
}
