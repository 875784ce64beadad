// Package config resolves CLI flags and DOCFILL_* environment variables into
// one settings struct. Flags win over environment, environment wins over
// defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultTimeout     = 30 * time.Second
	DefaultRetries     = 2
	DefaultConcurrency = 4
	DefaultLogLevel    = "info"
	DefaultDatabase    = "docfill.db"
)

// Config holds every runtime setting the CLI understands.
type Config struct {
	// Completion service settings. An empty APIKey keeps the tool fully
	// offline: heuristics only, verbatim substitution.
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Retries     int
	Concurrency int
	RateLimit   float64

	// Database is the path of the SQLite file holding saved templates and
	// submissions.
	Database string

	LogLevel string
}

// Default returns a configuration with the built-in defaults.
func Default() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Timeout:     DefaultTimeout,
		Retries:     DefaultRetries,
		Concurrency: DefaultConcurrency,
		Database:    DefaultDatabase,
		LogLevel:    DefaultLogLevel,
	}
}

// Bind registers the shared flags on a flag set. Call Load after the set has
// been parsed.
func Bind(flags *pflag.FlagSet) {
	defaults := Default()
	flags.String("api-key", "", "completion service API key (empty disables enrichment)")
	flags.String("base-url", defaults.BaseURL, "completion service endpoint")
	flags.String("model", defaults.Model, "completion model to request")
	flags.Duration("timeout", defaults.Timeout, "per-request completion timeout")
	flags.Int("retries", defaults.Retries, "completion retries on transient failure")
	flags.Int("concurrency", defaults.Concurrency, "parallel enrichment requests")
	flags.Float64("rate-limit", 0, "completion requests per second (0 = unlimited)")
	flags.String("db", defaults.Database, "path of the template database")
	flags.String("log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
}

// Load resolves the configuration from a parsed flag set plus DOCFILL_*
// environment variables.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}

	cfg := &Config{
		APIKey:      v.GetString("api-key"),
		BaseURL:     v.GetString("base-url"),
		Model:       v.GetString("model"),
		Timeout:     v.GetDuration("timeout"),
		Retries:     v.GetInt("retries"),
		Concurrency: v.GetInt("concurrency"),
		RateLimit:   v.GetFloat64("rate-limit"),
		Database:    v.GetString("db"),
		LogLevel:    v.GetString("log-level"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no run could work with.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %s", c.Timeout)
	}
	if c.Retries < 0 {
		return fmt.Errorf("config: retries must not be negative, got %d", c.Retries)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate limit must not be negative, got %g", c.RateLimit)
	}
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("config: database path is required")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Logger builds the slog logger the CLI hands down to every component.
func (c *Config) Logger() *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: invalid log level %q (debug, info, warn, error)", raw)
	}
}
