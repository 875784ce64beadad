package config_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/goliatone/go-docfill/internal/config"
)

func parse(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.Bind(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(parse(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APIKey != "" {
		t.Fatalf("api key should default empty, got %q", cfg.APIKey)
	}
	if cfg.Model != config.DefaultModel {
		t.Fatalf("model = %q", cfg.Model)
	}
	if cfg.Timeout != config.DefaultTimeout {
		t.Fatalf("timeout = %s", cfg.Timeout)
	}
	if cfg.Database != config.DefaultDatabase {
		t.Fatalf("database = %q", cfg.Database)
	}
}

func TestLoadFlagsWin(t *testing.T) {
	cfg, err := config.Load(parse(t,
		"--api-key", "sk-flag",
		"--model", "gpt-5",
		"--timeout", "5s",
		"--concurrency", "8",
		"--log-level", "debug",
	))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APIKey != "sk-flag" || cfg.Model != "gpt-5" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Timeout != 5*time.Second || cfg.Concurrency != 8 {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DOCFILL_API_KEY", "sk-env")
	t.Setenv("DOCFILL_MODEL", "local-model")

	cfg, err := config.Load(parse(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "sk-env" {
		t.Fatalf("api key = %q, want env value", cfg.APIKey)
	}
	if cfg.Model != "local-model" {
		t.Fatalf("model = %q, want env value", cfg.Model)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "zero timeout", mutate: func(c *config.Config) { c.Timeout = 0 }},
		{name: "negative retries", mutate: func(c *config.Config) { c.Retries = -1 }},
		{name: "zero concurrency", mutate: func(c *config.Config) { c.Concurrency = 0 }},
		{name: "negative rate", mutate: func(c *config.Config) { c.RateLimit = -1 }},
		{name: "blank database", mutate: func(c *config.Config) { c.Database = "  " }},
		{name: "bad log level", mutate: func(c *config.Config) { c.LogLevel = "verbose" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoggerHonorsLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "error"

	logger := cfg.Logger()
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled at error level")
	}
}
