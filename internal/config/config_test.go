package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Entity != "Seventeen" || cfg.Target != 500 {
		t.Errorf("unexpected defaults: entity=%q target=%d", cfg.Entity, cfg.Target)
	}
}

func TestLoad_OverridesOnTopOfDefaults(t *testing.T) {
	path := writeConfig(t, `
entity: "NewJeans"
target: 100
communities: ["kpopforsale"]
serpapi:
  quota: 10
reddit:
  interval_ms: 2000
output:
  path: out/records.csv
  format: csv
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Entity != "NewJeans" || cfg.Target != 100 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.SerpAPI.Quota != 10 {
		t.Errorf("serpapi.quota = %d", cfg.SerpAPI.Quota)
	}
	// Untouched fields keep their defaults.
	if cfg.SerpAPI.PageSize != 10 || cfg.Retry.MaxAttempts != 3 || cfg.Reddit.MaxPages != 5 {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.Output.Format != "csv" {
		t.Errorf("output.format = %q", cfg.Output.Format)
	}
	if cfg.RedditInterval() != 2*time.Second {
		t.Errorf("interval = %v", cfg.RedditInterval())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no communities", func(c *Config) { c.Communities = nil }, ErrNoCommunities},
		{"negative query budget", func(c *Config) { c.QueryBudget = -1 }, ErrInvalidQueryBudget},
		{"negative quota", func(c *Config) { c.SerpAPI.Quota = -5 }, ErrInvalidQuota},
		{"serpapi page size too big", func(c *Config) { c.SerpAPI.PageSize = 101 }, ErrInvalidPageSize},
		{"reddit page size zero", func(c *Config) { c.Reddit.PageSize = 0 }, ErrInvalidPageSize},
		{"negative interval", func(c *Config) { c.Reddit.IntervalMs = -1 }, ErrInvalidInterval},
		{"negative max pages", func(c *Config) { c.Reddit.MaxPages = -1 }, ErrInvalidMaxPages},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, ErrInvalidMaxAttempts},
		{"multiplier below one", func(c *Config) { c.Retry.BackoffMultiplier = 0.5 }, ErrInvalidMultiplier},
		{"missing output path", func(c *Config) { c.Output.Path = "" }, ErrMissingOutputPath},
		{"bad output format", func(c *Config) { c.Output.Format = "xml" }, ErrInvalidOutputFormat},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"negative recency", func(c *Config) { c.SerpAPI.RecencyMonths = -1 }, ErrInvalidRecencyMonths},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestHTTPTimeout_Fallback(t *testing.T) {
	cfg := &Config{}
	if cfg.HTTPTimeout() != 30*time.Second {
		t.Errorf("expected 30s fallback, got %v", cfg.HTTPTimeout())
	}
	cfg.HTTPTimeoutSec = 5
	if cfg.HTTPTimeout() != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.HTTPTimeout())
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("SERPAPI_KEY", "sk")
	t.Setenv("REDDIT_APP_ID", "id")
	t.Setenv("REDDIT_SECRET", "sec")

	cr := CredentialsFromEnv()
	if cr.SerpAPIKey != "sk" || cr.RedditAppID != "id" || cr.RedditSecret != "sec" {
		t.Errorf("credentials = %+v", cr)
	}
}

func TestCredentials_ValidateFor(t *testing.T) {
	full := Credentials{SerpAPIKey: "k", RedditAppID: "a", RedditSecret: "s"}
	if err := full.ValidateFor(true, true); err != nil {
		t.Errorf("full credentials: %v", err)
	}

	if err := (Credentials{}).ValidateFor(true, false); !errors.Is(err, ErrMissingSerpAPIKey) {
		t.Errorf("expected ErrMissingSerpAPIKey, got %v", err)
	}
	if err := (Credentials{RedditAppID: "a"}).ValidateFor(false, true); !errors.Is(err, ErrMissingRedditSecret) {
		t.Errorf("expected ErrMissingRedditSecret, got %v", err)
	}
	// Adapters not selected need no credentials at all.
	if err := (Credentials{}).ValidateFor(false, false); err != nil {
		t.Errorf("no adapters: %v", err)
	}
}
