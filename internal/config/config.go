// Package config provides configuration for the collector. Policy values
// (budgets, delays, retry bounds) live here rather than as constants so a
// run can be tuned without rebuilding. Credentials are never read from the
// config file; they come from process environment only.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoCommunities        = errors.New("at least one community is required")
	ErrInvalidQueryBudget   = errors.New("query_budget must be non-negative")
	ErrInvalidQuota         = errors.New("serpapi.quota must be non-negative")
	ErrInvalidPageSize      = errors.New("page_size must be between 1 and 100")
	ErrInvalidInterval      = errors.New("reddit.interval_ms must be non-negative")
	ErrInvalidMaxPages      = errors.New("reddit.max_pages must be non-negative")
	ErrInvalidMaxAttempts   = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay  = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidMultiplier    = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrMissingOutputPath    = errors.New("output.path is required")
	ErrInvalidOutputFormat  = errors.New("output.format must be 'jsonl' or 'csv'")
	ErrInvalidLogLevel      = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrMissingSerpAPIKey    = errors.New("SERPAPI_KEY is not set")
	ErrMissingRedditAppID   = errors.New("REDDIT_APP_ID is not set")
	ErrMissingRedditSecret  = errors.New("REDDIT_SECRET is not set")
	ErrInvalidRecencyMonths = errors.New("serpapi.recency_months must be non-negative")
)

// Config represents the complete collector configuration.
type Config struct {
	// Entity is the default artist when the CLI does not name one.
	Entity string `yaml:"entity"`
	// Aliases extends (or overrides) the built-in alias table.
	Aliases map[string][]string `yaml:"aliases"`
	// Keywords is the trade-marker priority order for query planning.
	Keywords []string `yaml:"keywords"`
	// QueryBudget caps the number of planned queries (0 = unbounded).
	QueryBudget int `yaml:"query_budget"`
	// Target is the default record-count ceiling for a run.
	Target int `yaml:"target"`
	// Communities are the platform communities the native adapter searches.
	Communities []string `yaml:"communities"`

	SerpAPI SerpAPIConfig `yaml:"serpapi"`
	Reddit  RedditConfig  `yaml:"reddit"`
	Retry   RetryPolicy   `yaml:"retry"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`

	// HTTPTimeoutSec bounds every upstream HTTP call.
	HTTPTimeoutSec int `yaml:"http_timeout_sec"`
	// MetricsPort exposes /metrics when > 0.
	MetricsPort int `yaml:"metrics_port"`
}

// SerpAPIConfig tunes the quota-based search-proxy adapter.
type SerpAPIConfig struct {
	// Quota is the number of calls this run may spend from the monthly cap.
	Quota         int    `yaml:"quota"`
	PageSize      int    `yaml:"page_size"`
	Language      string `yaml:"language"`
	RecencyMonths int    `yaml:"recency_months"`
}

// RedditConfig tunes the rate-based native adapter.
type RedditConfig struct {
	// IntervalMs is the minimum spacing between calls.
	IntervalMs int     `yaml:"interval_ms"`
	Jitter     float64 `yaml:"jitter"`
	PageSize   int     `yaml:"page_size"`
	Sort       string  `yaml:"sort"`
	TimeFilter string  `yaml:"time_filter"`
	// MaxAgeDays drops posts older than this many days (0 = no cutoff).
	MaxAgeDays int `yaml:"max_age_days"`
	// MaxPages caps the pages fetched per community per query (0 = no cap).
	MaxPages int `yaml:"max_pages"`
}

// RetryPolicy defines retry behavior for throttled and transient failures.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// OutputConfig defines where and how records are appended.
type OutputConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Entity:      "Seventeen",
		Keywords:    []string{"WTS", "WTT", "WTB", "ISO"},
		QueryBudget: 20,
		Target:      500,
		Communities: []string{"kpopforsale", "kpopcollections", "kpoptrade", "adultkpopfans"},
		SerpAPI: SerpAPIConfig{
			Quota:         25,
			PageSize:      10,
			Language:      "en",
			RecencyMonths: 6,
		},
		Reddit: RedditConfig{
			IntervalMs: 1000,
			Jitter:     0.1,
			PageSize:   100,
			Sort:       "relevance",
			TimeFilter: "year",
			MaxAgeDays: 180,
			MaxPages:   5,
		},
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    2000,
			MaxDelayMs:        10000,
			BackoffMultiplier: 2.0,
		},
		Output: OutputConfig{
			Path:   "data/trades.jsonl",
			Format: "jsonl",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		HTTPTimeoutSec: 30,
	}
}

// Load reads a YAML config file on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every policy value.
func (c *Config) Validate() error {
	if len(c.Communities) == 0 {
		return ErrNoCommunities
	}
	if c.QueryBudget < 0 {
		return ErrInvalidQueryBudget
	}
	if c.SerpAPI.Quota < 0 {
		return ErrInvalidQuota
	}
	if c.SerpAPI.RecencyMonths < 0 {
		return ErrInvalidRecencyMonths
	}
	if c.SerpAPI.PageSize < 1 || c.SerpAPI.PageSize > 100 {
		return fmt.Errorf("serpapi: %w", ErrInvalidPageSize)
	}
	if c.Reddit.PageSize < 1 || c.Reddit.PageSize > 100 {
		return fmt.Errorf("reddit: %w", ErrInvalidPageSize)
	}
	if c.Reddit.IntervalMs < 0 {
		return ErrInvalidInterval
	}
	if c.Reddit.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}
	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidMultiplier
	}
	if c.Output.Path == "" {
		return ErrMissingOutputPath
	}
	if c.Output.Format != "jsonl" && c.Output.Format != "csv" {
		return ErrInvalidOutputFormat
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}

// HTTPTimeout returns the upstream call timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// RedditInterval returns the native adapter's pacing interval.
func (c *Config) RedditInterval() time.Duration {
	return time.Duration(c.Reddit.IntervalMs) * time.Millisecond
}

// RedditMaxAge returns the native adapter's recency cutoff.
func (c *Config) RedditMaxAge() time.Duration {
	return time.Duration(c.Reddit.MaxAgeDays) * 24 * time.Hour
}

// Credentials holds the upstream API secrets, supplied via environment.
type Credentials struct {
	SerpAPIKey   string
	RedditAppID  string
	RedditSecret string
}

// CredentialsFromEnv reads SERPAPI_KEY, REDDIT_APP_ID and REDDIT_SECRET.
// Missing values are not an error here; whether a credential is required
// depends on which adapters the run selects.
func CredentialsFromEnv() Credentials {
	return Credentials{
		SerpAPIKey:   os.Getenv("SERPAPI_KEY"),
		RedditAppID:  os.Getenv("REDDIT_APP_ID"),
		RedditSecret: os.Getenv("REDDIT_SECRET"),
	}
}

// ValidateFor confirms the credentials needed by the selected adapters are
// present, before any network call is attempted.
func (cr Credentials) ValidateFor(useSerpAPI, useReddit bool) error {
	if useSerpAPI && cr.SerpAPIKey == "" {
		return ErrMissingSerpAPIKey
	}
	if useReddit {
		if cr.RedditAppID == "" {
			return ErrMissingRedditAppID
		}
		if cr.RedditSecret == "" {
			return ErrMissingRedditSecret
		}
	}
	return nil
}
