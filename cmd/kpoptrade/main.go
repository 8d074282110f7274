// Command kpoptrade collects K-pop photocard trading posts from two
// upstream sources and appends them, deduplicated and classified, to a
// flat record log.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/alias"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/budget"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/config"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/metrics"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/pipeline"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/planner"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/report"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/source"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/storage"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/storage/csvbackend"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/storage/jsonbackend"
	"github.com/Lee-Soyeon/kpop-trade-collector/pkg/httpclient"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// Exit codes: 1 for runtime failures, 2 when configuration or credentials
// make the run impossible before (or at) the first call.
const (
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		code := exitRuntime
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			code = ec.ExitCode()
		}
		os.Exit(code)
	}
}

func newApp() *cli.App {
	app := &cli.App{
		Name:    "kpoptrade",
		Usage:   "Collect K-pop photocard trading posts into an NDJSON log",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "artist", Aliases: []string{"a"}, Usage: "Artist to collect (defaults to the configured entity)"},
			&cli.BoolFlag{Name: "all", Usage: "Collect all trading posts, no artist filter"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Record-count ceiling (overrides config target)"},
			&cli.StringFlag{Name: "source", Value: "both", Usage: "Data source: both|reddit|serpapi"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to YAML config file"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file path (overrides config)"},
			&cli.StringFlag{Name: "format", Usage: "Output format: jsonl|csv (overrides config)"},
			&cli.IntFlag{Name: "months", Usage: "Collect posts from the last N months (overrides config)"},
			&cli.IntFlag{Name: "pages", Aliases: []string{"p"}, Usage: "Max pages per community per query (overrides config)"},
			&cli.StringFlag{Name: "summary", Value: "text", Usage: "Run summary format: text|json"},
			&cli.IntFlag{Name: "metrics-port", Usage: "Expose Prometheus metrics on this port"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Debug logging"},
		},
		Action: run,
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err, exitConfig)
	}
	applyFlags(cfg, c)

	logger := newLogger(cfg.Logging.Level, c.Bool("verbose"))
	slog.SetDefault(logger)

	entity := cfg.Entity
	if c.IsSet("artist") {
		entity = c.String("artist")
	}
	if c.Bool("all") {
		entity = ""
	}

	useSerpAPI, useReddit, err := selectSources(c.String("source"))
	if err != nil {
		return cli.Exit(err, exitConfig)
	}
	summaryFormat := c.String("summary")
	if summaryFormat != "text" && summaryFormat != "json" {
		return cli.Exit(fmt.Errorf("unknown summary format %q (want text or json)", summaryFormat), exitConfig)
	}
	// The search proxy without an artist burns quota on noise; the
	// collector has always skipped it in that mode.
	if entity == "" && useSerpAPI {
		logger.Warn("skipping search proxy: no artist set")
		useSerpAPI = false
		if !useReddit {
			return cli.Exit(errors.New("no usable source: serpapi needs --artist"), exitConfig)
		}
	}

	httpc := httpclient.New(httpclient.Config{Timeout: cfg.HTTPTimeout()})
	creds := config.CredentialsFromEnv()

	adapters, err := buildAdapters(cfg, creds, httpc, logger, useSerpAPI, useReddit)
	if err != nil {
		return cli.Exit(err, exitConfig)
	}

	aliases := []string(nil)
	if entity != "" {
		aliases = alias.NewExpander(cfg.Aliases).Expand(entity)
	}
	queries := planner.Plan(aliases, cfg.Keywords, cfg.QueryBudget)
	if len(queries) == 0 {
		return cli.Exit(errors.New("query plan is empty"), exitConfig)
	}

	ctrl := budget.NewController(budget.Policy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: time.Duration(cfg.Retry.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		Multiplier:   cfg.Retry.BackoffMultiplier,
	})
	defer ctrl.Stop()
	if useSerpAPI {
		ctrl.RegisterQuota("serpapi", cfg.SerpAPI.Quota)
	}
	if useReddit {
		ctrl.RegisterRate("reddit", cfg.RedditInterval(), cfg.Reddit.Jitter)
	}

	sink, err := openSink(cfg)
	if err != nil {
		return cli.Exit(err, exitConfig)
	}
	// The deferred close is the guaranteed-release path: flush+close runs
	// on clean completion, interrupt and fatal error alike.
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			logger.Error("closing sink", "err", cerr)
		}
	}()

	if port := cfg.MetricsPort; port > 0 {
		srv := metrics.Start(port)
		defer srv.Stop(context.Background())
		logger.Info("metrics server started", "port", port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := pipeline.New(pipeline.Config{
		Entity:  entity,
		Aliases: aliases,
		Queries: queries,
		Target:  cfg.Target,
	}, adapters, ctrl, sink, logger)

	stats, runErr := collector.Run(ctx)

	summary := report.FromStats(entity, len(queries), stats)
	if err := writeSummary(os.Stdout, summaryFormat, summary); err != nil {
		logger.Error("writing summary", "err", err)
	}
	fmt.Printf("Output: %s\n", cfg.Output.Path)

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, source.ErrAuth):
		return cli.Exit(runErr, exitConfig)
	default:
		return cli.Exit(runErr, exitRuntime)
	}
}

// applyFlags folds CLI overrides into the loaded config.
func applyFlags(cfg *config.Config, c *cli.Context) {
	if c.IsSet("limit") {
		cfg.Target = c.Int("limit")
	}
	if c.IsSet("out") {
		cfg.Output.Path = c.String("out")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("months") {
		months := c.Int("months")
		cfg.SerpAPI.RecencyMonths = months
		cfg.Reddit.MaxAgeDays = months * 30
	}
	if c.IsSet("pages") {
		cfg.Reddit.MaxPages = c.Int("pages")
	}
	if c.IsSet("metrics-port") {
		cfg.MetricsPort = c.Int("metrics-port")
	}
}

func selectSources(sel string) (useSerpAPI, useReddit bool, err error) {
	switch sel {
	case "both":
		return true, true, nil
	case "serpapi":
		return true, false, nil
	case "reddit":
		return false, true, nil
	default:
		return false, false, fmt.Errorf("unknown source %q (want both, reddit or serpapi)", sel)
	}
}

// buildAdapters constructs the selected adapters in run order. An adapter
// whose credential is missing is dropped with a warning before any network
// call; the run only aborts when nothing remains.
func buildAdapters(cfg *config.Config, creds config.Credentials, httpc *httpclient.Client, logger *slog.Logger, useSerpAPI, useReddit bool) ([]source.Adapter, error) {
	var adapters []source.Adapter

	if useReddit {
		if err := creds.ValidateFor(false, true); err != nil {
			logger.Warn("native adapter disabled", "err", err)
		} else {
			reddit, err := source.NewReddit(source.RedditConfig{
				AppID:       creds.RedditAppID,
				Secret:      creds.RedditSecret,
				Communities: cfg.Communities,
				PageSize:    cfg.Reddit.PageSize,
				Sort:        cfg.Reddit.Sort,
				TimeFilter:  cfg.Reddit.TimeFilter,
				MaxAge:      cfg.RedditMaxAge(),
				MaxPages:    cfg.Reddit.MaxPages,
				HTTP:        httpc,
				Logger:      logger,
			})
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, reddit)
		}
	}

	if useSerpAPI {
		if err := creds.ValidateFor(true, false); err != nil {
			logger.Warn("search-proxy adapter disabled", "err", err)
		} else {
			serp, err := source.NewSerpAPI(source.SerpAPIConfig{
				APIKey:        creds.SerpAPIKey,
				PageSize:      cfg.SerpAPI.PageSize,
				Language:      cfg.SerpAPI.Language,
				RecencyMonths: cfg.SerpAPI.RecencyMonths,
				HTTP:          httpc,
				Logger:        logger,
			})
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, serp)
		}
	}

	if len(adapters) == 0 {
		return nil, errors.New("no usable adapter: check credentials for the selected sources")
	}
	return adapters, nil
}

// writeSummary renders the run summary in the selected format.
func writeSummary(w io.Writer, format string, s report.Summary) error {
	if format == "json" {
		return report.WriteJSON(w, s)
	}
	return report.WriteText(w, s)
}

func openSink(cfg *config.Config) (storage.Backend, error) {
	if dir := filepath.Dir(cfg.Output.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	switch cfg.Output.Format {
	case "csv":
		return csvbackend.New(cfg.Output.Path)
	default:
		return jsonbackend.New(cfg.Output.Path)
	}
}

func newLogger(level string, verbose bool) *slog.Logger {
	lvl := new(slog.LevelVar)
	switch level {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "warn":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}
	if verbose {
		lvl.Set(slog.LevelDebug)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
