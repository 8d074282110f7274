// Package pipeline runs the collection loop: planner queries are issued
// per adapter, every call gated by the budget controller, and each raw
// record flows through normalize, classify, dedup and the sink, in that
// order. Execution is strictly sequential; both upstreams enforce tight
// rate or quota ceilings, so there is nothing to gain from fan-out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/budget"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/classify"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/dedup"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/metrics"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/normalize"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/source"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/storage"
)

// Config provides the run parameters for a Collector.
type Config struct {
	// Entity is the canonical artist name, empty for an unfiltered run.
	Entity string
	// Aliases are the expanded entity variants, used for the relevance filter.
	Aliases []string
	// Queries is the planner output, already prioritized and budgeted.
	Queries []string
	// Target stops the run once this many records are written (0 = no cap).
	Target int
}

// Stats is what the run surfaces to the operator: collected counts plus a
// count for every kind of skip. No per-record error escapes the loop.
type Stats struct {
	RunID          string
	Searches       map[string]int
	Collected      map[string]int
	ByIntent       map[string]int
	Duplicates     int
	Unclassified   int
	Malformed      int
	Irrelevant     int
	SkippedQueries int
	DroppedSources []string
	StartTime      time.Time
	EndTime        time.Time
}

// TotalCollected sums persisted records across adapters.
func (s *Stats) TotalCollected() int {
	n := 0
	for _, c := range s.Collected {
		n += c
	}
	return n
}

// TotalSearches sums upstream calls across adapters.
func (s *Stats) TotalSearches() int {
	n := 0
	for _, c := range s.Searches {
		n += c
	}
	return n
}

// Collector wires the pipeline stages together for one run.
type Collector struct {
	cfg        Config
	adapters   []source.Adapter
	budget     *budget.Controller
	classifier *classify.Classifier
	seen       *dedup.Set
	sink       storage.Backend
	logger     *slog.Logger
}

// New builds a Collector. The sink's lifecycle belongs to the caller; Run
// never closes it, so the caller's deferred Close covers every exit path.
func New(cfg Config, adapters []source.Adapter, ctrl *budget.Controller, sink storage.Backend, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		cfg:        cfg,
		adapters:   adapters,
		budget:     ctrl,
		classifier: classify.New(),
		seen:       dedup.NewSet(),
		sink:       sink,
		logger:     logger,
	}
}

// Run executes the collection loop. It returns the run statistics along
// with a non-nil error only for fatal conditions: a rejected credential, a
// broken sink, or cancellation. Skips of any other kind are counted, not
// propagated.
func (c *Collector) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		RunID:     uuid.New().String(),
		Searches:  make(map[string]int),
		Collected: make(map[string]int),
		ByIntent:  make(map[string]int),
		StartTime: time.Now().UTC(),
	}
	defer func() { stats.EndTime = time.Now().UTC() }()

	log := c.logger.With("run_id", stats.RunID)
	log.Info("starting collection",
		"entity", c.cfg.Entity,
		"queries", len(c.cfg.Queries),
		"adapters", len(c.adapters),
		"target", c.cfg.Target)

	for _, ad := range c.adapters {
		if err := c.runAdapter(ctx, ad, stats, log); err != nil {
			return stats, err
		}
		if c.done(stats) {
			break
		}
	}

	log.Info("collection finished",
		"collected", stats.TotalCollected(),
		"searches", stats.TotalSearches(),
		"duplicates", stats.Duplicates)
	return stats, nil
}

// runAdapter walks every planned query through one adapter. A non-nil
// return aborts the whole run.
func (c *Collector) runAdapter(ctx context.Context, ad source.Adapter, stats *Stats, log *slog.Logger) error {
	for _, query := range c.cfg.Queries {
		drop, err := c.runQuery(ctx, ad, query, stats, log)
		if err != nil {
			return err
		}
		if drop {
			stats.DroppedSources = append(stats.DroppedSources, ad.Name())
			return nil
		}
		if c.done(stats) {
			return nil
		}
	}
	return nil
}

// runQuery pages through one query on one adapter. drop means the adapter
// has no budget left and must be excluded from the rest of the run; a
// non-nil err is fatal for the run. Anything milder is counted and absorbed.
func (c *Collector) runQuery(ctx context.Context, ad source.Adapter, query string, stats *Stats, log *slog.Logger) (drop bool, err error) {
	name := ad.Name()
	cursor := ""
	for {
		if c.done(stats) {
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}

		records, next, err := c.searchWithRetry(ctx, ad, query, cursor, stats)
		switch {
		case err == nil:
		case errors.Is(err, budget.ErrBudgetExhausted), errors.Is(err, source.ErrQuotaExhausted):
			log.Warn("adapter budget exhausted, dropping it for this run", "adapter", name, "err", err)
			return true, nil
		case errors.Is(err, source.ErrAuth):
			return false, fmt.Errorf("adapter %s: %w", name, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return false, err
		default:
			log.Warn("query skipped", "adapter", name, "query", query, "err", err)
			stats.SkippedQueries++
			metrics.RecordSkip("query_failed")
			return false, nil
		}

		for _, raw := range records {
			if err := c.process(ctx, name, raw, stats, log); err != nil {
				return false, err
			}
			if c.done(stats) {
				return false, nil
			}
		}

		if next == "" {
			return false, nil
		}
		cursor = next
	}
}

// searchWithRetry issues one page fetch, paying the budget per attempt and
// backing off on throttling or transient failures up to the policy bound.
func (c *Collector) searchWithRetry(ctx context.Context, ad source.Adapter, query, cursor string, stats *Stats) ([]source.RawRecord, string, error) {
	name := ad.Name()
	for attempt := 1; ; attempt++ {
		if err := c.budget.Acquire(ctx, name); err != nil {
			return nil, "", err
		}

		start := time.Now()
		records, next, err := ad.Search(ctx, query, cursor)
		stats.Searches[name]++
		metrics.ObserveSearch(name, callStatus(err), time.Since(start))

		if err == nil {
			return records, next, nil
		}
		if !errors.Is(err, source.ErrRateLimited) && !errors.Is(err, source.ErrTransient) {
			return nil, "", err
		}
		if attempt >= c.budget.MaxAttempts() {
			return nil, "", err
		}

		delay := c.budget.Backoff(attempt)
		c.logger.Debug("backing off", "adapter", name, "attempt", attempt, "delay", delay, "err", err)
		if err := sleep(ctx, delay); err != nil {
			return nil, "", err
		}
	}
}

// process runs one raw record through normalize, the optional relevance
// filter, classify, dedup and the sink. Only a sink failure is fatal.
func (c *Collector) process(ctx context.Context, adapter string, raw source.RawRecord, stats *Stats, log *slog.Logger) error {
	rec, err := normalize.Record(raw)
	if err != nil {
		stats.Malformed++
		metrics.RecordSkip("malformed")
		log.Debug("malformed record skipped", "adapter", adapter, "url", raw.URL, "err", err)
		return nil
	}

	if c.cfg.Entity != "" && !c.mentionsAlias(rec.Text()) {
		stats.Irrelevant++
		metrics.RecordSkip("irrelevant")
		return nil
	}

	intent, keyword, ok := c.classifier.Classify(rec.Text())
	if !ok {
		stats.Unclassified++
		metrics.RecordSkip("unclassified")
		return nil
	}
	rec.TradeIntent = intent

	if !c.seen.Admit(rec.IdentityKey) {
		stats.Duplicates++
		metrics.RecordSkip("duplicate")
		return nil
	}

	if err := c.sink.Append(ctx, rec); err != nil {
		return fmt.Errorf("sink append: %w", err)
	}

	stats.Collected[adapter]++
	stats.ByIntent[string(intent)]++
	metrics.RecordWritten(adapter, string(intent))
	log.Debug("record collected",
		"adapter", adapter,
		"intent", intent,
		"keyword", keyword,
		"identity_key", rec.IdentityKey)
	return nil
}

// mentionsAlias reports whether the text names the target entity under any
// of its expanded aliases.
func (c *Collector) mentionsAlias(text string) bool {
	lower := strings.ToLower(text)
	for _, a := range c.cfg.Aliases {
		if a != "" && strings.Contains(lower, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

func (c *Collector) done(stats *Stats) bool {
	return c.cfg.Target > 0 && stats.TotalCollected() >= c.cfg.Target
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, source.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, source.ErrQuotaExhausted), errors.Is(err, budget.ErrBudgetExhausted):
		return "quota_exhausted"
	case errors.Is(err, source.ErrAuth):
		return "auth"
	case errors.Is(err, source.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
