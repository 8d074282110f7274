package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpoptrade_searches_total",
			Help: "Total number of upstream search calls issued",
		},
		[]string{"adapter", "status"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kpoptrade_search_duration_seconds",
			Help:    "Duration of upstream search calls in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"adapter"},
	)

	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpoptrade_records_total",
			Help: "Canonical records written to the sink",
		},
		[]string{"adapter", "intent"},
	)

	SkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpoptrade_skips_total",
			Help: "Records or queries dropped before the sink, by reason",
		},
		[]string{"reason"},
	)
)

// ObserveSearch updates the per-call metrics for one adapter search.
func ObserveSearch(adapter, status string, d time.Duration) {
	SearchesTotal.WithLabelValues(adapter, status).Inc()
	SearchDuration.WithLabelValues(adapter).Observe(d.Seconds())
}

// RecordWritten counts one persisted record.
func RecordWritten(adapter, intent string) {
	RecordsTotal.WithLabelValues(adapter, intent).Inc()
}

// RecordSkip counts one drop for the given reason (duplicate, unclassified,
// malformed, irrelevant, query_failed).
func RecordSkip(reason string) {
	SkipsTotal.WithLabelValues(reason).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
