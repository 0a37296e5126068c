// Package metrics exposes Prometheus collectors for the contract fetcher.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchRequestsTotal      *prometheus.CounterVec
	contractsFetchedTotal    *prometheus.CounterVec
	duplicatesDiscardedTotal prometheus.Counter
	sinkWritesTotal          *prometheus.CounterVec
	runsTotal                *prometheus.CounterVec
	runDurationSeconds       prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		searchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contracts_search_requests_total",
				Help: "Total SAM.gov search requests, labeled by organization code and HTTP status.",
			},
			[]string{"org_code", "status"},
		)

		contractsFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contracts_fetched_total",
				Help: "Total contract notices returned by the search API, labeled by organization code.",
			},
			[]string{"org_code"},
		)

		duplicatesDiscardedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contracts_duplicates_discarded_total",
				Help: "Total notices discarded by cross-organization deduplication.",
			},
		)

		sinkWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contracts_sink_writes_total",
				Help: "Total sink write attempts, labeled by sink and outcome.",
			},
			[]string{"sink", "outcome"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contracts_runs_total",
				Help: "Total pipeline runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "contracts_run_duration_seconds",
				Help:    "Histogram of end-to-end pipeline run durations.",
				Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
			},
		)
	})
}

// ObserveSearchRequest records one search API request.
func ObserveSearchRequest(orgCode string, statusCode int) {
	if searchRequestsTotal == nil {
		return
	}
	if orgCode == "" {
		orgCode = "all"
	}
	searchRequestsTotal.WithLabelValues(orgCode, strconv.Itoa(statusCode)).Inc()
}

// AddContractsFetched records the notice count returned for one organization code.
func AddContractsFetched(orgCode string, count int) {
	if contractsFetchedTotal == nil {
		return
	}
	if orgCode == "" {
		orgCode = "all"
	}
	contractsFetchedTotal.WithLabelValues(orgCode).Add(float64(count))
}

// AddDuplicatesDiscarded records notices dropped by deduplication.
func AddDuplicatesDiscarded(count int) {
	if duplicatesDiscardedTotal == nil {
		return
	}
	duplicatesDiscardedTotal.Add(float64(count))
}

// ObserveSinkWrite records one sink write attempt.
// Outcome is "ok", "error", or "skipped".
func ObserveSinkWrite(sink string, outcome string) {
	if sinkWritesTotal == nil {
		return
	}
	sinkWritesTotal.WithLabelValues(sink, outcome).Inc()
}

// ObserveRun records a completed pipeline run and its duration.
func ObserveRun(outcome string, elapsed time.Duration) {
	if runsTotal == nil {
		return
	}
	runsTotal.WithLabelValues(outcome).Inc()
	runDurationSeconds.Observe(elapsed.Seconds())
}
