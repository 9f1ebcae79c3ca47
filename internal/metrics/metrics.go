// Package metrics provides Prometheus instrumentation for the board service.
// It exposes counters for entry lifecycle and presence heartbeats, counters
// for the background sweep, and a histogram for HTTP request latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Entry lifecycle event labels.
const (
	EntryAdded   = "added"
	EntryExpired = "expired"
	EntryDeleted = "deleted"
	EntryClamped = "ttl_clamped"
	EntryBlocked = "blocked"
)

var (
	// EntriesTotal counts entry lifecycle events, labeled by event:
	// "added", "expired", "deleted", "ttl_clamped" or "blocked".
	EntriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_entries_total",
		Help: "Total number of entry lifecycle events",
	}, []string{"event"})

	// HeartbeatsTotal counts presence heartbeats accepted by the tracker.
	HeartbeatsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "board_heartbeats_total",
		Help: "Total number of presence heartbeats",
	})

	// SweepRunsTotal counts background sweep cycles, labeled by target.
	SweepRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_sweep_runs_total",
		Help: "Total number of background sweep cycles",
	}, []string{"target"})

	// SweepRemovedTotal counts records removed by the background sweep.
	SweepRemovedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_sweep_removed_total",
		Help: "Total number of records removed by the background sweep",
	}, []string{"target"})

	// RateLimitedTotal counts requests rejected by the rate limiter, labeled
	// by rule key.
	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_rate_limited_total",
		Help: "Total number of rate limited requests",
	}, []string{"rule"})

	// RequestLatency records HTTP handler latency in seconds.
	RequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "board_request_latency_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"method", "code"})
)

func init() {
	prometheus.MustRegister(
		EntriesTotal,
		HeartbeatsTotal,
		SweepRunsTotal,
		SweepRemovedTotal,
		RateLimitedTotal,
		RequestLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
