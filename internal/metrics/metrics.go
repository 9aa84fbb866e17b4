package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "akash_bot",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "akash_bot",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "akash_bot",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Stats API fetch metrics ────────────────────────────────────────────

var (
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "akash_bot",
		Subsystem: "fetch",
		Name:      "total",
		Help:      "Total number of stats API fetches per metric.",
	}, []string{"metric", "status"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "akash_bot",
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Duration of a stats API fetch per metric in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"metric"})
)

// ── Pipeline run metrics ───────────────────────────────────────────────

var (
	RunTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "akash_bot",
		Subsystem: "run",
		Name:      "total",
		Help:      "Total number of report runs by outcome.",
	}, []string{"status"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "akash_bot",
		Subsystem: "run",
		Name:      "duration_seconds",
		Help:      "Duration of a full report run in seconds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	RunLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "akash_bot",
		Subsystem: "run",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last successful report run.",
	})
)

// ── Posting and narration metrics ──────────────────────────────────────

var (
	PostTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "akash_bot",
		Subsystem: "post",
		Name:      "total",
		Help:      "Total social posts and media uploads by kind and outcome.",
	}, []string{"kind", "status"})

	NarrationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "akash_bot",
		Subsystem: "narration",
		Name:      "total",
		Help:      "Total LLM narration requests by outcome.",
	}, []string{"status"})

	NarrationTruncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "akash_bot",
		Subsystem: "narration",
		Name:      "truncated_total",
		Help:      "Narrations that exceeded the character budget and were cut.",
	})
)

// ── Business metrics ───────────────────────────────────────────────────

var (
	NetworkActiveGPU = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "akash_bot",
		Subsystem: "network",
		Name:      "active_gpu",
		Help:      "Active GPUs reported by the last dashboard snapshot.",
	})

	NetworkTotalGPU = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "akash_bot",
		Subsystem: "network",
		Name:      "total_gpu",
		Help:      "Total GPU capacity reported by the last dashboard snapshot.",
	})

	NetworkGPUUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "akash_bot",
		Subsystem: "network",
		Name:      "gpu_utilization",
		Help:      "Active / total GPU ratio from the last dashboard snapshot.",
	})

	AKTPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "akash_bot",
		Subsystem: "market",
		Name:      "akt_price_usd",
		Help:      "AKT price in USD from the last market snapshot.",
	})

	DailyUSDSpent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "akash_bot",
		Subsystem: "network",
		Name:      "daily_usd_spent",
		Help:      "Daily USD spent on leases from the last dashboard snapshot.",
	})
)
