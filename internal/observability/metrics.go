// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC metrics
	RPCCallLatency   *prometheus.HistogramVec
	RateLimitRetries prometheus.Counter

	// Poll metrics
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	SignaturesListed prometheus.Counter
	ListingFailures  prometheus.Counter
	FetchOutcomes    *prometheus.CounterVec
	WatermarkHeld    prometheus.Counter
	WakeSignals      prometheus.Counter

	// Classification metrics
	MatchesTotal      prometheus.Counter
	DuplicatesSkipped *prometheus.CounterVec
	ResultsSize       prometheus.Gauge

	// Metadata metrics
	MetadataLookups *prometheus.CounterVec

	// Feed metrics
	PublishErrors prometheus.Counter

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	return newMetrics(namespace, prometheus.DefaultRegisterer)
}

func newMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "launch_watch"
	}
	factory := promauto.With(reg)

	return &Metrics{
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RateLimitRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "rate_limit_retries_total",
			Help:      "Total number of fetch retries caused by HTTP 429",
		}),

		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Total number of poll cycles by status",
		}, []string{"status"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "cycle_duration_seconds",
			Help:      "Poll cycle duration",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		SignaturesListed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "signatures_listed_total",
			Help:      "Total number of signatures returned by the lister",
		}),
		ListingFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "listing_failed_total",
			Help:      "Total number of failed signature listings",
		}),
		FetchOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "fetch_outcomes_total",
			Help:      "Total number of transaction fetches by outcome",
		}, []string{"outcome"}),
		WatermarkHeld: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "watermark_held_total",
			Help:      "Total number of cycles where failed fetches held the watermark back",
		}),
		WakeSignals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "wake_signals_total",
			Help:      "Total number of early wake signals received",
		}),

		MatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "matches_total",
			Help:      "Total number of transactions matching the launch profile",
		}),
		DuplicatesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of matches dropped as duplicates by key",
		}, []string{"key"}),
		ResultsSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "results_size",
			Help:      "Current number of retained results",
		}),

		MetadataLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "lookups_total",
			Help:      "Total number of metadata lookups by source and result",
		}, []string{"source", "result"}),

		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "publish_errors_total",
			Help:      "Total number of failed result publications",
		}),

		LastSuccessfulCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successful poll cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// Cycle statuses.
const (
	CycleOK     = "ok"
	CycleFailed = "failed"
)

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRateLimitRetry increments the 429 retry counter.
func RecordRateLimitRetry() {
	DefaultMetrics.RateLimitRetries.Inc()
}

// RecordCycle records a finished poll cycle.
func RecordCycle(status string, duration time.Duration) {
	DefaultMetrics.CyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.CycleDuration.Observe(duration.Seconds())
	if status == CycleOK {
		DefaultMetrics.LastSuccessfulCycle.Set(float64(time.Now().Unix()))
	}
}

// RecordSignaturesListed adds n listed signatures.
func RecordSignaturesListed(n int) {
	DefaultMetrics.SignaturesListed.Add(float64(n))
}

// RecordListingFailure increments the failed listing counter.
func RecordListingFailure() {
	DefaultMetrics.ListingFailures.Inc()
}

// RecordFetchOutcome increments the fetch outcome counter.
func RecordFetchOutcome(outcome string) {
	DefaultMetrics.FetchOutcomes.WithLabelValues(outcome).Inc()
}

// RecordWatermarkHeld increments the held-watermark counter.
func RecordWatermarkHeld() {
	DefaultMetrics.WatermarkHeld.Inc()
}

// RecordWake increments the wake signal counter.
func RecordWake() {
	DefaultMetrics.WakeSignals.Inc()
}

// RecordMatches adds n classifier matches.
func RecordMatches(n int) {
	DefaultMetrics.MatchesTotal.Add(float64(n))
}

// RecordDuplicate increments the duplicate counter for key ("signature" or "token").
func RecordDuplicate(key string) {
	DefaultMetrics.DuplicatesSkipped.WithLabelValues(key).Inc()
}

// UpdateResultsSize sets the retained results gauge.
func UpdateResultsSize(n int) {
	DefaultMetrics.ResultsSize.Set(float64(n))
}

// RecordMetadataLookup records a metadata lookup result ("found", "absent", "error").
func RecordMetadataLookup(source, result string) {
	DefaultMetrics.MetadataLookups.WithLabelValues(source, result).Inc()
}

// RecordPublishError increments the feed publish error counter.
func RecordPublishError() {
	DefaultMetrics.PublishErrors.Inc()
}
