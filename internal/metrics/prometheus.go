package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billpipe_bills_total",
			Help: "Bill rows handled by the ingestion orchestrator, by outcome",
		},
		[]string{"outcome"},
	)

	BillsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billpipe_bills_skipped_total",
			Help: "New bills left unpersisted, by reason",
		},
		[]string{"reason"},
	)

	EnrichmentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billpipe_enrichment_failures_total",
			Help: "Failed enrichment sub-calls",
		},
		[]string{"part"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billpipe_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billpipe_cycle_duration_seconds",
			Help:    "Ingestion cycle duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800},
		},
		[]string{"kind"},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billpipe_cache_hits_total",
			Help: "Embedding cache hits",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billpipe_cache_misses_total",
			Help: "Embedding cache misses",
		},
	)

	StatusLinks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billpipe_status_links_total",
			Help: "Bill status rows touched by link synchronization",
		},
		[]string{"action"},
	)

	SinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billpipe_sink_errors_total",
			Help: "Failed writes to optional mirror sinks",
		},
		[]string{"sink"},
	)

	LastCycleTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "billpipe_last_cycle_timestamp_seconds",
			Help: "Unix time the last ingestion cycle finished",
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			BillsTotal,
			BillsSkipped,
			EnrichmentFailures,
			LLMTokensUsed,
			CycleDuration,
			CacheHits,
			CacheMisses,
			StatusLinks,
			SinkErrors,
			LastCycleTimestamp,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
