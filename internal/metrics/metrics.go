// Package metrics registers the Prometheus collectors for the digest
// pipeline, its external capabilities, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline runs by trigger (batch, api) and result (ok, no_data, error).
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sortir_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"trigger", "result"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sortir_pipeline_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"trigger"},
	)

	// StageRecords is the record count leaving each stage of the last run.
	StageRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sortir_stage_records",
			Help: "Records remaining after each pipeline stage in the most recent run",
		},
		[]string{"stage"}, // raw, window, filtered, ranked, shortlist, final
	)

	// External capability outcomes (ok, unavailable, errored, invalid).
	CapabilityOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sortir_capability_outcomes_total",
			Help: "Outcomes of external capability calls",
		},
		[]string{"capability", "outcome"}, // judge, digest, weather, embed
	)

	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sortir_fallbacks_total",
			Help: "Times a deterministic fallback replaced an external capability",
		},
		[]string{"capability"},
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sortir_llm_call_duration_seconds",
			Help:    "Duration of LLM calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"task", "status"},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sortir_llm_tokens_total",
			Help: "Tokens consumed by LLM calls",
		},
		[]string{"task", "kind"}, // kind: prompt, completion
	)

	WeatherLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sortir_weather_lookups_total",
			Help: "Weather lookups by result",
		},
		[]string{"result"}, // ok, missing, rejected
	)

	EmbedCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sortir_embed_cache_hits_total",
			Help: "Embedding cache hits",
		},
	)

	EmbedCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sortir_embed_cache_misses_total",
			Help: "Embedding cache misses",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sortir_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sortir_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sortir_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordStage sets the record count for a stage.
func RecordStage(stage string, n int) {
	StageRecords.WithLabelValues(stage).Set(float64(n))
}

// RecordOutcome counts one capability outcome.
func RecordOutcome(capability, outcome string) {
	CapabilityOutcomes.WithLabelValues(capability, outcome).Inc()
}

// RecordLLMCall records latency and token usage of one LLM call.
func RecordLLMCall(task, status string, latency time.Duration, promptTokens, completionTokens int) {
	LLMCallDuration.WithLabelValues(task, status).Observe(latency.Seconds())
	if promptTokens > 0 {
		LLMTokens.WithLabelValues(task, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokens.WithLabelValues(task, "completion").Add(float64(completionTokens))
	}
}

// RecordRun counts a finished pipeline run.
func RecordRun(trigger, result string, d time.Duration) {
	PipelineRuns.WithLabelValues(trigger, result).Inc()
	PipelineDuration.WithLabelValues(trigger).Observe(d.Seconds())
}
