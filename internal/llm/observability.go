package llm

import (
	"strings"
	"time"

	"github.com/alexanderramin/sortir/internal/metrics"
	"github.com/rs/zerolog"
)

// LLMCallEvent records metadata about a single LLM invocation.
type LLMCallEvent struct {
	Task      TaskType
	Model     string
	LatencyMs int64
	Success   bool
	ErrorCode string
	Usage     *Usage
}

// Observer receives events about LLM calls for logging and metrics.
type Observer interface {
	OnCallComplete(event LLMCallEvent)
}

// LogObserver writes LLM call events to a zerolog logger.
type LogObserver struct {
	log zerolog.Logger
}

// NewLogObserver creates an Observer that logs events at debug level,
// and failures at warn.
//
//nolint:gocritic // zerolog.Logger is passed by value by design of the library
func NewLogObserver(log zerolog.Logger) *LogObserver {
	return &LogObserver{log: log.With().Str("component", "llm").Logger()}
}

func (o *LogObserver) OnCallComplete(event LLMCallEvent) {
	ev := o.log.Debug()
	if !event.Success {
		ev = o.log.Warn().Str("error_code", event.ErrorCode)
	}
	ev = ev.Str("task", string(event.Task)).
		Str("model", event.Model).
		Int64("latency_ms", event.LatencyMs).
		Bool("success", event.Success)
	if event.Usage != nil {
		ev = ev.Int("prompt_tokens", event.Usage.PromptTokens).
			Int("completion_tokens", event.Usage.CompletionTokens)
	}
	ev.Msg("llm_call")
}

// NoopObserver discards all events. Useful for tests.
type NoopObserver struct{}

func (NoopObserver) OnCallComplete(LLMCallEvent) {}

// MultiObserver fans an event out to several observers.
type MultiObserver []Observer

func (m MultiObserver) OnCallComplete(event LLMCallEvent) {
	for _, o := range m {
		if o != nil {
			o.OnCallComplete(event)
		}
	}
}

// MetricsObserver records LLM call latency and token usage in Prometheus.
type MetricsObserver struct{}

func (MetricsObserver) OnCallComplete(event LLMCallEvent) {
	status := "ok"
	if !event.Success {
		status = strings.ToLower(event.ErrorCode)
	}
	var prompt, completion int
	if event.Usage != nil {
		prompt, completion = event.Usage.PromptTokens, event.Usage.CompletionTokens
	}
	metrics.RecordLLMCall(string(event.Task), status,
		time.Duration(event.LatencyMs)*time.Millisecond, prompt, completion)
}
