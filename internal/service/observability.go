package service

import (
	"context"
	"time"

	"github.com/alexanderramin/sortir/internal/logging"
	"github.com/alexanderramin/sortir/internal/metrics"
	"github.com/rs/zerolog"
)

// UseCaseEvent captures execution telemetry for one service use case.
type UseCaseEvent struct {
	Name      string
	Trigger   string
	Result    string
	Duration  time.Duration
	Err       error
	Fields    map[string]any
	StartedAt time.Time
}

// UseCaseObserver receives use-case execution events.
type UseCaseObserver interface {
	ObserveUseCase(ctx context.Context, event UseCaseEvent)
}

// NoopUseCaseObserver ignores all events.
type NoopUseCaseObserver struct{}

func (NoopUseCaseObserver) ObserveUseCase(context.Context, UseCaseEvent) {}

// LogUseCaseObserver logs each event with the run-scoped logger.
type LogUseCaseObserver struct{}

func (LogUseCaseObserver) ObserveUseCase(ctx context.Context, event UseCaseEvent) {
	log := logging.Ctx(ctx)
	var e *zerolog.Event
	if event.Err != nil {
		e = log.Error().Err(event.Err)
	} else {
		e = log.Info()
	}
	e = e.Str("use_case", event.Name).
		Str("trigger", event.Trigger).
		Str("result", event.Result).
		Int64("duration_ms", event.Duration.Milliseconds())
	for k, v := range event.Fields {
		e = e.Interface(k, v)
	}
	e.Msg("service_use_case")
}

// MetricsUseCaseObserver counts runs and their duration.
type MetricsUseCaseObserver struct{}

func (MetricsUseCaseObserver) ObserveUseCase(_ context.Context, event UseCaseEvent) {
	metrics.RecordRun(event.Trigger, event.Result, event.Duration)
}

// MultiUseCaseObserver fans out to several observers.
type MultiUseCaseObserver []UseCaseObserver

func (m MultiUseCaseObserver) ObserveUseCase(ctx context.Context, event UseCaseEvent) {
	for _, o := range m {
		if o != nil {
			o.ObserveUseCase(ctx, event)
		}
	}
}

func useCaseObserverOrNoop(obs UseCaseObserver) UseCaseObserver {
	if obs == nil {
		return NoopUseCaseObserver{}
	}
	return obs
}
