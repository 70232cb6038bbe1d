package weather

import (
	"context"
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Lookuper returns the forecast at a place and time.
type Lookuper interface {
	Lookup(ctx context.Context, lat, lon float64, at time.Time) Observation
}

// Enrich returns a copy of records with weather set on every record that has
// coordinates and a start time. The forecast hour is the start date at
// targetHour local time. At most concurrency lookups run at once.
func Enrich(ctx context.Context, records []domain.Record, l Lookuper, targetHour, concurrency int) []domain.Record {
	out := domain.CloneRecords(records)
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range out {
		r := out[i]
		if !r.HasCoordinates() || r.StartTime == nil {
			continue
		}
		g.Go(func() error {
			obs := l.Lookup(gctx, *r.Latitude, *r.Longitude, TargetTime(*r.StartTime, targetHour))
			out[i].Temperature = obs.Temperature
			out[i].PrecipitationProbability = obs.RainProbability
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// TargetTime is start's calendar date at hour:00 in start's location.
func TargetTime(start time.Time, hour int) time.Time {
	return time.Date(start.Year(), start.Month(), start.Day(), hour, 0, 0, 0, start.Location())
}
