package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/google/uuid"
)

var testRecordCounter atomic.Int64

// RecordOption customizes a fixture record.
type RecordOption func(*domain.Record)

func WithID(id string) RecordOption {
	return func(r *domain.Record) { r.ID = id }
}

func WithBorough(b string) RecordOption {
	return func(r *domain.Record) { r.Borough = b }
}

func WithEventType(t string) RecordOption {
	return func(r *domain.Record) { r.EventType = t }
}

func WithAudience(a string) RecordOption {
	return func(r *domain.Record) { r.Audience = a }
}

func WithLocation(l string) RecordOption {
	return func(r *domain.Record) {
		r.Location = l
		r.VenueDisplay = l
	}
}

func WithDescription(d string) RecordOption {
	return func(r *domain.Record) { r.Description = d }
}

// WithCost sets the cost label and derives IsFree the way the normalizer does.
func WithCost(c string) RecordOption {
	return func(r *domain.Record) {
		r.Cost = c
		r.IsFree = domain.ContainsAnyFold(c, domain.DefaultFreeKeywords)
	}
}

func WithStart(t time.Time) RecordOption {
	return func(r *domain.Record) { r.StartTime = &t }
}

func WithCoordinates(lat, lon float64) RecordOption {
	return func(r *domain.Record) {
		r.Latitude = &lat
		r.Longitude = &lon
	}
}

func WithWeather(tempC, rainPct float64) RecordOption {
	return func(r *domain.Record) {
		r.Temperature = &tempC
		r.PrecipitationProbability = &rainPct
	}
}

func WithSemanticScore(s float64) RecordOption {
	return func(r *domain.Record) { r.SemanticScore = &s }
}

// NewTestRecord returns a record with a unique listing URL starting tomorrow
// at noon UTC.
func NewTestRecord(title string, opts ...RecordOption) domain.Record {
	n := testRecordCounter.Add(1)
	slug := strings.ToLower(strings.ReplaceAll(title, " ", "-"))
	start := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1).Add(12 * time.Hour)
	r := domain.Record{
		ID:        fmt.Sprintf("https://example.test/evenements/%s-%d", slug, n),
		Title:     title,
		StartTime: &start,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}
