package domain

import (
	"strings"
	"time"
)

// Record is one public-event listing. String attributes use "" for absent;
// numeric and temporal attributes use nil.
type Record struct {
	// ID is the canonical listing URL. Downstream set-membership checks
	// (judge validation, padding) key on it.
	ID          string
	Title       string
	Description string

	StartTime *time.Time
	EndTime   *time.Time

	Latitude  *float64
	Longitude *float64

	Borough   string
	EventType string
	Audience  string
	Location  string
	Address   string
	Cost      string

	// Derived once by the normalizer.
	IsFree       bool
	VenueDisplay string

	// Stage-owned scores. Each stage writes only its own field.
	SemanticScore *float64
	BoroughWeight *float64
	CombinedScore *float64

	// Weather enrichment.
	Temperature              *float64
	PrecipitationProbability *float64
}

// HasCoordinates reports whether both latitude and longitude are present.
func (r Record) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// HasWeather reports whether both weather values are present.
func (r Record) HasWeather() bool {
	return r.Temperature != nil && r.PrecipitationProbability != nil
}

// Semantic returns the semantic score, or 0 when the ranker has not run.
func (r Record) Semantic() float64 {
	return ValueOr(0, r.SemanticScore)
}

// Combined returns the combined score, or 0 when the blender has not run.
func (r Record) Combined() float64 {
	return ValueOr(0, r.CombinedScore)
}

// CloneRecords returns a shallow copy of records so a stage can annotate its
// output without touching its input.
func CloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// ContainsAnyFold reports whether s contains any of tokens, ignoring case.
// Empty tokens never match.
func ContainsAnyFold(s string, tokens []string) bool {
	lower := strings.ToLower(s)
	for _, tok := range tokens {
		tok = strings.ToLower(tok)
		if tok == "" {
			continue
		}
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
