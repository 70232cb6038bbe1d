// Package normalize maps raw open-data rows onto domain.Record.
//
// Rows keep their cardinality and order: nothing is dropped, deduplicated,
// or trimmed. Values that fail to coerce become absent rather than zero.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
)

// RawRecord is one source row keyed by column name. Values come from CSV
// (strings) or JSON (strings, numbers, nulls).
type RawRecord map[string]any

// Column aliases, French dataset names first.
var (
	colID          = []string{"url_fiche", "url", "id"}
	colTitle       = []string{"titre", "title"}
	colDescription = []string{"description"}
	colStart       = []string{"date_debut", "start_date", "start_datetime"}
	colEnd         = []string{"date_fin", "end_date", "end_datetime"}
	colLat         = []string{"lat", "latitude"}
	colLon         = []string{"long", "lon", "longitude"}
	colBorough     = []string{"arrondissement", "borough"}
	colEventType   = []string{"type_evenement", "event_type"}
	colAudience    = []string{"public_cible", "audience"}
	colLocation    = []string{"emplacement", "location"}
	colAddress     = []string{"titre_adresse", "address", "venue"}
	colCost        = []string{"cout", "cost"}
)

// timeLayouts are tried in order. Layouts without an offset are read in the
// civil timezone passed to Normalize.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize converts raw rows into records, one per row, in input order.
func Normalize(raw []RawRecord, loc *time.Location, freeKeywords []string) []domain.Record {
	if loc == nil {
		loc = time.Local
	}
	out := make([]domain.Record, len(raw))
	for i, row := range raw {
		out[i] = normalizeRow(row, loc, freeKeywords)
	}
	return out
}

func normalizeRow(row RawRecord, loc *time.Location, freeKeywords []string) domain.Record {
	r := domain.Record{
		ID:          row.str(colID),
		Title:       row.str(colTitle),
		Description: row.str(colDescription),
		StartTime:   ParseTime(row.str(colStart), loc),
		EndTime:     ParseTime(row.str(colEnd), loc),
		Latitude:    row.float(colLat),
		Longitude:   row.float(colLon),
		Borough:     row.str(colBorough),
		EventType:   row.str(colEventType),
		Audience:    row.str(colAudience),
		Location:    row.str(colLocation),
		Address:     row.str(colAddress),
		Cost:        row.str(colCost),
	}
	r.IsFree = domain.ContainsAnyFold(r.Cost, freeKeywords)
	r.VenueDisplay = venueDisplay(r.Address, r.Borough)
	return r
}

func venueDisplay(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// lookup returns the first alias present with a non-nil value.
func (row RawRecord) lookup(aliases []string) (any, bool) {
	for _, k := range aliases {
		if v, ok := row[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (row RawRecord) str(aliases []string) string {
	v, ok := row.lookup(aliases)
	if !ok {
		return ""
	}
	return stringify(v)
}

func (row RawRecord) float(aliases []string) *float64 {
	v, ok := row.lookup(aliases)
	if !ok {
		return nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(stringify(v)), 64)
		if err != nil {
			return nil
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// ParseTime parses a source timestamp. Naive values are read in loc; values
// carrying an offset are converted to loc. Returns nil when unparsable.
func ParseTime(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			t = t.In(loc)
			return &t
		}
	}
	return nil
}
