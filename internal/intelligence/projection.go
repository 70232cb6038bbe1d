package intelligence

import (
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
)

const (
	judgeTitleChars = 200
	judgeDescChars  = 700
	digestDescChars = 400
)

// EventProjection is the reduced view of a record sent to the model.
// The URL doubles as the identifier the judge must echo back.
type EventProjection struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Borough     string   `json:"borough,omitempty"`
	EventType   string   `json:"event_type,omitempty"`
	Start       string   `json:"start,omitempty"`
	IsFree      bool     `json:"is_free"`
	Audience    string   `json:"audience,omitempty"`
	Location    string   `json:"location,omitempty"`
	Temperature *float64 `json:"temp_c,omitempty"`
	RainProb    *float64 `json:"rain_prob,omitempty"`
	Description string   `json:"desc,omitempty"`
}

// Project builds projections, truncating free text to descChars runes.
func Project(records []domain.Record, descChars int) []EventProjection {
	out := make([]EventProjection, len(records))
	for i, r := range records {
		p := EventProjection{
			Title:       truncateRunes(r.Title, judgeTitleChars),
			URL:         r.ID,
			Borough:     r.Borough,
			EventType:   r.EventType,
			IsFree:      r.IsFree,
			Audience:    r.Audience,
			Location:    r.VenueDisplay,
			Temperature: r.Temperature,
			RainProb:    r.PrecipitationProbability,
			Description: truncateRunes(r.Description, descChars),
		}
		if r.StartTime != nil {
			p.Start = r.StartTime.Format(time.RFC3339)
		}
		out[i] = p
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
