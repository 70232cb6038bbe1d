// Package filter holds the record-dropping stages of the pipeline: the
// temporal window and the hard preference constraints. Both are pure and
// return a new slice, leaving their input untouched.
package filter

import (
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
)

// Window keeps records whose start time falls in [now, now+days).
// Records without a start time are dropped. days <= 0 yields nothing.
func Window(records []domain.Record, now time.Time, days int) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	if days <= 0 {
		return out
	}
	end := now.AddDate(0, 0, days)
	for _, r := range records {
		if r.StartTime == nil {
			continue
		}
		if !r.StartTime.Before(now) && r.StartTime.Before(end) {
			out = append(out, r)
		}
	}
	return out
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
