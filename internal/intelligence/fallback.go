package intelligence

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
)

// FallbackMaxEntries caps the deterministic digest.
const FallbackMaxEntries = 10

const (
	dateLabelLayout = "2006-01-02"
	startLayout     = "Mon, Jan 02"

	// Empty-report messages, one per stage that can run dry.
	MsgNoEvents    = "No events were found in the dataset."
	MsgNoUsable    = "No usable events were found in the dataset."
	MsgNoUpcoming  = "No upcoming events fall within this week's window."
	MsgNoMatches   = "No events matched your filters this week."
	MsgNoSelection = "No events were selected this week."
)

// Heading renders the title and intro shared by every report.
func Heading(runDate time.Time) string {
	return fmt.Sprintf("# Montréal Events — Week of %s\n\nHere are this week's highlights. Weather notes are approximate.\n",
		runDate.Format(dateLabelLayout))
}

// RenderEmpty renders a report stating that nothing is listed and why.
func RenderEmpty(runDate time.Time, msg string) string {
	return Heading(runDate) + "\n_" + msg + "_\n"
}

// RenderFallback renders the deterministic digest: the heading and one
// Top Picks bullet per record, up to maxEntries.
func RenderFallback(records []domain.Record, runDate time.Time, maxEntries int) string {
	if len(records) == 0 {
		return RenderEmpty(runDate, MsgNoMatches)
	}
	if maxEntries <= 0 || maxEntries > len(records) {
		maxEntries = len(records)
	}

	var b strings.Builder
	b.WriteString(Heading(runDate))
	b.WriteString("\n## Top Picks\n")
	for _, r := range records[:maxEntries] {
		b.WriteString(bullet(r))
	}
	return b.String()
}

// bullet renders one entry. Absent attributes are omitted together with
// their separator.
func bullet(r domain.Record) string {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = "Untitled event"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- **%s**", title)
	if r.Borough != "" {
		fmt.Fprintf(&b, " (%s)", r.Borough)
	}
	if r.StartTime != nil {
		b.WriteString(" — " + r.StartTime.Format(startLayout))
	}
	if r.EventType != "" {
		b.WriteString(" — " + r.EventType)
	}
	if r.IsFree {
		b.WriteString(" — free")
	}
	if r.HasWeather() {
		fmt.Fprintf(&b, " — %.1f°C, %.0f%% rain", *r.Temperature, *r.PrecipitationProbability)
	}
	b.WriteString("\n")
	if r.ID != "" {
		b.WriteString("  " + r.ID + "\n")
	}
	return b.String()
}
