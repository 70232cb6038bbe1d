package formatter

import (
	"strconv"
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
)

// FormatHistory renders recorded runs, newest first, relative to now.
func FormatHistory(runs []*domain.Run, now time.Time) string {
	if len(runs) == 0 {
		return Dim("No runs recorded yet.") + "\n"
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		status := StyleGreen.Render("ok")
		if r.Error != "" {
			status = StyleRed.Render("error")
		}
		rows = append(rows, []string{
			TruncID(r.ID),
			HumanTimestampFrom(r.StartedAt, now),
			TriggerBadge(r.Trigger),
			status,
			strconv.Itoa(r.Counts.Raw),
			strconv.Itoa(r.Counts.Final),
			OutcomeBadge(r.JudgeOutcome),
			OutcomeBadge(r.DigestOutcome),
			FormatDuration(r.Duration()),
		})
	}

	return Header("Recent runs") + "\n" +
		RenderTable([]string{"ID", "STARTED", "TRIGGER", "STATUS", "RAW", "FINAL", "JUDGE", "DIGEST", "TOOK"}, rows)
}
