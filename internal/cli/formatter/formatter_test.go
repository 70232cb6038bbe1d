package formatter

import (
	"regexp"
	"testing"
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/intelligence"
	"github.com/alexanderramin/sortir/internal/llm"
	"github.com/alexanderramin/sortir/internal/service"
	"github.com/stretchr/testify/assert"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func TestFormatRunSummary(t *testing.T) {
	res := &service.RunResult{
		RunID:         "0123456789abcdef",
		ModelUsed:     "llama3.1",
		JudgeOutcome:  intelligence.OutcomeOK,
		DigestOutcome: intelligence.OutcomeUnavailable,
		Latency:       4200 * time.Millisecond,
		Usage:         &llm.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
		ReportPath:    "reports/weekly.md",
		DuplicateIDs:  2,
		Counts:        domain.StageCounts{Raw: 40, Window: 20, Filtered: 10, Ranked: 10, Shortlist: 10, Final: 5},
	}

	out := stripANSI(FormatRunSummary(res, true))
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "● ok")
	assert.Contains(t, out, "● unavailable")
	assert.Contains(t, out, "4.2s")
	assert.Contains(t, out, "150 (100 prompt, 50 completion)")
	assert.Contains(t, out, "reports/weekly.md")
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "2 shortlist records")
	assert.Contains(t, out, "shortlist")
	assert.Contains(t, out, " 50%")
	assert.Contains(t, out, "100%")
}

func TestFormatRunSummary_EmptyReport(t *testing.T) {
	res := &service.RunResult{
		ModelUsed:     service.ModelFallback,
		JudgeOutcome:  intelligence.OutcomeSkipped,
		DigestOutcome: intelligence.OutcomeSkipped,
		EmptyReason:   intelligence.MsgNoMatches,
	}

	out := stripANSI(FormatRunSummary(res, false))
	assert.Contains(t, out, intelligence.MsgNoMatches)
	assert.Contains(t, out, "○ skipped")
	assert.Contains(t, out, "not written")
	assert.Contains(t, out, "  0%")
	assert.NotContains(t, out, "Tokens")
}

func TestFormatHistory(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	runs := []*domain.Run{
		{
			ID:            "aaaaaaaa-1111",
			Trigger:       domain.TriggerBatch,
			StartedAt:     now.Add(-2 * time.Hour),
			FinishedAt:    now.Add(-2*time.Hour + 90*time.Second),
			Counts:        domain.StageCounts{Raw: 120, Final: 10},
			JudgeOutcome:  "ok",
			DigestOutcome: "ok",
		},
		{
			ID:         "bbbbbbbb-2222",
			Trigger:    domain.TriggerBatch,
			StartedAt:  now.AddDate(0, 0, -8),
			FinishedAt: now.AddDate(0, 0, -8).Add(300 * time.Millisecond),
			Error:      "acquiring events: timeout",
		},
	}

	out := stripANSI(FormatHistory(runs, now))
	assert.Contains(t, out, "RECENT RUNS")
	assert.Contains(t, out, "aaaaaaaa")
	assert.Contains(t, out, "2h ago")
	assert.Contains(t, out, "1m 30s")
	assert.Contains(t, out, "120")
	assert.Contains(t, out, "error")
	assert.Contains(t, out, "Jun 2, 2024")
	assert.Contains(t, out, "300ms")
	assert.Contains(t, out, "○ n/a")
}

func TestFormatHistory_Empty(t *testing.T) {
	assert.Equal(t, "No runs recorded yet.\n", stripANSI(FormatHistory(nil, time.Now())))
}

func TestFormatPreferences(t *testing.T) {
	price := 12.5
	yes := true
	p := domain.Preferences{
		Likes: "jazz",
		HardFilters: domain.HardFilters{
			BoroughAllow:    []string{"Verdun", "Outremont"},
			MaxPrice:        &price,
			ExcludeChildren: &yes,
		},
	}

	out := stripANSI(FormatPreferences(p, "preferences.json"))
	assert.Contains(t, out, "preferences.json")
	assert.Contains(t, out, "jazz")
	assert.Contains(t, out, "Verdun, Outremont")
	assert.Contains(t, out, "12.50 $")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "unset")
	assert.NotContains(t, out, "Children keywords")
}

func TestFormatPreferences_Empty(t *testing.T) {
	out := stripANSI(FormatPreferences(domain.Preferences{}, "p.json"))
	assert.Contains(t, out, "ranking uses borough order only")
	assert.Contains(t, out, "every event in the window is eligible")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0ms", FormatDuration(0))
	assert.Equal(t, "850ms", FormatDuration(850*time.Millisecond))
	assert.Equal(t, "4.2s", FormatDuration(4200*time.Millisecond))
	assert.Equal(t, "1m 05s", FormatDuration(65*time.Second))
}

func TestRenderTable_AlignsStyledCells(t *testing.T) {
	out := stripANSI(RenderTable([]string{"A", "B"}, [][]string{{StyleGreen.Render("long"), "x"}, {"s", "y"}}))
	assert.Equal(t, "A     B\n────  ─\nlong  x\ns     y\n", out)
}

func TestRenderProgress_Clamps(t *testing.T) {
	assert.Equal(t, "[██] 100%", stripANSI(RenderProgress(1.7, 1)))
	assert.Equal(t, "[░░░░]   0%", stripANSI(RenderProgress(-1, 4)))
}
