package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/sortir/internal/service"
)

const funnelBarWidth = 20

// FormatRunSummary renders the outcome of one pipeline run: capability
// outcomes, the report location and the per-stage funnel.
func FormatRunSummary(res *service.RunResult, dryRun bool) string {
	var b strings.Builder

	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", StyleDim.Render(fmt.Sprintf("%-10s", label)), value)
	}
	row("Run", TruncID(res.RunID))
	row("Model", StyleFg.Render(res.ModelUsed))
	row("Judge", OutcomeBadge(string(res.JudgeOutcome)))
	row("Digest", OutcomeBadge(string(res.DigestOutcome)))
	row("Latency", FormatDuration(res.Latency))
	if res.Usage != nil {
		row("Tokens", fmt.Sprintf("%d (%d prompt, %d completion)",
			res.Usage.TotalTokens, res.Usage.PromptTokens, res.Usage.CompletionTokens))
	}
	switch {
	case res.ReportPath != "":
		row("Report", StyleGreen.Render(res.ReportPath))
	default:
		row("Report", StyleYellow.Render("not written"))
	}
	if dryRun {
		row("Mode", StyleYellow.Render("dry run, last run unchanged"))
	}
	if res.EmptyReason != "" {
		b.WriteString("\n" + StyleYellow.Render(res.EmptyReason) + "\n")
	}
	if res.DuplicateIDs > 0 {
		b.WriteString(StyleYellow.Render(fmt.Sprintf("%d shortlist records had a missing or repeated URL", res.DuplicateIDs)) + "\n")
	}

	b.WriteString("\n" + formatFunnel(res) + "\n")
	return RenderBox("Weekly digest", strings.TrimRight(b.String(), "\n")) + "\n"
}

func formatFunnel(res *service.RunResult) string {
	c := res.Counts
	stages := []struct {
		name string
		n    int
	}{
		{"raw", c.Raw},
		{"window", c.Window},
		{"filtered", c.Filtered},
		{"ranked", c.Ranked},
		{"shortlist", c.Shortlist},
		{"final", c.Final},
	}

	rows := make([][]string, 0, len(stages))
	for _, s := range stages {
		pct := 0.0
		if c.Raw > 0 {
			pct = float64(s.n) / float64(c.Raw)
		}
		rows = append(rows, []string{s.name, strconv.Itoa(s.n), RenderProgress(pct, funnelBarWidth)})
	}
	return RenderTable([]string{"STAGE", "EVENTS", ""}, rows)
}
