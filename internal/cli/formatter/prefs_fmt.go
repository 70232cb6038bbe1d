package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/sortir/internal/domain"
)

// FormatPreferences renders the parsed preference rules. Absent rules are
// shown as such so the user can tell them apart from empty lists.
func FormatPreferences(p domain.Preferences, path string) string {
	var b strings.Builder
	b.WriteString(Header("Preferences") + "\n")
	b.WriteString(Dim(path) + "\n\n")

	likes := p.Likes
	if strings.TrimSpace(likes) == "" {
		likes = Dim("(none, ranking uses borough order only)")
	}
	fmt.Fprintf(&b, "%s\n  %s\n\n", Bold("Likes"), likes)

	hf := p.HardFilters
	b.WriteString(Bold("Hard filters") + "\n")
	if hf.IsEmpty() {
		b.WriteString("  " + Dim("none, every event in the window is eligible") + "\n")
		return b.String()
	}

	rows := [][]string{
		{"Boroughs", list(hf.BoroughAllow)},
		{"Event types", list(hf.EventTypeAllow)},
		{"Excluded places", list(hf.LocationExclude)},
		{"Audiences", list(hf.AudienceAllow)},
		{"Exclude children", flag(hf.ExcludeChildren)},
		{"Max price", price(hf.MaxPrice)},
		{"Free only", flag(hf.FreeOnly)},
	}
	if len(hf.ChildrenKeywords) > 0 {
		rows = append(rows, []string{"Children keywords", list(hf.ChildrenKeywords)})
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s %s\n", StyleDim.Render(fmt.Sprintf("%-18s", r[0])), r[1])
	}
	return b.String()
}

func list(items []string) string {
	if len(items) == 0 {
		return Dim("any")
	}
	return strings.Join(items, ", ")
}

func flag(v *bool) string {
	switch {
	case v == nil:
		return Dim("unset")
	case *v:
		return StyleGreen.Render("yes")
	default:
		return "no"
	}
}

func price(v *float64) string {
	if v == nil {
		return Dim("unset")
	}
	return fmt.Sprintf("%.2f $", *v)
}
