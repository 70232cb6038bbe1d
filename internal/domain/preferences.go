package domain

// DefaultChildrenKeywords is used by the exclude-children rule when neither
// the preferences nor the application config supply a keyword set.
var DefaultChildrenKeywords = []string{"enfant", "jeunesse", "jeunes", "ados"}

// DefaultFreeKeywords marks a cost label as free.
var DefaultFreeKeywords = []string{"gratuit", "free"}

// Preferences is the user-supplied configuration for one pipeline run.
// It is read once at the start of the run and never mutated afterwards.
type Preferences struct {
	Likes       string
	HardFilters HardFilters
}

// HardFilters holds the optional allow/deny rules. A nil slice or nil
// pointer means the rule is absent and applies no constraint.
type HardFilters struct {
	// BoroughAllow is ordered: earlier entries are preferred by the blender.
	BoroughAllow    []string
	EventTypeAllow  []string
	LocationExclude []string
	AudienceAllow   []string
	ExcludeChildren *bool
	MaxPrice        *float64
	FreeOnly        *bool

	// ChildrenKeywords overrides the configured keyword set when non-empty.
	ChildrenKeywords []string
}

// IsEmpty reports whether no rule is configured.
func (h HardFilters) IsEmpty() bool {
	return len(h.BoroughAllow) == 0 &&
		len(h.EventTypeAllow) == 0 &&
		len(h.LocationExclude) == 0 &&
		len(h.AudienceAllow) == 0 &&
		!ValueOr(false, h.ExcludeChildren) &&
		h.MaxPrice == nil &&
		!ValueOr(false, h.FreeOnly)
}

// BoroughOrder returns the ordered borough preference list used as a ranking
// weight source. It is a separate read path from the allow-list filter even
// though both come from the same configured list.
func (p Preferences) BoroughOrder() []string {
	if len(p.HardFilters.BoroughAllow) == 0 {
		return nil
	}
	out := make([]string, len(p.HardFilters.BoroughAllow))
	copy(out, p.HardFilters.BoroughAllow)
	return out
}
