package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/alexanderramin/sortir/internal/domain"
)

// Keywords are the language-specific token sets the rules match against.
type Keywords struct {
	Free     []string `koanf:"free_keywords"`
	Children []string `koanf:"children_keywords"`
}

// DefaultKeywords returns the French/English defaults.
func DefaultKeywords() Keywords {
	return Keywords{Free: domain.DefaultFreeKeywords, Children: domain.DefaultChildrenKeywords}
}

var priceRe = regexp.MustCompile(`\d+[.,]?\d*`)

// predicate reports whether a record satisfies one rule. Rules skip records
// lacking the field they inspect.
type predicate func(domain.Record) bool

// Hard keeps records that satisfy every configured rule. An empty rule set
// returns the input unchanged (as a copy).
func Hard(records []domain.Record, rules domain.HardFilters, kw Keywords) []domain.Record {
	preds := compile(rules, kw)
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if all(preds, r) {
			out = append(out, r)
		}
	}
	return out
}

func all(preds []predicate, r domain.Record) bool {
	for _, p := range preds {
		if !p(r) {
			return false
		}
	}
	return true
}

func compile(rules domain.HardFilters, kw Keywords) []predicate {
	var preds []predicate

	if len(rules.BoroughAllow) > 0 {
		allow := foldSet(rules.BoroughAllow)
		preds = append(preds, func(r domain.Record) bool {
			return r.Borough == "" || allow[strings.ToLower(r.Borough)]
		})
	}
	if len(rules.EventTypeAllow) > 0 {
		allow := foldSet(rules.EventTypeAllow)
		preds = append(preds, func(r domain.Record) bool {
			return r.EventType == "" || allow[strings.ToLower(r.EventType)]
		})
	}
	if len(rules.LocationExclude) > 0 {
		deny := rules.LocationExclude
		preds = append(preds, func(r domain.Record) bool {
			return r.Location == "" || !domain.ContainsAnyFold(r.Location, deny)
		})
	}
	if len(rules.AudienceAllow) > 0 {
		allow := foldSet(rules.AudienceAllow)
		preds = append(preds, func(r domain.Record) bool {
			return r.Audience == "" || allow[strings.ToLower(r.Audience)]
		})
	}
	if domain.ValueOr(false, rules.ExcludeChildren) {
		children := kw.Children
		if len(rules.ChildrenKeywords) > 0 {
			children = rules.ChildrenKeywords
		}
		preds = append(preds, func(r domain.Record) bool {
			return r.Audience == "" || !domain.ContainsAnyFold(r.Audience, children)
		})
	}
	if domain.ValueOr(false, rules.FreeOnly) {
		preds = append(preds, func(r domain.Record) bool {
			return r.Cost == "" || domain.ContainsAnyFold(r.Cost, kw.Free)
		})
	}
	if rules.MaxPrice != nil {
		ceiling := *rules.MaxPrice
		preds = append(preds, func(r domain.Record) bool {
			if r.Cost == "" || domain.ContainsAnyFold(r.Cost, kw.Free) {
				return true
			}
			price, ok := ParsePrice(r.Cost)
			return !ok || price <= ceiling
		})
	}
	return preds
}

// ParsePrice extracts the first decimal number in a cost label. A comma is
// read as a decimal separator.
func ParsePrice(label string) (float64, bool) {
	m := priceRe.FindString(label)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func foldSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}
