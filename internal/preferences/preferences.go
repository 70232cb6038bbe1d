// Package preferences reads and writes the user preference document.
//
// Decoding is lenient: only the top level must be a JSON object, and a rule
// holding a value of the wrong type is dropped rather than rejected.
package preferences

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/goccy/go-json"
)

// ErrInvalid is returned when the preference document is not a
// JSON object.
var ErrInvalid = errors.New("invalid preferences document")

// Each rule accepts its French key and an English alias. The first key
// present wins.
var (
	keyBoroughAllow     = []string{"arrondissement_allow", "borough_allow"}
	keyEventTypeAllow   = []string{"type_evenement_allow", "event_type_allow"}
	keyLocationExclude  = []string{"emplacement_exclude", "location_exclude"}
	keyAudienceAllow    = []string{"audience_allow"}
	keyExcludeChildren  = []string{"exclude_children"}
	keyMaxPrice         = []string{"max_price"}
	keyFreeOnly         = []string{"free_only"}
	keyChildrenKeywords = []string{"children_keywords"}
)

// Load reads the preference document at path. A missing file
// yields empty preferences.
func Load(path string) (domain.Preferences, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Preferences{}, nil
	}
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("reading preferences: %w", err)
	}
	return Parse(data)
}

// Parse decodes a preference document. Only the top level must be
// an object; every rule of the wrong type is treated as absent.
func Parse(data []byte) (domain.Preferences, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return domain.Preferences{}, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Preferences{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return FromMap(doc), nil
}

// FromMap converts a decoded document leniently.
func FromMap(doc map[string]any) domain.Preferences {
	var p domain.Preferences
	if likes, ok := doc["likes"].(string); ok {
		p.Likes = likes
	}
	hf, ok := doc["hard_filters"].(map[string]any)
	if !ok {
		return p
	}
	p.HardFilters = domain.HardFilters{
		BoroughAllow:     stringList(hf, keyBoroughAllow),
		EventTypeAllow:   stringList(hf, keyEventTypeAllow),
		LocationExclude:  stringList(hf, keyLocationExclude),
		AudienceAllow:    stringList(hf, keyAudienceAllow),
		ExcludeChildren:  boolValue(hf, keyExcludeChildren),
		MaxPrice:         numberValue(hf, keyMaxPrice),
		FreeOnly:         boolValue(hf, keyFreeOnly),
		ChildrenKeywords: stringList(hf, keyChildrenKeywords),
	}
	return p
}

func first(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// stringList keeps the string elements of a JSON array, trimmed and
// non-empty. Any other value is absent.
func stringList(m map[string]any, keys []string) []string {
	v, ok := first(m, keys)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func boolValue(m map[string]any, keys []string) *bool {
	v, ok := first(m, keys)
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

func numberValue(m map[string]any, keys []string) *float64 {
	v, ok := first(m, keys)
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

// preferenceDocument is the canonical on-disk shape written by Save.
type preferenceDocument struct {
	Likes       string             `json:"likes"`
	HardFilters hardFilterDocument `json:"hard_filters"`
}

type hardFilterDocument struct {
	BoroughAllow     []string `json:"arrondissement_allow,omitempty"`
	EventTypeAllow   []string `json:"type_evenement_allow,omitempty"`
	LocationExclude  []string `json:"emplacement_exclude,omitempty"`
	AudienceAllow    []string `json:"audience_allow,omitempty"`
	ExcludeChildren  *bool    `json:"exclude_children,omitempty"`
	MaxPrice         *float64 `json:"max_price,omitempty"`
	FreeOnly         *bool    `json:"free_only,omitempty"`
	ChildrenKeywords []string `json:"children_keywords,omitempty"`
}

// Marshal renders p with the French rule keys.
func Marshal(p domain.Preferences) ([]byte, error) {
	hf := p.HardFilters
	data, err := json.MarshalIndent(preferenceDocument{
		Likes: p.Likes,
		HardFilters: hardFilterDocument{
			BoroughAllow:     hf.BoroughAllow,
			EventTypeAllow:   hf.EventTypeAllow,
			LocationExclude:  hf.LocationExclude,
			AudienceAllow:    hf.AudienceAllow,
			ExcludeChildren:  hf.ExcludeChildren,
			MaxPrice:         hf.MaxPrice,
			FreeOnly:         hf.FreeOnly,
			ChildrenKeywords: hf.ChildrenKeywords,
		},
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding preferences: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes p to path, creating its directory.
func Save(path string, p domain.Preferences) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating preferences directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	return nil
}
