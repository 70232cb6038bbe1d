// Package ranking orders records: semantic similarity to the user's likes,
// the borough preference blend, and shortlist truncation.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/alexanderramin/sortir/internal/domain"
)

// DefaultLikes is the preference text used when the user gave none.
const DefaultLikes = "Je préfère des événements publics intéressants à Montréal."

// ErrEmbedding wraps every failure of the embedding capability. It is fatal
// to a run: there is no principled default order.
var ErrEmbedding = errors.New("embedding failed")

// Embedder turns texts into vectors of equal dimension, one per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// SemanticRanker scores records by cosine similarity to a preference text.
type SemanticRanker struct {
	embedder  Embedder
	descChars int
}

// NewSemanticRanker creates a ranker. descChars bounds the description
// snippet embedded with each title; <= 0 uses 300.
func NewSemanticRanker(embedder Embedder, descChars int) *SemanticRanker {
	if descChars <= 0 {
		descChars = 300
	}
	return &SemanticRanker{embedder: embedder, descChars: descChars}
}

// Rank returns a copy of records with SemanticScore set, sorted by score
// descending. Ties keep input order.
func (s *SemanticRanker) Rank(ctx context.Context, records []domain.Record, likes string) ([]domain.Record, error) {
	if len(records) == 0 {
		return []domain.Record{}, nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = RecordText(r, s.descChars)
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: records: %v", ErrEmbedding, err)
	}
	if len(vecs) != len(records) {
		return nil, fmt.Errorf("%w: got %d vectors for %d records", ErrEmbedding, len(vecs), len(records))
	}

	query := strings.TrimSpace(likes)
	if query == "" {
		query = DefaultLikes
	}
	qvecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: preference: %v", ErrEmbedding, err)
	}
	if len(qvecs) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for preference text", ErrEmbedding, len(qvecs))
	}
	pref := unit(qvecs[0])

	out := domain.CloneRecords(records)
	for i := range out {
		if len(vecs[i]) != len(pref) {
			return nil, fmt.Errorf("%w: dimension %d != %d", ErrEmbedding, len(vecs[i]), len(pref))
		}
		out[i].SemanticScore = domain.Float64Ptr(dot(unit(vecs[i]), pref))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Semantic() > out[j].Semantic()
	})
	return out, nil
}

// RecordText is the string embedded for a record: the title, then a
// description snippet of at most n runes, joined by " | ".
func RecordText(r domain.Record, n int) string {
	title := strings.TrimSpace(r.Title)
	desc := strings.TrimSpace(r.Description)
	if desc != "" && utf8.RuneCountInString(desc) > n {
		desc = string([]rune(desc)[:n]) + "…"
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{title, desc} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " | ")
}

func unit(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum) + 1e-12
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
