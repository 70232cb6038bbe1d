package ranking

import (
	"sort"
	"strings"

	"github.com/alexanderramin/sortir/internal/domain"
)

// Weights are the blend coefficients. They are normalized to sum to 1.
type Weights struct {
	Embedding float64 `koanf:"emb_weight" validate:"gte=0"`
	Borough   float64 `koanf:"borough_weight" validate:"gte=0"`
}

// DefaultWeights is the 0.7/0.3 semantic/borough split.
func DefaultWeights() Weights {
	return Weights{Embedding: 0.7, Borough: 0.3}
}

func (w Weights) normalized() (emb, boro float64) {
	total := w.Embedding + w.Borough
	if total < 1e-6 {
		total = 1e-6
	}
	return w.Embedding / total, w.Borough / total
}

// BoroughWeights maps each lowercased borough in order to a weight falling
// linearly from 1.0 (first) to 0.1 (last). A single entry weighs 1.0.
func BoroughWeights(order []string) map[string]float64 {
	weights := make(map[string]float64, len(order))
	n := len(order)
	for i, name := range order {
		key := strings.ToLower(name)
		if _, seen := weights[key]; seen {
			continue
		}
		if n == 1 {
			weights[key] = 1.0
			continue
		}
		weights[key] = 1.0 - float64(i)/float64(n-1)*0.9
	}
	return weights
}

// Blend returns a copy of records with BoroughWeight and CombinedScore set,
// sorted by combined score descending. Ties keep input order. Applying it
// twice with the same inputs yields the same scores.
func Blend(records []domain.Record, order []string, w Weights) []domain.Record {
	out := domain.CloneRecords(records)
	if len(out) == 0 {
		return out
	}

	lo, hi := out[0].Semantic(), out[0].Semantic()
	for _, r := range out[1:] {
		s := r.Semantic()
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	boro := BoroughWeights(order)
	we, wb := w.normalized()
	for i := range out {
		norm := 0.5
		if hi > lo {
			norm = (out[i].Semantic() - lo) / (hi - lo)
		}
		bw := boro[strings.ToLower(out[i].Borough)]
		out[i].BoroughWeight = domain.Float64Ptr(bw)
		out[i].CombinedScore = domain.Float64Ptr(we*norm + wb*bw)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Combined() > out[j].Combined()
	})
	return out
}

// Shortlist returns the first k records. k < 0 is treated as 0.
func Shortlist(records []domain.Record, k int) []domain.Record {
	if k < 0 {
		k = 0
	}
	if k > len(records) {
		k = len(records)
	}
	out := make([]domain.Record, k)
	copy(out, records[:k])
	return out
}
