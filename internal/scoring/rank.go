package scoring

import (
	"fmt"
	"math"
	"sort"
)

// Criterion is one dimension a user can weight when ranking regions.
type Criterion string

const (
	CriterionSchoolQuality   Criterion = "school_quality"
	CriterionCommute         Criterion = "commute"
	CriterionSafety          Criterion = "safety"
	CriterionLifestyle       Criterion = "lifestyle"
	CriterionFamilyAmenities Criterion = "family_amenities"
	CriterionTax             Criterion = "tax"
	CriterionTolls           Criterion = "tolls"
)

// Criteria lists every criterion in display order.
var Criteria = []Criterion{
	CriterionSchoolQuality,
	CriterionCommute,
	CriterionSafety,
	CriterionLifestyle,
	CriterionFamilyAmenities,
	CriterionTax,
	CriterionTolls,
}

// MaxWeight is the largest weight a criterion can carry.
const MaxWeight = 3

var defaultWeights = map[Criterion]int{
	CriterionSchoolQuality:   3,
	CriterionCommute:         2,
	CriterionSafety:          3,
	CriterionLifestyle:       2,
	CriterionFamilyAmenities: 2,
	CriterionTax:             1,
	CriterionTolls:           1,
}

// Weights maps each criterion to a weight in [0, MaxWeight].
type Weights map[Criterion]int

// DefaultWeights returns a fresh copy of the default weights.
func DefaultWeights() Weights {
	w := make(Weights, len(defaultWeights))
	for c, v := range defaultWeights {
		w[c] = v
	}
	return w
}

// ResolveWeights overlays overrides on the defaults. Unknown criteria and
// weights outside [0, MaxWeight] are rejected.
func ResolveWeights(overrides map[string]int) (Weights, error) {
	w := DefaultWeights()
	for name, v := range overrides {
		c := Criterion(name)
		if _, ok := defaultWeights[c]; !ok {
			return nil, fmt.Errorf("unknown criterion %q", name)
		}
		if v < 0 || v > MaxWeight {
			return nil, fmt.Errorf("criterion %q: weight %d outside 0-%d", name, v, MaxWeight)
		}
		w[c] = v
	}
	return w, nil
}

// Candidate carries the 0–100 criterion scores known for one region.
// Higher is better for every criterion; burdens are inverted upstream.
type Candidate struct {
	ZIP    string
	Scores map[Criterion]float64
}

// Ranked is one region's position in a ranking. Score is nil when none of
// the weighted criteria had a value.
type Ranked struct {
	Rank      int                   `json:"rank"`
	ZIP       string                `json:"zip"`
	Score     *float64              `json:"score"`
	Breakdown map[Criterion]float64 `json:"breakdown"`
}

// Rank orders candidates by their weighted mean criterion score. Criteria
// with no score for a region drop out of that region's mean. Unscored
// regions sort last; ties break by ZIP.
func Rank(candidates []Candidate, weights Weights) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		r := Ranked{ZIP: c.ZIP, Breakdown: make(map[Criterion]float64)}
		var sum, totalWeight float64
		for _, crit := range Criteria {
			w := weights[crit]
			s, ok := c.Scores[crit]
			if !ok || w <= 0 {
				continue
			}
			s = clamp(s, 0, 100)
			r.Breakdown[crit] = s
			sum += s * float64(w)
			totalWeight += float64(w)
		}
		if totalWeight > 0 {
			score := math.Round(sum/totalWeight*10) / 10
			r.Score = &score
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Score == nil && b.Score == nil:
			return a.ZIP < b.ZIP
		case a.Score == nil:
			return false
		case b.Score == nil:
			return true
		case *a.Score != *b.Score:
			return *a.Score > *b.Score
		default:
			return a.ZIP < b.ZIP
		}
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
