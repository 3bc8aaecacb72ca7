package scoring

import "math"

// Lifestyle weights. They must sum to 1.0.
const (
	weightDensity       = 0.30
	weightDiversity     = 0.25
	weightEntertainment = 0.25
	weightConvenience   = 0.20
)

// School quality weights. They must sum to 1.0.
const (
	weightProficiency = 0.55
	weightRatedA      = 0.25
	weightVolatility  = 0.10
	weightTrend       = 0.10
)

// LifestyleInput holds the raw lifestyle signals for one region.
type LifestyleInput struct {
	ZIP                string
	RestaurantCount    float64
	EntertainmentCount float64
	// DiversityIndex is in [0,1]; values outside are clamped.
	DiversityIndex float64
	// Convenience is already on a 0–100 scale.
	Convenience float64
}

// LifestyleScore is the composite for one region plus its four 0–100 subscores.
type LifestyleScore struct {
	ZIP           string  `json:"zip"`
	Score         float64 `json:"score"`
	Density       float64 `json:"density"`
	Diversity     float64 `json:"diversity"`
	Entertainment float64 `json:"entertainment"`
	Convenience   float64 `json:"convenience"`
}

// LifestyleScores scores every input. Restaurant and entertainment counts are
// scaled against the largest count in the batch, so scores are only
// comparable within one call.
func LifestyleScores(inputs []LifestyleInput) []LifestyleScore {
	var maxRestaurants, maxEntertainment float64
	for _, in := range inputs {
		maxRestaurants = math.Max(maxRestaurants, in.RestaurantCount)
		maxEntertainment = math.Max(maxEntertainment, in.EntertainmentCount)
	}

	out := make([]LifestyleScore, 0, len(inputs))
	for _, in := range inputs {
		s := LifestyleScore{
			ZIP:           in.ZIP,
			Density:       relativeToMax(in.RestaurantCount, maxRestaurants),
			Diversity:     clamp01(in.DiversityIndex) * 100,
			Entertainment: relativeToMax(in.EntertainmentCount, maxEntertainment),
			Convenience:   clamp(in.Convenience, 0, 100),
		}
		s.Score = clamp(
			s.Density*weightDensity+
				s.Diversity*weightDiversity+
				s.Entertainment*weightEntertainment+
				s.Convenience*weightConvenience,
			0, 100)
		out = append(out, s)
	}
	return out
}

// SchoolSummary aggregates campus-level assessment results for one region.
// Proficiencies, standard deviations and trend slopes are fractions;
// PctRatedA is a percentage.
type SchoolSummary struct {
	MathProficiency    float64 `json:"mathProficiency" yaml:"math_proficiency"`
	ReadingProficiency float64 `json:"readingProficiency" yaml:"reading_proficiency"`
	PctRatedA          float64 `json:"pctRatedA" yaml:"pct_rated_a"`
	MathStdDev         float64 `json:"mathStdDev" yaml:"math_std_dev"`
	ReadingStdDev      float64 `json:"readingStdDev" yaml:"reading_std_dev"`
	MathTrend          float64 `json:"mathTrend" yaml:"math_trend"`
	ReadingTrend       float64 `json:"readingTrend" yaml:"reading_trend"`
}

// SchoolQualityIndex computes the 0–100 school quality index, or nil when
// there is no summary.
//
//	index = round(
//	    avg(math, reading)*100                  * 0.55 +
//	    pctRatedA                               * 0.25 +
//	    max(0, 100 - (mathSD+readingSD)*100)    * 0.10 +
//	    max(0, avg(mathTrend, readingTrend))*100 * 0.10
//	)
func SchoolQualityIndex(s *SchoolSummary) *int {
	if s == nil {
		return nil
	}
	proficiency := (s.MathProficiency + s.ReadingProficiency) / 2 * 100
	volatility := math.Max(0, 100-(s.MathStdDev+s.ReadingStdDev)*100)
	trend := math.Max(0, (s.MathTrend+s.ReadingTrend)/2) * 100

	raw := proficiency*weightProficiency +
		s.PctRatedA*weightRatedA +
		volatility*weightVolatility +
		trend*weightTrend

	idx := int(clamp(math.Round(raw), 0, 100))
	return &idx
}

func relativeToMax(v, maxV float64) float64 {
	if maxV <= 0 {
		return 0
	}
	return clamp(v/maxV*100, 0, 100)
}

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
