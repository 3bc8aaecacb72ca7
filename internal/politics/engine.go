package politics

import (
	"math"
)

// Election identifies one of the two county-level datasets that are blended.
type Election string

const (
	Presidential  Election = "presidential"
	Gubernatorial Election = "gubernatorial"
)

// Blend weights for the overall lean and spectrum.
const (
	weightPresidential  = 0.7
	weightGubernatorial = 0.3
)

// Thresholds on the rounded dem-minus-rep margin.
const (
	leanThreshold   = 0.10
	farThreshold    = 0.20
	slightThreshold = 0.03
	trendThreshold  = 0.02
)

// Labels.
const (
	LabelLeansDemocratic   = "Leans Democratic"
	LabelLeansRepublican   = "Leans Republican"
	LabelPoliticallyMixed  = "Politically Mixed"
	ScopeCounty            = "county-level"
	ScopeBlendedCounty     = "blended county-level"
	TrendMoreDem           = "more_dem"
	TrendMoreRep           = "more_rep"
	TrendStable            = "stable"
	SpectrumFarDemocratic  = "Far Democratic"
	SpectrumLeanDemocratic = "Lean Democratic"
	SpectrumSlightDem      = "Slight Democratic"
	SpectrumSlightRep      = "Slight Republican"
	SpectrumLeanRepublican = "Lean Republican"
	SpectrumFarRepublican  = "Far Republican"
)

// Unit is one county mapped to a ZIP, with its blend weight.
type Unit struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Totals holds raw two-party vote counts for one county in one election.
type Totals struct {
	Dem float64 `json:"dem"`
	Rep float64 `json:"rep"`
}

// Source supplies ZIP-to-county weightings and county election results.
type Source interface {
	Units(zip string) []Unit
	Result(e Election, county string) (Totals, bool)
}

// Lean is a pair of two-party fractions with the derived margin and label.
type Lean struct {
	Dem    float64 `json:"dem"`
	Rep    float64 `json:"rep"`
	Margin float64 `json:"margin"`
	Label  string  `json:"label"`
}

// ElectionBlend is the weighted result for one election.
type ElectionBlend struct {
	Lean
	Scope             string `json:"scope"`
	ContributingUnits int    `json:"contributingUnits"`
}

// Spectrum places the overall margin on a seven-band scale. Position runs
// from -3 (Far Republican) to +3 (Far Democratic).
type Spectrum struct {
	Label    string  `json:"label"`
	Position int     `json:"position"`
	Margin   float64 `json:"margin"`
}

// Trend compares the presidential margin against the gubernatorial one.
// Magnitude is in percentage points.
type Trend struct {
	Direction string  `json:"direction"`
	Magnitude float64 `json:"magnitude"`
}

// Profile is the political lean summary for one ZIP.
type Profile struct {
	ZIP           string         `json:"zip"`
	Units         []Unit         `json:"units"`
	Presidential  *ElectionBlend `json:"presidential,omitempty"`
	Gubernatorial *ElectionBlend `json:"gubernatorial,omitempty"`
	Overall       Lean           `json:"overall"`
	Spectrum      Spectrum       `json:"spectrum"`
	Trend         *Trend         `json:"trend,omitempty"`
}

// Engine derives voting profiles from a Source. It holds no mutable state.
type Engine struct {
	src Source
}

// NewEngine creates an Engine over src.
func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

// VotingProfile blends both elections across the counties mapped to zip.
// It returns false when the ZIP has no county mapping or when no mapped
// county has data for either election.
func (e *Engine) VotingProfile(zip string) (*Profile, bool) {
	units := e.src.Units(zip)
	if len(units) == 0 {
		return nil, false
	}

	pres := e.blend(Presidential, units)
	gub := e.blend(Gubernatorial, units)

	var overall Lean
	switch {
	case pres != nil && gub != nil:
		overall = newLean(
			weightPresidential*pres.Dem+weightGubernatorial*gub.Dem,
			weightPresidential*pres.Rep+weightGubernatorial*gub.Rep,
		)
	case pres != nil:
		overall = pres.Lean
	case gub != nil:
		overall = gub.Lean
	default:
		return nil, false
	}

	p := &Profile{
		ZIP:           zip,
		Units:         units,
		Presidential:  pres,
		Gubernatorial: gub,
		Overall:       overall,
		Spectrum:      spectrum(overall.Margin),
	}
	if pres != nil && gub != nil {
		p.Trend = trend(pres.Margin, gub.Margin)
	}
	return p, true
}

// blend accumulates weighted two-party fractions over the units that have a
// result for the election. Units without data drop out of both numerator
// and denominator.
func (e *Engine) blend(election Election, units []Unit) *ElectionBlend {
	var dem, rep float64
	contributing := 0
	for _, u := range units {
		t, ok := e.src.Result(election, u.Name)
		total := t.Dem + t.Rep
		if !ok || total <= 0 {
			continue
		}
		w := math.Max(u.Weight, 0)
		dem += w * t.Dem / total
		rep += w * t.Rep / total
		contributing++
	}

	sum := dem + rep
	if sum <= 0 {
		return nil
	}

	scope := ScopeCounty
	if len(units) > 1 {
		scope = ScopeBlendedCounty
	}
	return &ElectionBlend{
		Lean:              newLean(dem/sum, rep/sum),
		Scope:             scope,
		ContributingUnits: contributing,
	}
}

// newLean rounds the fractions to 3 decimals and labels from the rounded margin.
func newLean(dem, rep float64) Lean {
	d, r := round(dem, 3), round(rep, 3)
	m := round(d-r, 3)
	return Lean{Dem: d, Rep: r, Margin: m, Label: leanLabel(m)}
}

func leanLabel(margin float64) string {
	switch {
	case margin >= leanThreshold:
		return LabelLeansDemocratic
	case margin <= -leanThreshold:
		return LabelLeansRepublican
	default:
		return LabelPoliticallyMixed
	}
}

func spectrum(margin float64) Spectrum {
	s := Spectrum{Margin: round(margin, 3)}
	mag := math.Abs(s.Margin)
	dem := s.Margin > 0
	switch {
	case mag >= farThreshold:
		s.Position = 3
		s.Label = pick(dem, SpectrumFarDemocratic, SpectrumFarRepublican)
	case mag >= leanThreshold:
		s.Position = 2
		s.Label = pick(dem, SpectrumLeanDemocratic, SpectrumLeanRepublican)
	case mag >= slightThreshold:
		s.Position = 1
		s.Label = pick(dem, SpectrumSlightDem, SpectrumSlightRep)
	default:
		s.Label = LabelPoliticallyMixed
		return s
	}
	if !dem {
		s.Position = -s.Position
	}
	return s
}

func trend(presMargin, gubMargin float64) *Trend {
	shift := round(presMargin-gubMargin, 3)
	t := &Trend{Direction: TrendStable, Magnitude: round(math.Abs(shift)*100, 1)}
	switch {
	case shift > trendThreshold:
		t.Direction = TrendMoreDem
	case shift < -trendThreshold:
		t.Direction = TrendMoreRep
	}
	return t
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
