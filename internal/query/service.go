// Package query answers read requests by combining cached region data with
// reference data and the scoring engines.
package query

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/region-data-service/internal/domain"
	"github.com/couchcryptid/region-data-service/internal/politics"
	"github.com/couchcryptid/region-data-service/internal/reference"
	"github.com/couchcryptid/region-data-service/internal/scoring"
)

// ErrInvalidZIP is returned for identifiers that are not 5-digit ZIP codes.
var ErrInvalidZIP = errors.New("invalid zip")

// RegionReader is the read side of the merge cache.
type RegionReader interface {
	Get(zip string) (domain.RegionRecord, error)
	GetCachedData() domain.Snapshot
}

// ReferenceReader serves static per-ZIP reference entries.
type ReferenceReader interface {
	ZIP(zip string) (reference.ZIP, bool)
	ZIPs() []reference.ZIP
}

// VotingProfiler derives political lean for a ZIP.
type VotingProfiler interface {
	VotingProfile(zip string) (*politics.Profile, bool)
}

// Service is safe for concurrent use; it holds no state of its own.
type Service struct {
	regions  RegionReader
	ref      ReferenceReader
	profiler VotingProfiler
}

// NewService creates a query service.
func NewService(regions RegionReader, ref ReferenceReader, profiler VotingProfiler) *Service {
	return &Service{regions: regions, ref: ref, profiler: profiler}
}

// RegionScores is the scoring view of one region.
type RegionScores struct {
	ZIP  string `json:"zip"`
	Name string `json:"name,omitempty"`
	// SchoolQuality is the index from the reference school summary, or the
	// cached school signal when no summary exists.
	SchoolQuality       *float64                      `json:"schoolQuality,omitempty"`
	SchoolQualitySource string                        `json:"schoolQualitySource,omitempty"`
	Lifestyle           *scoring.LifestyleScore       `json:"lifestyle,omitempty"`
	FamilyAmenities     *float64                      `json:"familyAmenities,omitempty"`
	Criteria            map[scoring.Criterion]float64 `json:"criteria"`
}

// School quality sources.
const (
	SchoolSourceSummary = "summary"
	SchoolSourceSignal  = "signal"
)

// Region returns the cached record for zip.
func (s *Service) Region(zip string) (domain.RegionRecord, error) {
	if err := checkZIP(zip); err != nil {
		return domain.RegionRecord{}, err
	}
	return s.regions.Get(zip)
}

// Regions returns a copy of every cached region.
func (s *Service) Regions() domain.Snapshot {
	return s.regions.GetCachedData()
}

// VotingProfile returns the political lean for zip.
func (s *Service) VotingProfile(zip string) (*politics.Profile, error) {
	if err := checkZIP(zip); err != nil {
		return nil, err
	}
	p, ok := s.profiler.VotingProfile(zip)
	if !ok {
		return nil, domain.NewNotFoundError("voting profile", zip)
	}
	return p, nil
}

// Scores returns the criterion scores for zip. Scores that scale against a
// batch maximum are computed over every known region.
func (s *Service) Scores(zip string) (*RegionScores, error) {
	if err := checkZIP(zip); err != nil {
		return nil, err
	}
	for _, rs := range s.allScores() {
		if rs.ZIP == zip {
			return rs, nil
		}
	}
	return nil, domain.NewNotFoundError("region", zip)
}

// Rank orders every known region by weights.
func (s *Service) Rank(weights scoring.Weights) []scoring.Ranked {
	all := s.allScores()
	candidates := make([]scoring.Candidate, len(all))
	for i, rs := range all {
		candidates[i] = scoring.Candidate{ZIP: rs.ZIP, Scores: rs.Criteria}
	}
	return scoring.Rank(candidates, weights)
}

// allScores scores the union of reference and cached ZIPs, ordered by ZIP.
func (s *Service) allScores() []*RegionScores {
	snap := s.regions.GetCachedData()
	refs := s.ref.ZIPs()

	byZIP := make(map[string]*RegionScores, len(refs)+len(snap.Regions))
	get := func(zip string) *RegionScores {
		rs, ok := byZIP[zip]
		if !ok {
			rs = &RegionScores{ZIP: zip, Criteria: make(map[scoring.Criterion]float64)}
			byZIP[zip] = rs
		}
		return rs
	}

	var lifestyle []scoring.LifestyleInput
	for _, z := range refs {
		rs := get(z.ZIP)
		rs.Name = z.Name
		if idx := scoring.SchoolQualityIndex(z.Schools); idx != nil {
			v := float64(*idx)
			rs.SchoolQuality = &v
			rs.SchoolQualitySource = SchoolSourceSummary
		}
		for name, v := range z.Criteria {
			rs.Criteria[scoring.Criterion(name)] = v
		}
		if z.Lifestyle != nil {
			lifestyle = append(lifestyle, scoring.LifestyleInput{
				ZIP:                z.ZIP,
				RestaurantCount:    z.Lifestyle.Restaurants,
				EntertainmentCount: z.Lifestyle.Entertainment,
				DiversityIndex:     z.Lifestyle.DiversityIndex,
				Convenience:        z.Lifestyle.Convenience,
			})
		}
	}
	for _, ls := range scoring.LifestyleScores(lifestyle) {
		rs := get(ls.ZIP)
		rs.Lifestyle = &ls
		rs.Criteria[scoring.CriterionLifestyle] = ls.Score
	}

	var maxParks float64
	for _, r := range snap.Regions {
		if r.ParksCountPerSqMi != nil {
			maxParks = math.Max(maxParks, *r.ParksCountPerSqMi)
		}
	}
	for zip, r := range snap.Regions {
		rs := get(zip)
		if rs.SchoolQuality == nil && r.SchoolSignal != nil {
			v := *r.SchoolSignal
			rs.SchoolQuality = &v
			rs.SchoolQualitySource = SchoolSourceSignal
		}
		if r.ParksCountPerSqMi != nil && maxParks > 0 {
			v := math.Round(math.Min(*r.ParksCountPerSqMi/maxParks, 1)*1000) / 10
			rs.FamilyAmenities = &v
			rs.Criteria[scoring.CriterionFamilyAmenities] = v
		}
	}

	out := make([]*RegionScores, 0, len(byZIP))
	for _, rs := range byZIP {
		if rs.SchoolQuality != nil {
			rs.Criteria[scoring.CriterionSchoolQuality] = *rs.SchoolQuality
		}
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZIP < out[j].ZIP })
	return out
}

func checkZIP(zip string) error {
	if !domain.ValidZIP(zip) {
		return fmt.Errorf("%w: %q", ErrInvalidZIP, zip)
	}
	return nil
}
