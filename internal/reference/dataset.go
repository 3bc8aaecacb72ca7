package reference

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/region-data-service/internal/domain"
	"github.com/couchcryptid/region-data-service/internal/scoring"
)

//go:embed defaults.yaml
var defaultDataset []byte

// Dataset is the static reference data: ZIP geography and district
// assignments, ZIP-to-county weightings and county election results.
type Dataset struct {
	ZIPs      []ZIP     `yaml:"zips"`
	Elections Elections `yaml:"elections"`
}

// ZIP is one region's reference entry.
type ZIP struct {
	ZIP          string   `yaml:"zip"`
	Name         string   `yaml:"name"`
	Lat          float64  `yaml:"lat"`
	Lon          float64  `yaml:"lon"`
	LandAreaSqMi float64  `yaml:"land_area_sq_mi"`
	District     string   `yaml:"district"`
	Counties     []County `yaml:"counties"`

	Lifestyle *Lifestyle             `yaml:"lifestyle"`
	Schools   *scoring.SchoolSummary `yaml:"schools"`
	// Criteria holds precomputed 0–100 scores for commute, safety, tax and
	// tolls, oriented so a lighter burden scores higher.
	Criteria map[string]float64 `yaml:"criteria"`
}

// County weights one county's contribution to a ZIP. A missing weight is 1.
type County struct {
	Name   string   `yaml:"name"`
	Weight *float64 `yaml:"weight"`
}

// Lifestyle holds the raw inputs to the lifestyle score.
type Lifestyle struct {
	Restaurants    float64 `yaml:"restaurants"`
	Entertainment  float64 `yaml:"entertainment"`
	DiversityIndex float64 `yaml:"diversity_index"`
	Convenience    float64 `yaml:"convenience"`
}

// Elections holds the two county-level datasets.
type Elections struct {
	Presidential  Election `yaml:"presidential"`
	Gubernatorial Election `yaml:"gubernatorial"`
}

// Election holds per-county two-party totals for one election year.
type Election struct {
	Year    int                `yaml:"year"`
	Results map[string]Result `yaml:"results"`
}

// Result is one county's two-party vote totals.
type Result struct {
	Dem float64 `yaml:"dem"`
	Rep float64 `yaml:"rep"`
}

// referenceCriteria are the criterion scores a dataset may carry directly.
var referenceCriteria = map[string]bool{
	string(scoring.CriterionCommute): true,
	string(scoring.CriterionSafety):  true,
	string(scoring.CriterionTax):     true,
	string(scoring.CriterionTolls):   true,
}

// Default parses the embedded dataset.
func Default() (*Dataset, error) {
	return Parse(defaultDataset)
}

// Load reads a dataset from path. An empty path loads the embedded default.
func Load(path string) (*Dataset, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML dataset.
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate checks ZIP codes, coordinates, weights and vote totals. A dataset
// needs at least one ZIP.
func (d *Dataset) Validate() error {
	if len(d.ZIPs) == 0 {
		return errors.New("invalid reference data: no zips")
	}
	var errs []error
	seen := make(map[string]bool, len(d.ZIPs))
	for _, z := range d.ZIPs {
		if !domain.ValidZIP(z.ZIP) {
			errs = append(errs, fmt.Errorf("zip %q: not a 5-digit ZIP", z.ZIP))
			continue
		}
		if seen[z.ZIP] {
			errs = append(errs, fmt.Errorf("zip %s: duplicate entry", z.ZIP))
		}
		seen[z.ZIP] = true
		if z.Lat < -90 || z.Lat > 90 || z.Lon < -180 || z.Lon > 180 {
			errs = append(errs, fmt.Errorf("zip %s: coordinates out of range", z.ZIP))
		}
		if z.LandAreaSqMi < 0 {
			errs = append(errs, fmt.Errorf("zip %s: negative land area", z.ZIP))
		}
		for _, c := range z.Counties {
			if c.Name == "" {
				errs = append(errs, fmt.Errorf("zip %s: county without a name", z.ZIP))
			}
			if c.Weight != nil && *c.Weight < 0 {
				errs = append(errs, fmt.Errorf("zip %s: county %s has negative weight", z.ZIP, c.Name))
			}
		}
		for name, v := range z.Criteria {
			if !referenceCriteria[name] {
				errs = append(errs, fmt.Errorf("zip %s: unsupported criterion %q", z.ZIP, name))
			}
			if v < 0 || v > 100 {
				errs = append(errs, fmt.Errorf("zip %s: criterion %s outside 0-100", z.ZIP, name))
			}
		}
	}
	for name, e := range map[string]Election{
		"presidential":  d.Elections.Presidential,
		"gubernatorial": d.Elections.Gubernatorial,
	} {
		for county, r := range e.Results {
			if r.Dem < 0 || r.Rep < 0 {
				errs = append(errs, fmt.Errorf("%s election: county %s has negative votes", name, county))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid reference data: %w", errors.Join(errs...))
	}
	return nil
}
