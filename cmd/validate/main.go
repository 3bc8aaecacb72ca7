// Command validate checks a reference dataset for gaps that would silently
// degrade scoring: counties without election results, ZIPs missing scoring
// inputs, and centroids outside the parks query box. Schema errors are fatal;
// every other check runs as a phase and is reported together.
//
// Usage:
//
//	go run ./cmd/validate -reference data/reference.yaml
//	go run ./cmd/validate -bbox 32.55,-97.45,33.45,-96.45
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/couchcryptid/region-data-service/internal/normalize"
	"github.com/couchcryptid/region-data-service/internal/politics"
	"github.com/couchcryptid/region-data-service/internal/reference"
	"github.com/couchcryptid/region-data-service/internal/scoring"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	refPath := flag.String("reference", "", "reference dataset YAML (default: embedded dataset)")
	bbox := flag.String("bbox", "32.55,-97.45,33.45,-96.45", "parks query box: south,west,north,east")
	flag.Parse()

	os.Exit(run(*refPath, *bbox, os.Stdout))
}

func run(refPath, bboxArg string, out io.Writer) int {
	fmt.Fprintln(out, "=== Reference Data Validation ===")
	fmt.Fprintln(out)

	box, err := normalize.ParseBBox(bboxArg)
	if err != nil {
		fmt.Fprintf(out, "FATAL: parse bbox: %v\n", err)
		return 1
	}
	ds, err := reference.Load(refPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	ref := reference.NewProvider(ds)

	phases := []*phase{
		validateElectionCoverage(ds),
		validateScoringInputs(ds),
		validateGeography(ds, box),
		validateVotingProfiles(ds, politics.NewEngine(ref)),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "ZIPs: %d, presidential counties: %d, gubernatorial counties: %d\n",
		len(ds.ZIPs), len(ds.Elections.Presidential.Results), len(ds.Elections.Gubernatorial.Results))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// validateElectionCoverage reports mapped counties with no result. The blend
// excludes them, which shifts the lean toward the remaining counties.
func validateElectionCoverage(ds *reference.Dataset) *phase {
	p := &phase{name: "Phase 1: Election coverage"}
	for _, z := range ds.ZIPs {
		if len(z.Counties) == 0 {
			p.errorf("%s: no counties mapped", z.ZIP)
			continue
		}
		for _, c := range z.Counties {
			if _, ok := ds.Elections.Presidential.Results[c.Name]; !ok {
				p.errorf("%s: county %s has no presidential result", z.ZIP, c.Name)
			}
			if _, ok := ds.Elections.Gubernatorial.Results[c.Name]; !ok {
				p.errorf("%s: county %s has no gubernatorial result", z.ZIP, c.Name)
			}
		}
	}
	return p
}

func validateScoringInputs(ds *reference.Dataset) *phase {
	p := &phase{name: "Phase 2: Scoring inputs"}
	for _, z := range ds.ZIPs {
		if z.Lifestyle == nil {
			p.errorf("%s: no lifestyle inputs", z.ZIP)
		} else if z.Lifestyle.DiversityIndex < 0 || z.Lifestyle.DiversityIndex > 1 {
			p.errorf("%s: diversity index %.2f outside 0-1", z.ZIP, z.Lifestyle.DiversityIndex)
		}
		if z.Schools == nil {
			p.errorf("%s: no school summary", z.ZIP)
		} else {
			checkFraction(p, z.ZIP, "math proficiency", z.Schools.MathProficiency)
			checkFraction(p, z.ZIP, "reading proficiency", z.Schools.ReadingProficiency)
			if z.Schools.PctRatedA < 0 || z.Schools.PctRatedA > 100 {
				p.errorf("%s: pct rated A %.1f outside 0-100", z.ZIP, z.Schools.PctRatedA)
			}
		}
		var missing []string
		for _, c := range []scoring.Criterion{
			scoring.CriterionCommute, scoring.CriterionSafety, scoring.CriterionTax, scoring.CriterionTolls,
		} {
			if _, ok := z.Criteria[string(c)]; !ok {
				missing = append(missing, string(c))
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			p.errorf("%s: missing criteria %v", z.ZIP, missing)
		}
	}
	return p
}

func checkFraction(p *phase, zip, name string, v float64) {
	if v < 0 || v > 1 {
		p.errorf("%s: %s %.2f outside 0-1", zip, name, v)
	}
}

// validateGeography checks the inputs the park and school normalizers rely on.
func validateGeography(ds *reference.Dataset, box normalize.BBox) *phase {
	p := &phase{name: "Phase 3: Geography"}
	for _, z := range ds.ZIPs {
		if z.LandAreaSqMi <= 0 {
			p.errorf("%s: no land area; parks density is never computed", z.ZIP)
		}
		if z.District == "" {
			p.errorf("%s: no school district", z.ZIP)
		}
		if z.Lat < box.South || z.Lat > box.North || z.Lon < box.West || z.Lon > box.East {
			p.errorf("%s: centroid (%.4f, %.4f) outside parks box %s", z.ZIP, z.Lat, z.Lon, box)
		}
	}
	return p
}

func validateVotingProfiles(ds *reference.Dataset, engine *politics.Engine) *phase {
	p := &phase{name: "Phase 4: Voting profiles"}
	for _, z := range ds.ZIPs {
		prof, ok := engine.VotingProfile(z.ZIP)
		if !ok {
			p.errorf("%s: no voting profile", z.ZIP)
			continue
		}
		if prof.Trend == nil {
			p.errorf("%s: trend unavailable; one election has no contributing county", z.ZIP)
		}
	}
	return p
}
