package normalize

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/region-data-service/internal/domain"
)

// letterGrades maps accountability letter grades to a 0–100 signal.
var letterGrades = map[string]float64{
	"A+": 98, "A": 95, "A-": 92,
	"B+": 88, "B": 85, "B-": 82,
	"C+": 78, "C": 75, "C-": 72,
	"D+": 68, "D": 65, "D-": 62,
	"F": 50,
}

var yearTokenRe = regexp.MustCompile(`(?:^|\D)(\d{4})(?:\D|$)`)

// Schools normalizes a delimited school-performance extract.
type Schools struct {
	ref    Reference
	logger *slog.Logger
}

// NewSchools creates a school normalizer. Rows without a ZIP are placed via
// the district table in ref.
func NewSchools(ref Reference, logger *slog.Logger) *Schools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Schools{ref: ref, logger: logger}
}

type schoolAgg struct {
	sum   float64
	n     int
	stamp string
}

func (s *Schools) Normalize(payload []byte) ([]domain.Patch, error) {
	header, rows, err := readDelimited(payload)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, nil
	}

	districtCol := schoolDistrictColumn.fold(header)
	zipCol := schoolZIPColumn.fold(header)
	scoreCol := schoolScoreColumn.fold(header)
	gradeCol := schoolGradeColumn.fold(header)
	yearCol := schoolYearColumn.fold(header)

	districts := s.districts()
	fallbackStamp := domain.CurrentYearMonth()

	aggs := make(map[string]*schoolAgg)
	for _, row := range rows {
		zip, ok := extractZIP(cell(row, zipCol))
		if !ok {
			zip, ok = matchDistrict(districts, cell(row, districtCol))
		}
		if !ok {
			s.logger.Debug("dropping school row", "reason", "no zip or district match")
			continue
		}
		signal, ok := schoolSignal(cell(row, scoreCol), cell(row, gradeCol))
		if !ok {
			s.logger.Debug("dropping school row", "zip", zip, "reason", "signal")
			continue
		}

		stamp := fallbackStamp
		if m := yearTokenRe.FindStringSubmatch(cell(row, yearCol)); m != nil {
			stamp = m[1] + "-08"
		}

		a := aggs[zip]
		if a == nil {
			a = &schoolAgg{}
			aggs[zip] = a
		}
		a.sum += signal
		a.n++
		if stamp > a.stamp {
			a.stamp = stamp
		}
	}

	patches := make([]domain.Patch, 0, len(aggs))
	for _, zip := range sortedZIPs(aggs) {
		a := aggs[zip]
		patch := domain.NewPatch(domain.CategorySchools, zip).
			Set(domain.FieldSchoolSignal, a.sum/float64(a.n)).
			Set(domain.FieldSchoolUpdatedAt, a.stamp)
		patch.Sources = []string{SourceTEA}
		patches = append(patches, patch)
	}
	return patches, nil
}

func (s *Schools) districts() []District {
	if s.ref == nil {
		return nil
	}
	d := append([]District(nil), s.ref.Districts()...)
	sort.SliceStable(d, func(i, j int) bool { return d[i].ZIP < d[j].ZIP })
	return d
}

// matchDistrict returns the first ZIP whose district name and value contain
// one another, ignoring case.
func matchDistrict(districts []District, value string) (string, bool) {
	if value == "" {
		return "", false
	}
	for _, d := range districts {
		if d.Name == "" {
			continue
		}
		if containsFold(d.Name, value) || containsFold(value, d.Name) {
			return d.ZIP, true
		}
	}
	return "", false
}

// schoolSignal derives a 0–100 signal from a numeric score, falling back to
// a letter grade. A letter in the score column counts when there is no grade.
func schoolSignal(score, grade string) (float64, bool) {
	signal, ok := numericSignal(score)
	if !ok {
		if grade == "" {
			grade = score
		}
		signal, ok = letterGrades[strings.ToUpper(strings.TrimSpace(grade))]
	}
	if !ok || signal < 0 || signal > 100 {
		return 0, false
	}
	return signal, true
}

func numericSignal(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v <= 10 {
		return v * 10, true
	}
	return v, true
}
