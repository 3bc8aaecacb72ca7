package normalize

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/couchcryptid/region-data-service/internal/domain"
)

// Normalizer turns one raw upstream payload into per-ZIP patches sorted by ZIP.
// Row-level problems drop the row; an error means the payload as a whole
// could not be interpreted.
type Normalizer interface {
	Normalize(payload []byte) ([]domain.Patch, error)
}

// Centroid is a ZIP's reference point and land area.
type Centroid struct {
	ZIP          string
	Lat          float64
	Lon          float64
	LandAreaSqMi float64
}

// District maps a ZIP to the school district that serves it.
type District struct {
	ZIP  string
	Name string
}

// Reference is the static lookup data the normalizers consult.
type Reference interface {
	Centroids() []Centroid
	Districts() []District
}

// Provenance tags written to RegionRecord.Sources.
const (
	SourceRedfin = "redfin"
	SourceTEA    = "tea"
	SourceOSM    = "osm"
)

var zipRunRe = regexp.MustCompile(`(?:^|\D)(\d{5})(?:\D|$)`)

// extractZIP returns the first standalone 5-digit run in s.
func extractZIP(s string) (string, bool) {
	m := zipRunRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// readDelimited splits payload into a header and data rows. The delimiter is
// a tab when the header line contains one, else a comma. Rows the CSV reader
// rejects are skipped.
func readDelimited(payload []byte) (header []string, rows [][]string, err error) {
	payload = bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf"))
	firstLine, _, _ := bytes.Cut(payload, []byte("\n"))

	r := csv.NewReader(bytes.NewReader(payload))
	if bytes.Contains(firstLine, []byte("\t")) {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				continue
			}
			return nil, nil, err
		}
		if header == nil {
			header = make([]string, len(rec))
			for i, h := range rec {
				header[i] = strings.TrimSpace(h)
			}
			continue
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// cell returns the trimmed value at column i, or "" when i is out of range.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func sortedZIPs[V any](m map[string]V) []string {
	zips := make([]string, 0, len(m))
	for z := range m {
		zips = append(zips, z)
	}
	sort.Strings(zips)
	return zips
}
