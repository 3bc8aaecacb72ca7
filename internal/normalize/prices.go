package normalize

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/region-data-service/internal/domain"
)

// DefaultCounties are the counties whose rows the price feed keeps.
var DefaultCounties = []string{"Collin", "Dallas", "Denton", "Tarrant", "Rockwall"}

var yearMonthRe = regexp.MustCompile(`^(\d{4})[-/](\d{2})`)

// Prices normalizes a delimited median-price feed.
type Prices struct {
	ref      Reference
	counties []string
	logger   *slog.Logger
}

// NewPrices creates a price normalizer. With no county column in the feed,
// rows are kept only for ZIPs present in ref.
func NewPrices(ref Reference, counties []string, logger *slog.Logger) *Prices {
	if len(counties) == 0 {
		counties = DefaultCounties
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prices{ref: ref, counties: counties, logger: logger}
}

type priceAgg struct {
	priceSum float64
	priceN   int
	rentSum  float64
	rentN    int
}

func (p *Prices) Normalize(payload []byte) ([]domain.Patch, error) {
	header, rows, err := readDelimited(payload)
	if err != nil {
		return nil, err
	}

	zipCol := priceZIPColumn.exact(header)
	priceCol := priceValueColumn.exact(header)
	if zipCol < 0 || priceCol < 0 {
		p.logger.Debug("price feed missing required columns", "header", header)
		return nil, nil
	}
	countyCol := priceCountyColumn.exact(header)
	rentCol := priceRentColumn.exact(header)
	dateCol := priceDateColumn.exact(header)

	known := make(map[string]bool)
	if countyCol < 0 && p.ref != nil {
		for _, c := range p.ref.Centroids() {
			known[c.ZIP] = true
		}
	}

	aggs := make(map[string]*priceAgg)
	var latest string
	for _, row := range rows {
		zip, ok := extractZIP(cell(row, zipCol))
		if !ok {
			p.logger.Debug("dropping price row", "reason", "zip")
			continue
		}
		if countyCol >= 0 {
			if !p.inScope(cell(row, countyCol)) {
				continue
			}
		} else if !known[zip] {
			continue
		}
		price, ok := parseMoney(cell(row, priceCol))
		if !ok || price <= 0 {
			p.logger.Debug("dropping price row", "zip", zip, "reason", "price")
			continue
		}

		a := aggs[zip]
		if a == nil {
			a = &priceAgg{}
			aggs[zip] = a
		}
		a.priceSum += price
		a.priceN++
		if rent, ok := parseMoney(cell(row, rentCol)); ok && rent > 0 {
			a.rentSum += rent
			a.rentN++
		}
		if ym, ok := truncateYearMonth(cell(row, dateCol)); ok && ym > latest {
			latest = ym
		}
	}

	if latest == "" {
		latest = domain.CurrentYearMonth()
	}

	patches := make([]domain.Patch, 0, len(aggs))
	for _, zip := range sortedZIPs(aggs) {
		a := aggs[zip]
		patch := domain.NewPatch(domain.CategoryPrices, zip).
			Set(domain.FieldMedianSalePrice, a.priceSum/float64(a.priceN)).
			Set(domain.FieldPriceUpdatedAt, latest)
		if a.rentN > 0 {
			patch = patch.Set(domain.FieldRentMedian, a.rentSum/float64(a.rentN))
		}
		patch.Sources = []string{SourceRedfin}
		patches = append(patches, patch)
	}
	return patches, nil
}

func (p *Prices) inScope(county string) bool {
	for _, c := range p.counties {
		if strings.Contains(county, c) {
			return true
		}
	}
	return false
}

// parseMoney parses values like "$412,500" or "412500.00".
func parseMoney(s string) (float64, bool) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// truncateYearMonth turns "2024-05-31" or "2024/05" into "2024-05".
func truncateYearMonth(s string) (string, bool) {
	m := yearMonthRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1] + "-" + m[2], true
}
