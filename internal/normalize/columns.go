package normalize

import (
	"strings"

	"golang.org/x/text/cases"
)

// column is one logical field and the header names that may carry it,
// in priority order.
type column struct {
	name    string
	aliases []string
}

// Price feed headers, matched exactly.
var (
	priceZIPColumn    = column{"zip", []string{"zip", "ZIP", "zip_code", "ZipCode", "postal_code", "region"}}
	priceCountyColumn = column{"county", []string{"county", "County", "county_name", "parent_metro_region"}}
	priceValueColumn  = column{"price", []string{"median_sale_price", "MedianSalePrice", "median_price", "price"}}
	priceRentColumn   = column{"rent", []string{"median_rent", "rent_median", "MedianRent"}}
	priceDateColumn   = column{"date", []string{"period_end", "date", "month"}}
)

// School extract headers, matched as case-insensitive substrings.
var (
	schoolDistrictColumn = column{"district", []string{"district"}}
	schoolZIPColumn      = column{"zip", []string{"zip"}}
	schoolScoreColumn    = column{"score", []string{"score", "rating"}}
	schoolGradeColumn    = column{"grade", []string{"grade"}}
	schoolYearColumn     = column{"year", []string{"year"}}
)

// exact returns the index of the first alias present verbatim in header,
// or -1.
func (c column) exact(header []string) int {
	for _, alias := range c.aliases {
		for i, h := range header {
			if h == alias {
				return i
			}
		}
	}
	return -1
}

// fold returns the index of the first header containing an alias, ignoring
// case, or -1. Aliases are tried in order.
func (c column) fold(header []string) int {
	folder := cases.Fold()
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = folder.String(h)
	}
	for _, alias := range c.aliases {
		needle := folder.String(alias)
		for i, h := range folded {
			if strings.Contains(h, needle) {
				return i
			}
		}
	}
	return -1
}

// containsFold reports whether s contains substr, ignoring case.
func containsFold(s, substr string) bool {
	folder := cases.Fold()
	return strings.Contains(folder.String(s), folder.String(substr))
}
