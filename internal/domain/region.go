package domain

import (
	"fmt"
	"regexp"
	"slices"
	"time"
)

// Category names an independently refreshed data source.
type Category string

const (
	CategoryPrices  Category = "prices"
	CategorySchools Category = "schools"
	CategoryParks   Category = "parks"
)

// Categories lists every category in refresh order.
var Categories = []Category{CategoryPrices, CategorySchools, CategoryParks}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if slices.Contains(Categories, c) {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Field names one category-owned attribute of a RegionRecord.
type Field string

const (
	FieldMedianSalePrice   Field = "medianSalePrice"
	FieldRentMedian        Field = "rentMedian"
	FieldPriceUpdatedAt    Field = "priceUpdatedAt"
	FieldSchoolSignal      Field = "schoolSignal"
	FieldSchoolUpdatedAt   Field = "schoolUpdatedAt"
	FieldParksCountPerSqMi Field = "parksCountPerSqMi"
	FieldParksUpdatedAt    Field = "parksUpdatedAt"
)

// fieldOwners maps each field to the only category allowed to write it.
var fieldOwners = map[Field]Category{
	FieldMedianSalePrice:   CategoryPrices,
	FieldRentMedian:        CategoryPrices,
	FieldPriceUpdatedAt:    CategoryPrices,
	FieldSchoolSignal:      CategorySchools,
	FieldSchoolUpdatedAt:   CategorySchools,
	FieldParksCountPerSqMi: CategoryParks,
	FieldParksUpdatedAt:    CategoryParks,
}

// Owner returns the category that owns f.
func (f Field) Owner() (Category, bool) {
	c, ok := fieldOwners[f]
	return c, ok
}

var zipRe = regexp.MustCompile(`^\d{5}$`)

// ValidZIP reports whether s is a 5-digit ZIP code.
func ValidZIP(s string) bool {
	return zipRe.MatchString(s)
}

// RegionRecord is the merged per-ZIP aggregate across all categories.
// Nil pointer fields have never been written (or were explicitly cleared).
type RegionRecord struct {
	ZIP string `json:"zip"`

	MedianSalePrice *float64 `json:"medianSalePrice,omitempty"`
	RentMedian      *float64 `json:"rentMedian,omitempty"`
	PriceUpdatedAt  *string  `json:"priceUpdatedAt,omitempty"`

	SchoolSignal    *float64 `json:"schoolSignal,omitempty"`
	SchoolUpdatedAt *string  `json:"schoolUpdatedAt,omitempty"`

	ParksCountPerSqMi *float64 `json:"parksCountPerSqMi,omitempty"`
	ParksUpdatedAt    *string  `json:"parksUpdatedAt,omitempty"`

	Sources map[Category][]string `json:"sources,omitempty"`
}

// Clone returns a deep copy of r.
func (r RegionRecord) Clone() RegionRecord {
	out := r
	out.MedianSalePrice = clonePtr(r.MedianSalePrice)
	out.RentMedian = clonePtr(r.RentMedian)
	out.PriceUpdatedAt = clonePtr(r.PriceUpdatedAt)
	out.SchoolSignal = clonePtr(r.SchoolSignal)
	out.SchoolUpdatedAt = clonePtr(r.SchoolUpdatedAt)
	out.ParksCountPerSqMi = clonePtr(r.ParksCountPerSqMi)
	out.ParksUpdatedAt = clonePtr(r.ParksUpdatedAt)
	if r.Sources != nil {
		out.Sources = make(map[Category][]string, len(r.Sources))
		for c, tags := range r.Sources {
			out.Sources[c] = slices.Clone(tags)
		}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Patch is a partial update to one region, scoped to one category.
// A key present in Fields is written even when its value is nil; a key
// absent from Fields leaves the record untouched.
type Patch struct {
	ZIP      string
	Category Category
	Fields   map[Field]any
	Sources  []string
}

// NewPatch starts an empty patch for zip in category c.
func NewPatch(c Category, zip string) Patch {
	return Patch{ZIP: zip, Category: c, Fields: make(map[Field]any)}
}

// Set records a field value on the patch. Pass nil to clear the field.
func (p Patch) Set(f Field, v any) Patch {
	p.Fields[f] = v
	return p
}

// Validate checks the ZIP, category ownership and value types of every field.
func (p Patch) Validate() error {
	if !ValidZIP(p.ZIP) {
		return fmt.Errorf("patch zip %q: not a 5-digit ZIP", p.ZIP)
	}
	for f, v := range p.Fields {
		owner, ok := f.Owner()
		if !ok {
			return fmt.Errorf("patch %s: unknown field %q", p.ZIP, f)
		}
		if owner != p.Category {
			return fmt.Errorf("patch %s: field %q belongs to %s, not %s", p.ZIP, f, owner, p.Category)
		}
		if err := checkType(f, v); err != nil {
			return fmt.Errorf("patch %s: %w", p.ZIP, err)
		}
	}
	return nil
}

func checkType(f Field, v any) error {
	if v == nil {
		return nil
	}
	switch f {
	case FieldPriceUpdatedAt, FieldSchoolUpdatedAt, FieldParksUpdatedAt:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("field %q: want string, got %T", f, v)
		}
	default:
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("field %q: want float64, got %T", f, v)
		}
	}
	return nil
}

// Apply copies every present field of p onto r. Callers validate first.
func (r *RegionRecord) Apply(p Patch) {
	if r.ZIP == "" {
		r.ZIP = p.ZIP
	}
	for f, v := range p.Fields {
		switch f {
		case FieldMedianSalePrice:
			r.MedianSalePrice = floatPtr(v)
		case FieldRentMedian:
			r.RentMedian = floatPtr(v)
		case FieldPriceUpdatedAt:
			r.PriceUpdatedAt = stringPtr(v)
		case FieldSchoolSignal:
			r.SchoolSignal = floatPtr(v)
		case FieldSchoolUpdatedAt:
			r.SchoolUpdatedAt = stringPtr(v)
		case FieldParksCountPerSqMi:
			r.ParksCountPerSqMi = floatPtr(v)
		case FieldParksUpdatedAt:
			r.ParksUpdatedAt = stringPtr(v)
		}
	}
	if p.Sources != nil {
		if r.Sources == nil {
			r.Sources = make(map[Category][]string)
		}
		r.Sources[p.Category] = slices.Clone(p.Sources)
	}
}

func floatPtr(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

func stringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// Snapshot is a point-in-time copy of the whole cache.
type Snapshot struct {
	Regions     map[string]RegionRecord `json:"regions"`
	LastUpdated time.Time               `json:"lastUpdated"`
}

// YearMonth formats t as an ISO year-month stamp, e.g. "2024-05".
func YearMonth(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// ChangeSet is one applied merge batch, as published to the change feed.
type ChangeSet struct {
	RunID    string
	Category Category
	MergedAt time.Time
	Patches  []Patch
}
