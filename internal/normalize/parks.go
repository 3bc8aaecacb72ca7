package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/region-data-service/internal/domain"
)

// MaxParkDistanceMiles is how far a park may be from its nearest ZIP centroid.
const MaxParkDistanceMiles = 15

// BBox is a south,west,north,east bounding box in degrees.
type BBox struct {
	South, West, North, East float64
}

// ParseBBox parses "south,west,north,east".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox %q: want south,west,north,east", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	b := BBox{South: v[0], West: v[1], North: v[2], East: v[3]}
	if b.South >= b.North || b.West >= b.East {
		return BBox{}, fmt.Errorf("bbox %q: south/west must be below north/east", s)
	}
	return b, nil
}

func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.South, b.West, b.North, b.East)
}

// OverpassQuery builds the Overpass QL query for parks inside b.
func OverpassQuery(b BBox) string {
	box := b.String()
	return `[out:json][timeout:25];(` +
		`node["leisure"="park"](` + box + `);` +
		`way["leisure"="park"](` + box + `);` +
		`relation["leisure"="park"](` + box + `);` +
		`);out center;`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string   `json:"type"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
}

// point returns the element's coordinates: its own for nodes, its center
// for ways and relations.
func (e overpassElement) point() (lat, lon float64, ok bool) {
	if e.Lat != nil && e.Lon != nil {
		return *e.Lat, *e.Lon, true
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon, true
	}
	return 0, 0, false
}

// Parks normalizes an Overpass park query response into park density.
type Parks struct {
	ref    Reference
	logger *slog.Logger
}

// NewParks creates a parks normalizer over the centroids in ref.
func NewParks(ref Reference, logger *slog.Logger) *Parks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parks{ref: ref, logger: logger}
}

func (p *Parks) Normalize(payload []byte) ([]domain.Patch, error) {
	var resp overpassResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	if p.ref == nil {
		return nil, nil
	}

	centroids := p.ref.Centroids()
	counts := make(map[string]int)
	areas := make(map[string]float64, len(centroids))
	for _, c := range centroids {
		areas[c.ZIP] = c.LandAreaSqMi
	}

	for _, el := range resp.Elements {
		lat, lon, ok := el.point()
		if !ok {
			continue
		}
		c, ok := nearest(centroids, lat, lon, MaxParkDistanceMiles)
		if !ok {
			continue
		}
		counts[c.ZIP]++
	}

	stamp := domain.CurrentYearMonth()
	patches := make([]domain.Patch, 0, len(counts))
	for _, zip := range sortedZIPs(counts) {
		area := areas[zip]
		if area <= 0 {
			p.logger.Debug("skipping park density", "zip", zip, "reason", "no land area")
			continue
		}
		density := math.Round(float64(counts[zip])/area*10) / 10
		patch := domain.NewPatch(domain.CategoryParks, zip).
			Set(domain.FieldParksCountPerSqMi, density).
			Set(domain.FieldParksUpdatedAt, stamp)
		patch.Sources = []string{SourceOSM}
		patches = append(patches, patch)
	}
	return patches, nil
}
