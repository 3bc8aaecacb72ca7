package reference

import (
	"sort"
	"sync/atomic"

	"github.com/couchcryptid/region-data-service/internal/normalize"
	"github.com/couchcryptid/region-data-service/internal/politics"
)

// Provider serves the current dataset and can be swapped atomically while
// readers are active.
type Provider struct {
	current atomic.Pointer[index]
}

// index is a dataset plus lookups derived from it.
type index struct {
	ds    *Dataset
	byZIP map[string]ZIP
	zips  []string
}

func newIndex(ds *Dataset) *index {
	idx := &index{ds: ds, byZIP: make(map[string]ZIP, len(ds.ZIPs))}
	for _, z := range ds.ZIPs {
		idx.byZIP[z.ZIP] = z
		idx.zips = append(idx.zips, z.ZIP)
	}
	sort.Strings(idx.zips)
	return idx
}

// NewProvider creates a provider serving ds.
func NewProvider(ds *Dataset) *Provider {
	p := &Provider{}
	p.Swap(ds)
	return p
}

// Swap replaces the served dataset.
func (p *Provider) Swap(ds *Dataset) {
	p.current.Store(newIndex(ds))
}

// Dataset returns the dataset currently served.
func (p *Provider) Dataset() *Dataset {
	return p.current.Load().ds
}

// ZIP returns the reference entry for zip.
func (p *Provider) ZIP(zip string) (ZIP, bool) {
	z, ok := p.current.Load().byZIP[zip]
	return z, ok
}

// ZIPs returns every reference entry ordered by ZIP.
func (p *Provider) ZIPs() []ZIP {
	idx := p.current.Load()
	out := make([]ZIP, 0, len(idx.zips))
	for _, zip := range idx.zips {
		out = append(out, idx.byZIP[zip])
	}
	return out
}

// Centroids implements normalize.Reference.
func (p *Provider) Centroids() []normalize.Centroid {
	zips := p.ZIPs()
	out := make([]normalize.Centroid, 0, len(zips))
	for _, z := range zips {
		out = append(out, normalize.Centroid{ZIP: z.ZIP, Lat: z.Lat, Lon: z.Lon, LandAreaSqMi: z.LandAreaSqMi})
	}
	return out
}

// Districts implements normalize.Reference.
func (p *Provider) Districts() []normalize.District {
	zips := p.ZIPs()
	out := make([]normalize.District, 0, len(zips))
	for _, z := range zips {
		if z.District != "" {
			out = append(out, normalize.District{ZIP: z.ZIP, Name: z.District})
		}
	}
	return out
}

// Units implements politics.Source.
func (p *Provider) Units(zip string) []politics.Unit {
	z, ok := p.ZIP(zip)
	if !ok {
		return nil
	}
	units := make([]politics.Unit, 0, len(z.Counties))
	for _, c := range z.Counties {
		w := 1.0
		if c.Weight != nil {
			w = *c.Weight
		}
		units = append(units, politics.Unit{Name: c.Name, Weight: w})
	}
	return units
}

// Result implements politics.Source.
func (p *Provider) Result(e politics.Election, county string) (politics.Totals, bool) {
	ds := p.current.Load().ds
	var election Election
	switch e {
	case politics.Presidential:
		election = ds.Elections.Presidential
	case politics.Gubernatorial:
		election = ds.Elections.Gubernatorial
	default:
		return politics.Totals{}, false
	}
	r, ok := election.Results[county]
	if !ok {
		return politics.Totals{}, false
	}
	return politics.Totals{Dem: r.Dem, Rep: r.Rep}, true
}
