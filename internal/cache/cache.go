// Package cache holds the merged per-ZIP region records. Patches are applied
// field by field, written through to a backing store, and served from memory.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/region-data-service/internal/domain"
	"github.com/couchcryptid/region-data-service/internal/observability"
)

// Store persists region records and the store-wide lastUpdated stamp.
type Store interface {
	Save(ctx context.Context, regions []domain.RegionRecord, lastUpdated time.Time) error
	Load(ctx context.Context) (domain.Snapshot, error)
}

// Cache is the authoritative in-memory view of every region.
type Cache struct {
	mu          sync.RWMutex
	regions     map[string]domain.RegionRecord
	lastUpdated time.Time

	store    Store
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger
	hydrated atomic.Bool
}

// New creates an empty cache over store. A nil clock uses real time.
func New(store Store, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		regions: make(map[string]domain.RegionRecord),
		store:   store,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Hydrate replaces the in-memory view with the backing store's contents.
func (c *Cache) Hydrate(ctx context.Context) error {
	snap, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("hydrate cache: %w", err)
	}

	c.mu.Lock()
	c.regions = make(map[string]domain.RegionRecord, len(snap.Regions))
	for zip, r := range snap.Regions {
		c.regions[zip] = r.Clone()
	}
	c.lastUpdated = snap.LastUpdated
	n := len(c.regions)
	c.mu.Unlock()

	c.metrics.CachedRegions.Set(float64(n))
	c.hydrated.Store(true)
	c.logger.Info("cache hydrated", "regions", n, "last_updated", snap.LastUpdated)
	return nil
}

// CheckReadiness returns nil once the cache has hydrated.
func (c *Cache) CheckReadiness(_ context.Context) error {
	if !c.hydrated.Load() {
		return errors.New("cache has not hydrated from the backing store")
	}
	return nil
}

// MergeZipData applies patches for category and returns how many were
// applied. The whole batch is validated before anything is written, and the
// backing store is written before the in-memory view changes. lastUpdated
// advances even for an empty batch.
func (c *Cache) MergeZipData(ctx context.Context, category domain.Category, patches []domain.Patch) (int, error) {
	for i, p := range patches {
		if p.Category != category {
			return 0, fmt.Errorf("merge %s: patch %d is for category %s", category, i, p.Category)
		}
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("merge %s: %w", category, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	touched := make(map[string]domain.RegionRecord)
	for _, p := range patches {
		rec, ok := touched[p.ZIP]
		if !ok {
			existing, found := c.regions[p.ZIP]
			if found {
				rec = existing.Clone()
			} else {
				rec = domain.RegionRecord{ZIP: p.ZIP}
			}
		}
		rec.Apply(p)
		touched[p.ZIP] = rec
	}

	now := c.clock.Now().UTC()
	batch := make([]domain.RegionRecord, 0, len(touched))
	for _, zip := range sortedKeys(touched) {
		batch = append(batch, touched[zip])
	}
	if err := c.store.Save(ctx, batch, now); err != nil {
		return 0, fmt.Errorf("merge %s: persist: %w", category, err)
	}

	for zip, rec := range touched {
		c.regions[zip] = rec
	}
	c.lastUpdated = now

	c.metrics.PatchesMerged.WithLabelValues(string(category)).Add(float64(len(patches)))
	c.metrics.CachedRegions.Set(float64(len(c.regions)))
	c.logger.Debug("merged patches", "category", category, "patches", len(patches), "regions", len(touched))
	return len(patches), nil
}

// GetCachedData returns a deep copy of every region and the lastUpdated stamp.
func (c *Cache) GetCachedData() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := domain.Snapshot{
		Regions:     make(map[string]domain.RegionRecord, len(c.regions)),
		LastUpdated: c.lastUpdated,
	}
	for zip, r := range c.regions {
		snap.Regions[zip] = r.Clone()
	}
	return snap
}

// Get returns a copy of one region's record.
func (c *Cache) Get(zip string) (domain.RegionRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.regions[zip]
	if !ok {
		return domain.RegionRecord{}, domain.NewNotFoundError("region", zip)
	}
	return r.Clone(), nil
}

// Len returns the number of cached regions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.regions)
}

func sortedKeys(m map[string]domain.RegionRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
