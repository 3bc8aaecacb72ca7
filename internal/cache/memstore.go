package cache

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/region-data-service/internal/domain"
)

// MemoryStore is a process-local Store. Data does not survive a restart.
type MemoryStore struct {
	mu          sync.Mutex
	regions     map[string]domain.RegionRecord
	lastUpdated time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{regions: make(map[string]domain.RegionRecord)}
}

func (m *MemoryStore) Save(_ context.Context, regions []domain.RegionRecord, lastUpdated time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range regions {
		m.regions[r.ZIP] = r.Clone()
	}
	m.lastUpdated = lastUpdated
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := domain.Snapshot{
		Regions:     make(map[string]domain.RegionRecord, len(m.regions)),
		LastUpdated: m.lastUpdated,
	}
	for zip, r := range m.regions {
		snap.Regions[zip] = r.Clone()
	}
	return snap, nil
}
