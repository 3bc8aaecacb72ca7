package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/region-data-service/internal/domain"
)

// Service routes refresh triggers to per-category refreshers.
type Service struct {
	order      []domain.Category
	refreshers map[domain.Category]*Refresher
}

// NewService registers refreshers in the given order. A later refresher for
// the same category replaces an earlier one.
func NewService(refreshers ...*Refresher) *Service {
	s := &Service{refreshers: make(map[domain.Category]*Refresher)}
	for _, r := range refreshers {
		if _, ok := s.refreshers[r.Category()]; !ok {
			s.order = append(s.order, r.Category())
		}
		s.refreshers[r.Category()] = r
	}
	return s
}

// Refresh runs one cycle for category.
func (s *Service) Refresh(ctx context.Context, category domain.Category) (Result, error) {
	r, ok := s.refreshers[category]
	if !ok {
		return Result{}, domain.NewNotFoundError("refresher", string(category))
	}
	return r.Refresh(ctx), nil
}

// RefreshAll runs every category concurrently and returns results in
// registration order.
func (s *Service) RefreshAll(ctx context.Context) []Result {
	results := make([]Result, len(s.order))
	var wg sync.WaitGroup
	for i, c := range s.order {
		wg.Add(1)
		go func(i int, r *Refresher) {
			defer wg.Done()
			results[i] = r.Refresh(ctx)
		}(i, s.refreshers[c])
	}
	wg.Wait()
	return results
}

// Scheduler refreshes every category at start and then on an interval.
type Scheduler struct {
	service  *Service
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. A nil clock uses real time.
func NewScheduler(service *Service, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{service: service, interval: interval, clock: clock, logger: logger}
}

// Run blocks until ctx is cancelled. A non-positive interval runs once.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)
	s.tick(ctx)
	if s.interval <= 0 {
		return nil
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	var ok, failed int
	for _, res := range s.service.RefreshAll(ctx) {
		if res.OK {
			ok++
		} else if !IsConfigError(res.Err) {
			failed++
		}
	}
	s.logger.Info("scheduled refresh finished", "ok", ok, "failed", failed)
}
