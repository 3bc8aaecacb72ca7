// Package refresh runs one category's fetch, normalize and merge cycle, and
// schedules cycles for every category.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/region-data-service/internal/domain"
	"github.com/couchcryptid/region-data-service/internal/fetch"
	"github.com/couchcryptid/region-data-service/internal/observability"
)

// Fetcher retrieves one upstream payload.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Response, error)
}

// Merger absorbs a category's patches.
type Merger interface {
	MergeZipData(ctx context.Context, category domain.Category, patches []domain.Patch) (int, error)
}

// Publisher announces applied merges. Publish failures never fail a refresh.
type Publisher interface {
	Publish(ctx context.Context, cs domain.ChangeSet) error
}

// Result reports one refresh cycle. Reason is set whenever OK is false.
type Result struct {
	OK       bool            `json:"ok"`
	Category domain.Category `json:"category"`
	Updated  int             `json:"updated"`
	Reason   string          `json:"reason,omitempty"`
	Meta     map[string]any  `json:"meta,omitempty"`
	Err      error           `json:"-"`
}

// Refresher runs refresh cycles for one source.
type Refresher struct {
	source    Source
	enabled   bool
	fetcher   Fetcher
	merger    Merger
	publisher Publisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Options configures a Refresher. Publisher and Clock are optional.
type Options struct {
	Enabled   bool
	Fetcher   Fetcher
	Merger    Merger
	Publisher Publisher
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// New creates a Refresher for src.
func New(src Source, opts Options) *Refresher {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Refresher{
		source:    src,
		enabled:   opts.Enabled,
		fetcher:   opts.Fetcher,
		merger:    opts.Merger,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Category returns the category this refresher writes.
func (r *Refresher) Category() domain.Category {
	return r.source.Category
}

// Refresh runs one cycle. It never panics on upstream data; every failure is
// reported through the Result.
func (r *Refresher) Refresh(ctx context.Context) Result {
	runID := uuid.NewString()
	category := r.source.Category
	logger := r.logger.With("category", category, "run_id", runID)
	start := r.clock.Now()

	res := Result{Category: category, Meta: map[string]any{"run_id": runID}}

	updated, meta, err := r.run(ctx, runID, logger)
	for k, v := range meta {
		res.Meta[k] = v
	}
	elapsed := r.clock.Since(start)
	r.metrics.RefreshDuration.WithLabelValues(string(category)).Observe(elapsed.Seconds())
	res.Meta["duration_ms"] = elapsed.Milliseconds()

	if err != nil {
		res.Reason = err.Error()
		res.Err = err
		outcome := "failed"
		switch {
		case errors.Is(err, ErrFetchDisabled):
			outcome = "disabled"
			logger.Debug("refresh skipped", "reason", res.Reason)
		case errors.Is(err, ErrSourceNotConfigured):
			outcome = "unconfigured"
			logger.Warn("refresh skipped", "reason", res.Reason)
		default:
			res.Meta["stage"] = string(StageOf(err))
			logger.Error("refresh failed", "error", err)
		}
		r.metrics.RefreshTotal.WithLabelValues(string(category), outcome).Inc()
		return res
	}

	res.OK = true
	res.Updated = updated
	r.metrics.RefreshTotal.WithLabelValues(string(category), "ok").Inc()
	logger.Info("refresh complete", "updated", updated, "duration", elapsed)
	return res
}

func (r *Refresher) run(ctx context.Context, runID string, logger *slog.Logger) (int, map[string]any, error) {
	if !r.enabled {
		return 0, nil, ErrFetchDisabled
	}
	if r.source.URL == "" {
		return 0, nil, fmt.Errorf("%s: %w", r.source.Category, ErrSourceNotConfigured)
	}
	meta := map[string]any{"source_url": r.source.URL}

	resp, err := r.fetcher.Fetch(ctx, r.source.request())
	if err != nil {
		return 0, meta, &StageError{Stage: StageFetch, Err: err}
	}
	meta["status"] = resp.StatusCode
	meta["bytes"] = len(resp.Body)
	if !resp.OK() {
		return 0, meta, &StageError{Stage: StageFetch, Err: &fetch.StatusError{StatusCode: resp.StatusCode}}
	}

	patches, err := r.source.Normalizer.Normalize(resp.Body)
	if err != nil {
		return 0, meta, &StageError{Stage: StageNormalize, Err: err}
	}
	r.metrics.PatchesEmitted.WithLabelValues(string(r.source.Category)).Add(float64(len(patches)))
	meta["patches"] = len(patches)
	if len(patches) == 0 {
		logger.Info("normalizer produced no patches")
	}

	n, err := r.merger.MergeZipData(ctx, r.source.Category, patches)
	if err != nil {
		return 0, meta, &StageError{Stage: StageMerge, Err: err}
	}
	mergedAt := r.clock.Now().UTC()
	meta["merged_at"] = mergedAt.Format(time.RFC3339)

	if r.publisher != nil && len(patches) > 0 {
		cs := domain.ChangeSet{RunID: runID, Category: r.source.Category, MergedAt: mergedAt, Patches: patches}
		if err := r.publisher.Publish(ctx, cs); err != nil {
			r.metrics.PublishErrors.Inc()
			logger.Error("publish change set failed", "error", err, "patches", len(patches))
		}
	}
	return n, meta, nil
}
