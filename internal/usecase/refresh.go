package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"OfferTracker/internal/domain"
	"OfferTracker/internal/format"
	"OfferTracker/internal/matcher"
	"OfferTracker/internal/ports"
	"OfferTracker/internal/store"
)

// RefresherDeps wires all driven adapters into the refresh pipeline.
type RefresherDeps struct {
	Source     ports.ListingSource
	Registry   *store.Registry
	Repository ports.OfferRepository
	FetchLimit int
	Metrics    *Metrics
	Logger     *slog.Logger
}

// Refresher runs one fetch → match → format → merge cycle per observation.
type Refresher struct {
	source     ports.ListingSource
	registry   *store.Registry
	repository ports.OfferRepository
	fetchLimit int
	metrics    *Metrics
	logger     *slog.Logger
}

// NewRefresher constructs the pipeline component.
func NewRefresher(deps RefresherDeps) *Refresher {
	limit := deps.FetchLimit
	if limit <= 0 {
		limit = 40
	}
	return &Refresher{
		source:     deps.Source,
		registry:   deps.Registry,
		repository: deps.Repository,
		fetchLimit: limit,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Refresh executes a merge cycle for the observation and returns its
// merged result set. A failed fetch leaves the result set untouched.
func (r *Refresher) Refresh(ctx context.Context, id string) ([]domain.FormattedOffer, error) {
	return r.refresh(ctx, id, false)
}

// RefreshAndPersist behaves like Refresh and additionally upserts every
// matched listing into durable storage. Storage failures are logged and
// do not fail the cycle.
func (r *Refresher) RefreshAndPersist(ctx context.Context, id string) ([]domain.FormattedOffer, error) {
	return r.refresh(ctx, id, true)
}

func (r *Refresher) refresh(ctx context.Context, id string, persist bool) ([]domain.FormattedOffer, error) {
	mode := "memory"
	if persist {
		mode = "durable"
	}
	r.metrics.IncRefresh(mode)

	obs, err := r.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if obs.CategoryID == "" {
		return nil, store.ErrCategoryRequired
	}

	listings, err := r.source.Fetch(ctx, obs.CategoryID, r.fetchLimit)
	if err != nil {
		r.metrics.IncFetchError()
		return nil, fmt.Errorf("fetch category %s: %w", obs.CategoryID, err)
	}

	matched := matcher.Match(obs, listings)
	r.metrics.AddMatched(len(matched))
	r.debug("listings matched", "observation", id, "fetched", len(listings), "matched", len(matched))

	if persist && r.repository != nil {
		r.persist(ctx, obs, matched)
	}

	merged, err := r.registry.Merge(id, format.Offers(matched, time.Now()))
	if err != nil {
		return nil, err
	}
	r.metrics.ObserveMergedSize(len(merged))
	return merged, nil
}

// persist mirrors matched listings into the offer repository. Durability
// is best-effort relative to the in-memory view.
func (r *Refresher) persist(ctx context.Context, obs domain.Observation, matched []domain.RawListing) {
	snapshot := obs.FilterSnapshot()
	for _, l := range matched {
		if err := r.repository.Upsert(ctx, format.Stored(l, snapshot)); err != nil {
			r.metrics.IncStoreError()
			r.warn("offer upsert failed", "observation", obs.ID, "listing", l.ID, "error", err)
		}
	}
}

func (r *Refresher) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Refresher) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
