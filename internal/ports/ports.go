package ports

import (
	"context"

	"OfferTracker/internal/domain"
)

// ListingSource pulls fresh raw listings for a category from the marketplace.
type ListingSource interface {
	Fetch(ctx context.Context, categoryID string, limit int) ([]domain.RawListing, error)
}

// OfferRepository persists matched listings for history and price tracking.
type OfferRepository interface {
	Upsert(ctx context.Context, offer domain.StoredOffer) error
	Insert(ctx context.Context, offer domain.StoredOffer) error
	Get(ctx context.Context, id string) (domain.StoredOffer, error)
	ListByObservation(ctx context.Context, observationID string) ([]domain.StoredOffer, error)
}

// FilterCatalog resolves the static filter definitions and category taxonomy.
type FilterCatalog interface {
	FiltersFor(categoryID int) []domain.FilterDefinition
	Categories() []domain.Category
}
