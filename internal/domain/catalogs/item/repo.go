package item

import (
	"context"

	"medstock/internal/core/id"
	"medstock/internal/domain"
)

// Repository defines persistence for the Item catalog.
type Repository interface {
	domain.CatalogRepository[*Item]

	// GetMany resolves several items at once (delivery populates
	// destination ledger rows from item metadata).
	GetMany(ctx context.Context, ids []id.ID) ([]*Item, error)
}
