package location

import (
	"context"

	"medstock/internal/core/entity"
	"medstock/internal/domain"
)

// Repository defines persistence for the Location catalog.
type Repository interface {
	domain.CatalogRepository[*Location]

	// ListByType returns all locations of one type.
	ListByType(ctx context.Context, locType entity.LocationType) ([]*Location, error)
}
