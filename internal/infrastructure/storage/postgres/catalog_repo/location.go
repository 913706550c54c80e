package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"medstock/internal/core/entity"
	"medstock/internal/domain/catalogs/location"
	"medstock/internal/infrastructure/storage/postgres"
)

const locationTable = "cat_locations"

// LocationRepo implements location.Repository.
type LocationRepo struct {
	*BaseCatalogRepo[*location.Location]
}

func NewLocationRepo(txm *postgres.TxManager) *LocationRepo {
	return &LocationRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			locationTable,
			postgres.ExtractDBColumns[location.Location](),
			func() *location.Location { return &location.Location{} },
		),
	}
}

// ListByType returns live locations of one type, name ascending.
func (r *LocationRepo) ListByType(ctx context.Context, locType entity.LocationType) ([]*location.Location, error) {
	q := r.Builder().
		Select(postgres.ExtractDBColumns[location.Location]()...).
		From(locationTable).
		Where(squirrel.Eq{"type": locType, "deletion_mark": false}).
		OrderBy("name ASC")
	return r.FindMany(ctx, q)
}
