package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"medstock/internal/core/id"
	"medstock/internal/domain/catalogs/item"
	"medstock/internal/infrastructure/storage/postgres"
)

const itemTable = "cat_items"

// ItemRepo implements item.Repository.
type ItemRepo struct {
	*BaseCatalogRepo[*item.Item]
}

func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			itemTable,
			postgres.ExtractDBColumns[item.Item](),
			func() *item.Item { return &item.Item{} },
		),
	}
}

// GetMany returns items by id, soft-deleted rows excluded.
func (r *ItemRepo) GetMany(ctx context.Context, ids []id.ID) ([]*item.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := r.Builder().
		Select(postgres.ExtractDBColumns[item.Item]()...).
		From(itemTable).
		Where(squirrel.Eq{"id": ids, "deletion_mark": false})
	return r.FindMany(ctx, q)
}
