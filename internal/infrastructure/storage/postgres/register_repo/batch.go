package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
	"medstock/internal/domain/batch"
	"medstock/internal/infrastructure/storage/postgres"
)

const batchesTable = "reg_stock_batches"

var batchColumns = postgres.ExtractDBColumns[batch.Batch]()

var _ batch.Repository = (*BatchRepo)(nil)

// BatchRepo implements batch.Repository.
type BatchRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewBatchRepo(txm *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *BatchRepo) Create(ctx context.Context, b *batch.Batch) error {
	sql, args, err := r.builder.
		Insert(batchesTable).
		SetMap(postgres.StructToMap(b)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	return r.getByID(ctx, batchID, false)
}

func (r *BatchRepo) GetByIDForUpdate(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	return r.getByID(ctx, batchID, true)
}

func (r *BatchRepo) getByID(ctx context.Context, batchID id.ID, forUpdate bool) (*batch.Batch, error) {
	q := r.builder.
		Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"id": batchID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b batch.Batch
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", batchID.String())
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &b, nil
}

// ListForItemForUpdate locks every non-empty batch row for the item at
// the location. Ordered by expiry so lock acquisition follows the
// selection order.
func (r *BatchRepo) ListForItemForUpdate(ctx context.Context, location entity.LocationRef, itemID id.ID) ([]batch.Batch, error) {
	q := r.builder.
		Select(batchColumns...).
		From(batchesTable).
		Where(locationCond(location)).
		Where(squirrel.Eq{"item_id": itemID}).
		Where(squirrel.Gt{"quantity": 0}).
		OrderBy("expiry_date ASC NULLS LAST", "received_at ASC", "id ASC").
		Suffix("FOR UPDATE")
	return r.selectBatches(ctx, q)
}

func (r *BatchRepo) ListByItem(ctx context.Context, location entity.LocationRef, itemID id.ID, includeEmpty bool) ([]batch.Batch, error) {
	q := r.builder.
		Select(batchColumns...).
		From(batchesTable).
		Where(locationCond(location)).
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("expiry_date ASC NULLS LAST", "received_at ASC", "id ASC")
	if !includeEmpty {
		q = q.Where(squirrel.Gt{"quantity": 0})
	}
	return r.selectBatches(ctx, q)
}

func (r *BatchRepo) ListByNumber(ctx context.Context, itemID id.ID, batchNumber string) ([]batch.Batch, error) {
	q := r.builder.
		Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"item_id": itemID, "batch_number": batchNumber}).
		OrderBy("received_at ASC", "id ASC")
	return r.selectBatches(ctx, q)
}

func (r *BatchRepo) ListExpiring(ctx context.Context, location entity.LocationRef, cutoff time.Time) ([]batch.Batch, error) {
	q := r.builder.
		Select(batchColumns...).
		From(batchesTable).
		Where(locationCond(location)).
		Where(squirrel.Gt{"quantity": 0}).
		Where(squirrel.Eq{"hold": batch.HoldNone}).
		Where(squirrel.LtOrEq{"expiry_date": cutoff}).
		OrderBy("expiry_date ASC", "id ASC")
	return r.selectBatches(ctx, q)
}

func (r *BatchRepo) UpdateQuantity(ctx context.Context, batchID id.ID, quantity types.Quantity) error {
	sql, args, err := r.builder.
		Update(batchesTable).
		Set("quantity", quantity).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": batchID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update batch quantity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("batch", batchID.String())
	}
	return nil
}

func (r *BatchRepo) SetHold(ctx context.Context, batchID id.ID, hold batch.Hold, reason string) error {
	sql, args, err := r.builder.
		Update(batchesTable).
		Set("hold", hold).
		Set("hold_reason", reason).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": batchID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set batch hold: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("batch", batchID.String())
	}
	return nil
}

func (r *BatchRepo) selectBatches(ctx context.Context, q squirrel.SelectBuilder) ([]batch.Batch, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var batches []batch.Batch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	return batches, nil
}
