// Package register_repo provides PostgreSQL implementations for the
// stock ledger.
package register_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
	"medstock/internal/domain/ledger"
	"medstock/internal/infrastructure/storage/postgres"
)

const (
	movementsTable = "reg_stock_movements"
	balancesTable  = "reg_stock_balances"
)

var movementColumns = []string{
	"line_id", "recorder_id", "recorder_type", "period", "record_type",
	"location_type", "location_id", "item_id", "quantity", "created_at",
}

var balanceColumns = []string{
	"location_type", "location_id", "item_id", "quantity",
	"reorder_level", "last_movement_at", "updated_at",
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository on two tables: an append-only
// movement log and materialized per-(location, item) balances.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func locationCond(location entity.LocationRef) squirrel.Eq {
	return squirrel.Eq{
		"location_type": location.Type,
		"location_id":   location.ID,
	}
}

// GetEntry returns the balance row, or a zero-quantity entry when none
// exists.
func (r *LedgerRepo) GetEntry(ctx context.Context, location entity.LocationRef, itemID id.ID) (entity.LedgerEntry, error) {
	sql, args, err := r.builder.
		Select(balanceColumns...).
		From(balancesTable).
		Where(locationCond(location)).
		Where(squirrel.Eq{"item_id": itemID}).
		ToSql()
	if err != nil {
		return entity.LedgerEntry{}, fmt.Errorf("build query: %w", err)
	}

	var entry entity.LedgerEntry
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &entry, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.LedgerEntry{
				LocationType: location.Type,
				LocationID:   location.ID,
				ItemID:       itemID,
			}, nil
		}
		return entity.LedgerEntry{}, fmt.Errorf("get balance: %w", err)
	}
	return entry, nil
}

// GetEntryForUpdate locks and returns the balance row.
func (r *LedgerRepo) GetEntryForUpdate(ctx context.Context, location entity.LocationRef, itemID id.ID) (entity.LedgerEntry, bool, error) {
	sql, args, err := r.builder.
		Select(balanceColumns...).
		From(balancesTable).
		Where(locationCond(location)).
		Where(squirrel.Eq{"item_id": itemID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return entity.LedgerEntry{}, false, fmt.Errorf("build query: %w", err)
	}

	var entry entity.LedgerEntry
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &entry, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.LedgerEntry{}, false, nil
		}
		return entity.LedgerEntry{}, false, fmt.Errorf("lock balance: %w", err)
	}
	return entry, true, nil
}

// InsertEntry creates the balance row for first stock arrival.
func (r *LedgerRepo) InsertEntry(ctx context.Context, entry entity.LedgerEntry) error {
	sql, args, err := r.builder.
		Insert(balancesTable).
		SetMap(postgres.StructToMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert balance: %w", err)
	}
	return nil
}

// UpdateQuantity sets the balance and refreshes movement timestamps.
func (r *LedgerRepo) UpdateQuantity(ctx context.Context, location entity.LocationRef, itemID id.ID, quantity types.Quantity) error {
	now := time.Now()
	sql, args, err := r.builder.
		Update(balancesTable).
		Set("quantity", quantity).
		Set("last_movement_at", now).
		Set("updated_at", now).
		Where(locationCond(location)).
		Where(squirrel.Eq{"item_id": itemID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("balance row missing for item %s", itemID)
	}
	return nil
}

// SetReorderLevel upserts the low-stock threshold, creating a
// zero-quantity row when the item never moved through the location.
func (r *LedgerRepo) SetReorderLevel(ctx context.Context, location entity.LocationRef, itemID id.ID, level types.Quantity) error {
	now := time.Now()
	sql, args, err := r.builder.
		Insert(balancesTable).
		Columns(balanceColumns...).
		Values(location.Type, location.ID, itemID, types.Quantity(0), level, now, now).
		Suffix("ON CONFLICT (location_type, location_id, item_id) DO UPDATE SET reorder_level = EXCLUDED.reorder_level, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("set reorder level: %w", err)
	}
	return nil
}

// ListByLocation returns balance rows for a location.
func (r *LedgerRepo) ListByLocation(ctx context.Context, location entity.LocationRef, filter ledger.EntryFilter) ([]entity.LedgerEntry, error) {
	q := r.builder.
		Select(balanceColumns...).
		From(balancesTable).
		Where(locationCond(location)).
		OrderBy("item_id ASC")
	if len(filter.ItemIDs) > 0 {
		q = q.Where(squirrel.Eq{"item_id": filter.ItemIDs})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.Gt{"quantity": 0})
	}
	return r.selectEntries(ctx, q)
}

// ListByItem returns per-location balances for one item.
func (r *LedgerRepo) ListByItem(ctx context.Context, itemID id.ID) ([]entity.LedgerEntry, error) {
	q := r.builder.
		Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("location_type ASC", "location_id ASC")
	return r.selectEntries(ctx, q)
}

// ListLowStock returns entries at or below a configured reorder level.
func (r *LedgerRepo) ListLowStock(ctx context.Context, location entity.LocationRef) ([]entity.LedgerEntry, error) {
	q := r.builder.
		Select(balanceColumns...).
		From(balancesTable).
		Where(locationCond(location)).
		Where(squirrel.Gt{"reorder_level": 0}).
		Where(squirrel.Expr("quantity <= reorder_level")).
		OrderBy("item_id ASC")
	return r.selectEntries(ctx, q)
}

func (r *LedgerRepo) selectEntries(ctx context.Context, q squirrel.SelectBuilder) ([]entity.LedgerEntry, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var entries []entity.LedgerEntry
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return entries, nil
}

// CreateMovements appends movement rows. Uses COPY inside a
// transaction and falls back to a multi-row insert outside one.
func (r *LedgerRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	if tx := r.txm.GetTx(ctx); tx != nil {
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, []any{
				m.LineID, m.RecorderID, m.RecorderType, m.Period, m.RecordType,
				m.LocationType, m.LocationID, m.ItemID, m.Quantity, m.CreatedAt,
			})
		}
		inserter := postgres.NewBatchInserter(r.txm)
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(movementsTable).Columns(movementColumns...)
	for _, m := range movements {
		q = q.Values(
			m.LineID, m.RecorderID, m.RecorderType, m.Period, m.RecordType,
			m.LocationType, m.LocationID, m.ItemID, m.Quantity, m.CreatedAt,
		)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

// GetMovementsByRecorder returns movements created by one document.
func (r *LedgerRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	q := r.builder.
		Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at ASC")
	return r.selectMovements(ctx, q)
}

// GetMovementHistory returns the movement trail for an item.
func (r *LedgerRepo) GetMovementHistory(ctx context.Context, itemID id.ID, filter ledger.MovementFilter) ([]entity.StockMovement, error) {
	q := r.builder.
		Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("period DESC", "created_at DESC")
	if filter.Location != nil {
		q = q.Where(locationCond(*filter.Location))
	}
	if filter.RecordType != nil {
		q = q.Where(squirrel.Eq{"record_type": *filter.RecordType})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"period": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"period": *filter.ToDate})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return r.selectMovements(ctx, q)
}

func (r *LedgerRepo) selectMovements(ctx context.Context, q squirrel.SelectBuilder) ([]entity.StockMovement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}
