package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"medstock/internal/core/apperror"
	"medstock/internal/core/id"
	"medstock/internal/domain/dispatch"
	"medstock/internal/infrastructure/storage/postgres"
)

const (
	dispatchesTable          = "doc_dispatches"
	dispatchAllocationsTable = "doc_dispatch_allocations"
)

var (
	dispatchColumns           = postgres.ExtractDBColumns[dispatch.Dispatch]()
	dispatchAllocationColumns = postgres.ExtractDBColumns[dispatch.Allocation]()
)

var _ dispatch.Repository = (*DispatchRepo)(nil)

// DispatchRepo implements dispatch.Repository.
type DispatchRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewDispatchRepo(txm *postgres.TxManager) *DispatchRepo {
	return &DispatchRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *DispatchRepo) Create(ctx context.Context, dispatches []dispatch.Dispatch) error {
	if len(dispatches) == 0 {
		return nil
	}
	for i := range dispatches {
		sql, args, err := r.builder.
			Insert(dispatchesTable).
			SetMap(postgres.StructToMap(&dispatches[i])).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert dispatch: %w", err)
		}
	}
	return nil
}

func (r *DispatchRepo) GetByID(ctx context.Context, dispatchID id.ID) (*dispatch.Dispatch, error) {
	sql, args, err := r.builder.
		Select(dispatchColumns...).
		From(dispatchesTable).
		Where(squirrel.Eq{"id": dispatchID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var d dispatch.Dispatch
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &d, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("dispatch", dispatchID.String())
		}
		return nil, fmt.Errorf("get dispatch: %w", err)
	}

	if err := r.attachAllocations(ctx, []*dispatch.Dispatch{&d}); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DispatchRepo) GetByRequisition(ctx context.Context, requisitionID id.ID) ([]dispatch.Dispatch, error) {
	return r.getByRequisition(ctx, requisitionID, false)
}

// GetByRequisitionForUpdate locks the requisition's dispatch rows.
// Ordered by item id so concurrent workflow transitions acquire locks
// in the same sequence.
func (r *DispatchRepo) GetByRequisitionForUpdate(ctx context.Context, requisitionID id.ID) ([]dispatch.Dispatch, error) {
	return r.getByRequisition(ctx, requisitionID, true)
}

func (r *DispatchRepo) getByRequisition(ctx context.Context, requisitionID id.ID, forUpdate bool) ([]dispatch.Dispatch, error) {
	q := r.builder.
		Select(dispatchColumns...).
		From(dispatchesTable).
		Where(squirrel.Eq{"requisition_id": requisitionID}).
		OrderBy("item_id ASC")
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return r.selectMany(ctx, q)
}

func (r *DispatchRepo) Update(ctx context.Context, d *dispatch.Dispatch) error {
	sql, args, err := r.builder.
		Update(dispatchesTable).
		Set("status", d.Status).
		Set("dispatched_by", d.DispatchedBy).
		Set("dispatched_at", d.DispatchedAt).
		Set("received_by", d.ReceivedBy).
		Set("delivered_at", d.DeliveredAt).
		Set("updated_at", d.UpdatedAt).
		Where(squirrel.Eq{"id": d.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update dispatch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("dispatch", d.ID.String())
	}
	return nil
}

func (r *DispatchRepo) AddAllocations(ctx context.Context, allocations []dispatch.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	q := r.builder.Insert(dispatchAllocationsTable).Columns(dispatchAllocationColumns...)
	for _, a := range allocations {
		q = q.Values(a.ID, a.DispatchID, a.BatchID, a.BatchNumber, a.Quantity, a.ExpiryDate)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build allocations insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert dispatch allocations: %w", err)
	}
	return nil
}

func (r *DispatchRepo) List(ctx context.Context, filter dispatch.ListFilter) ([]dispatch.Dispatch, error) {
	q := r.builder.
		Select(dispatchColumns...).
		From(dispatchesTable).
		OrderBy("created_at DESC", "item_id ASC")
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.SourceID != nil {
		q = q.Where(squirrel.Eq{"source_id": *filter.SourceID})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return r.selectMany(ctx, q)
}

func (r *DispatchRepo) selectMany(ctx context.Context, q squirrel.SelectBuilder) ([]dispatch.Dispatch, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var dispatches []dispatch.Dispatch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &dispatches, sql, args...); err != nil {
		return nil, fmt.Errorf("select dispatches: %w", err)
	}

	refs := make([]*dispatch.Dispatch, len(dispatches))
	for i := range dispatches {
		refs[i] = &dispatches[i]
	}
	if err := r.attachAllocations(ctx, refs); err != nil {
		return nil, err
	}
	return dispatches, nil
}

// attachAllocations loads batch draws for the given dispatches.
func (r *DispatchRepo) attachAllocations(ctx context.Context, dispatches []*dispatch.Dispatch) error {
	if len(dispatches) == 0 {
		return nil
	}
	ids := make([]id.ID, 0, len(dispatches))
	for _, d := range dispatches {
		ids = append(ids, d.ID)
	}

	sql, args, err := r.builder.
		Select(dispatchAllocationColumns...).
		From(dispatchAllocationsTable).
		Where(squirrel.Eq{"dispatch_id": ids}).
		OrderBy("expiry_date ASC NULLS LAST").
		ToSql()
	if err != nil {
		return fmt.Errorf("build allocations query: %w", err)
	}
	var allocs []dispatch.Allocation
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &allocs, sql, args...); err != nil {
		return fmt.Errorf("select dispatch allocations: %w", err)
	}

	byDispatch := make(map[id.ID][]dispatch.Allocation)
	for _, a := range allocs {
		byDispatch[a.DispatchID] = append(byDispatch[a.DispatchID], a)
	}
	for _, d := range dispatches {
		d.Allocations = byDispatch[d.ID]
	}
	return nil
}
