// Package document_repo provides PostgreSQL implementations for the
// document repositories. Documents are stored as a header row plus
// line rows and always load as one aggregate.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"medstock/internal/core/apperror"
	"medstock/internal/core/id"
	"medstock/internal/domain/requisition"
	"medstock/internal/infrastructure/storage/postgres"
)

const (
	requisitionsTable     = "doc_requisitions"
	requisitionLinesTable = "doc_requisition_lines"
)

var (
	requisitionColumns     = postgres.ExtractDBColumns[requisition.Requisition]()
	requisitionLineColumns = postgres.ExtractDBColumns[requisition.Line]()
)

var _ requisition.Repository = (*RequisitionRepo)(nil)

// RequisitionRepo implements requisition.Repository.
type RequisitionRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewRequisitionRepo(txm *postgres.TxManager) *RequisitionRepo {
	return &RequisitionRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *RequisitionRepo) Create(ctx context.Context, req *requisition.Requisition) error {
	sql, args, err := r.builder.
		Insert(requisitionsTable).
		SetMap(postgres.StructToMap(req)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert requisition: %w", err)
	}
	return r.insertLines(ctx, req.Lines)
}

func (r *RequisitionRepo) insertLines(ctx context.Context, lines []requisition.Line) error {
	if len(lines) == 0 {
		return nil
	}
	q := r.builder.Insert(requisitionLinesTable).Columns(requisitionLineColumns...)
	for _, l := range lines {
		q = q.Values(l.ID, l.RequisitionID, l.ItemID, l.RequestedQty, l.ApprovedQty, l.DeliveredQty, l.Note)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert requisition lines: %w", err)
	}
	return nil
}

func (r *RequisitionRepo) GetByID(ctx context.Context, requisitionID id.ID) (*requisition.Requisition, error) {
	return r.getOne(ctx, squirrel.Eq{"id": requisitionID}, requisitionID.String(), false)
}

func (r *RequisitionRepo) GetByIDForUpdate(ctx context.Context, requisitionID id.ID) (*requisition.Requisition, error) {
	return r.getOne(ctx, squirrel.Eq{"id": requisitionID}, requisitionID.String(), true)
}

func (r *RequisitionRepo) GetByNumber(ctx context.Context, number string) (*requisition.Requisition, error) {
	return r.getOne(ctx, squirrel.Eq{"number": number}, number, false)
}

func (r *RequisitionRepo) getOne(ctx context.Context, cond squirrel.Eq, key string, forUpdate bool) (*requisition.Requisition, error) {
	q := r.builder.
		Select(requisitionColumns...).
		From(requisitionsTable).
		Where(cond).
		Limit(1)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var req requisition.Requisition
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &req, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("requisition", key)
		}
		return nil, fmt.Errorf("get requisition: %w", err)
	}

	lines, err := r.loadLines(ctx, []id.ID{req.ID})
	if err != nil {
		return nil, err
	}
	req.Lines = lines[req.ID]
	return &req, nil
}

// loadLines fetches lines for a set of requisitions in one query.
func (r *RequisitionRepo) loadLines(ctx context.Context, ids []id.ID) (map[id.ID][]requisition.Line, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql, args, err := r.builder.
		Select(requisitionLineColumns...).
		From(requisitionLinesTable).
		Where(squirrel.Eq{"requisition_id": ids}).
		OrderBy("item_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	var lines []requisition.Line
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select requisition lines: %w", err)
	}

	byDoc := make(map[id.ID][]requisition.Line, len(ids))
	for _, l := range lines {
		byDoc[l.RequisitionID] = append(byDoc[l.RequisitionID], l)
	}
	return byDoc, nil
}

// Update persists the header with optimistic locking.
func (r *RequisitionRepo) Update(ctx context.Context, req *requisition.Requisition) error {
	data := postgres.StructToMap(req)
	version := data["version"].(int)
	delete(data, "id")
	delete(data, "version")

	sql, args, err := r.builder.
		Update(requisitionsTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": req.ID, "version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update requisition: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("requisition", req.ID)
	}
	req.Version = version + 1
	return nil
}

// UpdateLines persists approved and delivered quantities.
func (r *RequisitionRepo) UpdateLines(ctx context.Context, lines []requisition.Line) error {
	if len(lines) == 0 {
		return nil
	}
	queries := make([]postgres.BatchQuery, 0, len(lines))
	for _, l := range lines {
		sql, args, err := r.builder.
			Update(requisitionLinesTable).
			Set("approved_qty", l.ApprovedQty).
			Set("delivered_qty", l.DeliveredQty).
			Where(squirrel.Eq{"id": l.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build line update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	if r.txm.GetTx(ctx) != nil {
		return postgres.NewBatchInserter(r.txm).ExecuteBatch(ctx, queries)
	}
	for _, q := range queries {
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, q.SQL, q.Args...); err != nil {
			return fmt.Errorf("update requisition line: %w", err)
		}
	}
	return nil
}

func (r *RequisitionRepo) List(ctx context.Context, filter requisition.ListFilter) ([]requisition.Requisition, error) {
	q := r.builder.
		Select(requisitionColumns...).
		From(requisitionsTable).
		OrderBy("date DESC", "number DESC")
	q = applyRequisitionFilter(q, filter)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var reqs []requisition.Requisition
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &reqs, sql, args...); err != nil {
		return nil, fmt.Errorf("select requisitions: %w", err)
	}

	ids := make([]id.ID, 0, len(reqs))
	for i := range reqs {
		ids = append(ids, reqs[i].ID)
	}
	byDoc, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range reqs {
		reqs[i].Lines = byDoc[reqs[i].ID]
	}
	return reqs, nil
}

func (r *RequisitionRepo) Count(ctx context.Context, filter requisition.ListFilter) (int64, error) {
	q := r.builder.Select("COUNT(*)").From(requisitionsTable)
	q = applyRequisitionFilter(q, filter)

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count requisitions: %w", err)
	}
	return total, nil
}

func applyRequisitionFilter(q squirrel.SelectBuilder, filter requisition.ListFilter) squirrel.SelectBuilder {
	if filter.Source != nil {
		q = q.Where(squirrel.Eq{"source": *filter.Source})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.RequesterID != nil {
		q = q.Where(squirrel.Eq{"requester_id": *filter.RequesterID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.ToDate})
	}
	return q
}
