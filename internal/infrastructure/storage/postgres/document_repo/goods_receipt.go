package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"medstock/internal/core/apperror"
	"medstock/internal/core/id"
	"medstock/internal/domain/goodsreceipt"
	"medstock/internal/infrastructure/storage/postgres"
)

const (
	goodsReceiptsTable     = "doc_goods_receipts"
	goodsReceiptLinesTable = "doc_goods_receipt_lines"
)

var (
	receiptColumns     = postgres.ExtractDBColumns[goodsreceipt.GoodsReceipt]()
	receiptLineColumns = postgres.ExtractDBColumns[goodsreceipt.Line]()
)

var _ goodsreceipt.Repository = (*GoodsReceiptRepo)(nil)

// GoodsReceiptRepo implements goodsreceipt.Repository.
type GoodsReceiptRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewGoodsReceiptRepo(txm *postgres.TxManager) *GoodsReceiptRepo {
	return &GoodsReceiptRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *GoodsReceiptRepo) Create(ctx context.Context, g *goodsreceipt.GoodsReceipt) error {
	sql, args, err := r.builder.
		Insert(goodsReceiptsTable).
		SetMap(postgres.StructToMap(g)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert goods receipt: %w", err)
	}

	q := r.builder.Insert(goodsReceiptLinesTable).Columns(receiptLineColumns...)
	for _, l := range g.Lines {
		q = q.Values(l.ID, l.ReceiptID, l.ItemID, l.BatchNumber, l.Quantity, l.UnitCost, l.ExpiryDate)
	}
	sql, args, err = q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert goods receipt lines: %w", err)
	}
	return nil
}

func (r *GoodsReceiptRepo) GetByID(ctx context.Context, receiptID id.ID) (*goodsreceipt.GoodsReceipt, error) {
	sql, args, err := r.builder.
		Select(receiptColumns...).
		From(goodsReceiptsTable).
		Where(squirrel.Eq{"id": receiptID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var g goodsreceipt.GoodsReceipt
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &g, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("goods_receipt", receiptID.String())
		}
		return nil, fmt.Errorf("get goods receipt: %w", err)
	}

	lines, err := r.loadLines(ctx, []id.ID{g.ID})
	if err != nil {
		return nil, err
	}
	g.Lines = lines[g.ID]
	return &g, nil
}

func (r *GoodsReceiptRepo) loadLines(ctx context.Context, ids []id.ID) (map[id.ID][]goodsreceipt.Line, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql, args, err := r.builder.
		Select(receiptLineColumns...).
		From(goodsReceiptLinesTable).
		Where(squirrel.Eq{"receipt_id": ids}).
		OrderBy("item_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	var lines []goodsreceipt.Line
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select goods receipt lines: %w", err)
	}
	byDoc := make(map[id.ID][]goodsreceipt.Line, len(ids))
	for _, l := range lines {
		byDoc[l.ReceiptID] = append(byDoc[l.ReceiptID], l)
	}
	return byDoc, nil
}

func (r *GoodsReceiptRepo) List(ctx context.Context, warehouseID *id.ID, limit, offset int) ([]goodsreceipt.GoodsReceipt, error) {
	q := r.builder.
		Select(receiptColumns...).
		From(goodsReceiptsTable).
		OrderBy("date DESC", "number DESC")
	if warehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *warehouseID})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var receipts []goodsreceipt.GoodsReceipt
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &receipts, sql, args...); err != nil {
		return nil, fmt.Errorf("select goods receipts: %w", err)
	}

	ids := make([]id.ID, 0, len(receipts))
	for i := range receipts {
		ids = append(ids, receipts[i].ID)
	}
	byDoc, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range receipts {
		receipts[i].Lines = byDoc[receipts[i].ID]
	}
	return receipts, nil
}
