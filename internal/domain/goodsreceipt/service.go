package goodsreceipt

import (
	"bytes"
	"context"
	"sort"
	"time"

	"medstock/internal/core/apperror"
	"medstock/internal/core/appctx"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/tx"
	"medstock/internal/core/types"
	"medstock/internal/domain/batch"
	"medstock/internal/domain/catalogs/item"
	"medstock/internal/domain/catalogs/location"
	"medstock/internal/domain/ledger"
	"medstock/pkg/logger"
	"medstock/pkg/numerator"
)

const numberPrefix = "GRN"

// Repository defines storage operations for goods receipts.
type Repository interface {
	Create(ctx context.Context, g *GoodsReceipt) error
	GetByID(ctx context.Context, receiptID id.ID) (*GoodsReceipt, error)
	List(ctx context.Context, warehouseID *id.ID, limit, offset int) ([]GoodsReceipt, error)
}

// Ledger is the slice of the stock ledger posting needs.
type Ledger interface {
	Credit(ctx context.Context, posting ledger.Posting, location entity.LocationRef, itemID id.ID, quantity types.Quantity, opts ledger.CreditOptions) error
}

// BatchReceiver registers incoming batches.
type BatchReceiver interface {
	Receive(ctx context.Context, b *batch.Batch) error
}

// ItemReader looks up items for validation and reorder defaults.
type ItemReader interface {
	GetMany(ctx context.Context, ids []id.ID) ([]*item.Item, error)
}

// LocationReader resolves the receiving warehouse.
type LocationReader interface {
	Resolve(ctx context.Context, ref entity.LocationRef) (*location.Location, error)
}

// Service posts goods receipts. Posting is atomic: document, batches
// and ledger credits commit together.
type Service struct {
	repo      Repository
	ledger    Ledger
	batches   BatchReceiver
	items     ItemReader
	locations LocationReader
	txManager tx.Manager
	numerator *numerator.Service
}

func NewService(repo Repository, lg Ledger, batches BatchReceiver, items ItemReader, locations LocationReader, txManager tx.Manager, num *numerator.Service) *Service {
	return &Service{
		repo:      repo,
		ledger:    lg,
		batches:   batches,
		items:     items,
		locations: locations,
		txManager: txManager,
		numerator: num,
	}
}

// Post validates and persists a receipt, registering one batch per
// line and crediting the warehouse ledger. Items with a shelf life
// must arrive with an expiry date. Lines post in ascending item id
// order.
func (s *Service) Post(ctx context.Context, g *GoodsReceipt) (*GoodsReceipt, error) {
	if id.IsNil(g.ID) {
		g.ID = id.New()
	}
	if g.Date.IsZero() {
		g.Date = time.Now()
	}
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	g.CreatedBy = appctx.GetActorID(ctx)
	for i := range g.Lines {
		if id.IsNil(g.Lines[i].ID) {
			g.Lines[i].ID = id.New()
		}
		g.Lines[i].ReceiptID = g.ID
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	warehouse, err := s.locations.Resolve(ctx, g.Warehouse())
	if err != nil {
		return nil, err
	}
	if !warehouse.CanAcceptStock() {
		return nil, apperror.NewValidation("warehouse cannot accept stock").
			WithDetail("warehouseId", g.WarehouseID)
	}

	itemsByID, err := s.loadItems(ctx, g)
	if err != nil {
		return nil, err
	}

	sort.Slice(g.Lines, func(i, j int) bool {
		return bytes.Compare(g.Lines[i].ItemID[:], g.Lines[j].ItemID[:]) < 0
	})

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if g.Number == "" {
			number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numberPrefix), nil, g.Date)
			if err != nil {
				return apperror.NewInternal(err).WithDetail("operation", "generate receipt number")
			}
			g.Number = number
		}
		if err := s.repo.Create(ctx, g); err != nil {
			return apperror.NewDatabaseError("create goods receipt", err)
		}

		posting := ledger.Posting{
			RecorderID:   g.ID,
			RecorderType: "goods_receipt",
			Period:       g.Date,
		}
		for i := range g.Lines {
			line := &g.Lines[i]
			it := itemsByID[line.ItemID]

			b := &batch.Batch{
				ItemID:       line.ItemID,
				LocationType: entity.LocationWarehouse,
				LocationID:   g.WarehouseID,
				BatchNumber:  line.BatchNumber,
				Quantity:     line.Quantity,
				ExpiryDate:   line.ExpiryDate,
				SupplierID:   g.SupplierID,
				ReceivedAt:   g.Date,
			}
			if err := s.batches.Receive(ctx, b); err != nil {
				return err
			}

			opts := ledger.CreditOptions{ReorderLevel: it.DefaultReorderLevel}
			if err := s.ledger.Credit(ctx, posting, g.Warehouse(), line.ItemID, line.Quantity, opts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "goods receipt posted",
		"receipt_id", g.ID, "number", g.Number,
		"warehouse_id", g.WarehouseID, "lines", len(g.Lines))
	return g, nil
}

func (s *Service) loadItems(ctx context.Context, g *GoodsReceipt) (map[id.ID]*item.Item, error) {
	ids := make([]id.ID, 0, len(g.Lines))
	for i := range g.Lines {
		ids = append(ids, g.Lines[i].ItemID)
	}
	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[id.ID]*item.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	for i := range g.Lines {
		line := &g.Lines[i]
		it, ok := byID[line.ItemID]
		if !ok {
			return nil, apperror.NewNotFound("item", line.ItemID)
		}
		if it.HasExpiry() && line.ExpiryDate == nil {
			return nil, apperror.NewValidation("expiry date required for perishable item").
				WithDetail("itemId", line.ItemID)
		}
	}
	return byID, nil
}

// GetByID returns a posted receipt with lines.
func (s *Service) GetByID(ctx context.Context, receiptID id.ID) (*GoodsReceipt, error) {
	return s.repo.GetByID(ctx, receiptID)
}

// List returns receipts, newest first.
func (s *Service) List(ctx context.Context, warehouseID *id.ID, limit, offset int) ([]GoodsReceipt, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	receipts, err := s.repo.List(ctx, warehouseID, limit, offset)
	if err != nil {
		return nil, apperror.NewDatabaseError("list goods receipts", err)
	}
	return receipts, nil
}
