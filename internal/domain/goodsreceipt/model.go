// Package goodsreceipt handles inbound deliveries from suppliers.
// Posting a receipt credits the warehouse ledger and registers one
// batch per line.
package goodsreceipt

import (
	"time"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
)

// Line is one received lot. Every line becomes a batch; lines without
// an expiry date are for items that do not expire.
type Line struct {
	ID          id.ID          `db:"id" json:"id"`
	ReceiptID   id.ID          `db:"receipt_id" json:"receiptId"`
	ItemID      id.ID          `db:"item_id" json:"itemId"`
	BatchNumber string         `db:"batch_number" json:"batchNumber"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	UnitCost    types.Money    `db:"unit_cost" json:"unitCost"`
	ExpiryDate  *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`
}

func (l *Line) Validate() error {
	if id.IsNil(l.ItemID) {
		return apperror.NewValidation("line item_id is required")
	}
	if l.BatchNumber == "" {
		return apperror.NewValidation("line batch number is required")
	}
	if l.Quantity <= 0 {
		return apperror.NewValidation("line quantity must be positive")
	}
	return nil
}

// GoodsReceipt documents one supplier delivery into a warehouse.
type GoodsReceipt struct {
	entity.BaseDocument
	Number      string    `db:"number" json:"number"`
	Date        time.Time `db:"date" json:"date"`
	WarehouseID id.ID     `db:"warehouse_id" json:"warehouseId"`
	SupplierID  *id.ID    `db:"supplier_id" json:"supplierId,omitempty"`
	Reference   string    `db:"reference" json:"reference,omitempty"`
	Remarks     string    `db:"remarks" json:"remarks,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

func (g *GoodsReceipt) Warehouse() entity.LocationRef {
	return entity.LocationRef{Type: entity.LocationWarehouse, ID: g.WarehouseID}
}

func (g *GoodsReceipt) Validate() error {
	if id.IsNil(g.WarehouseID) {
		return apperror.NewValidation("warehouse_id is required")
	}
	if len(g.Lines) == 0 {
		return apperror.NewValidation("receipt must have at least one line")
	}
	for i := range g.Lines {
		if err := g.Lines[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
