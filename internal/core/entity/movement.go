package entity

import (
	"time"

	"medstock/internal/core/id"
	"medstock/internal/core/types"
)

// RecordType defines movement direction for the stock ledger.
type RecordType string

const (
	// RecordTypeReceipt increases quantity on hand
	RecordTypeReceipt RecordType = "receipt"
	// RecordTypeExpense decreases quantity on hand
	RecordTypeExpense RecordType = "expense"
)

// StockMovement is one immutable row in the stock movement history.
// Movements are never updated, only inserted; the ledger entry is the
// materialized balance they roll up to.
type StockMovement struct {
	// LineID is the unique identifier for this movement line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// RecorderID is the document that created this movement
	// (goods receipt, dispatch, delivery)
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// RecorderType is the document type (e.g. "GoodsReceipt", "Delivery")
	RecorderType string `db:"recorder_type" json:"recorderType"`

	// Period is the business date of the movement
	Period time.Time `db:"period" json:"period"`

	RecordType RecordType `db:"record_type" json:"recordType"`

	// Dimensions
	LocationType LocationType `db:"location_type" json:"locationType"`
	LocationID   id.ID        `db:"location_id" json:"locationId"`
	ItemID       id.ID        `db:"item_id" json:"itemId"`

	// Resources
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a new stock movement.
func NewStockMovement(
	recorderID id.ID,
	recorderType string,
	period time.Time,
	recordType RecordType,
	location LocationRef,
	itemID id.ID,
	quantity types.Quantity,
) StockMovement {
	return StockMovement{
		LineID:       id.New(),
		RecorderID:   recorderID,
		RecorderType: recorderType,
		Period:       period,
		RecordType:   recordType,
		LocationType: location.Type,
		LocationID:   location.ID,
		ItemID:       itemID,
		Quantity:     quantity,
		CreatedAt:    time.Now().UTC(),
	}
}

// Location returns the movement's location reference.
func (m *StockMovement) Location() LocationRef {
	return LocationRef{Type: m.LocationType, ID: m.LocationID}
}

// SignedQuantity returns quantity with sign based on record type.
// Receipt = positive, Expense = negative.
func (m *StockMovement) SignedQuantity() types.Quantity {
	if m.RecordType == RecordTypeExpense {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// LedgerEntry is the quantity-on-hand record for one item at one location.
// Created on first stock arrival, mutated by every debit/credit, never
// deleted: zero quantity is a valid state.
type LedgerEntry struct {
	// Dimensions
	LocationType LocationType `db:"location_type" json:"locationType"`
	LocationID   id.ID        `db:"location_id" json:"locationId"`
	ItemID       id.ID        `db:"item_id" json:"itemId"`

	// Quantity on hand. Invariant: never negative.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// ReorderLevel is the low-stock threshold for this item at this location.
	ReorderLevel types.Quantity `db:"reorder_level" json:"reorderLevel"`

	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Location returns the entry's location reference.
func (e *LedgerEntry) Location() LocationRef {
	return LocationRef{Type: e.LocationType, ID: e.LocationID}
}

// IsLowStock reports whether quantity is at or below the reorder level.
// An entry with no configured reorder level is never low.
func (e *LedgerEntry) IsLowStock() bool {
	return e.ReorderLevel > 0 && e.Quantity <= e.ReorderLevel
}
