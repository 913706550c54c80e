// Package ledger provides the per-location stock ledger: quantity on
// hand per (location, item) with reorder thresholds, plus the immutable
// movement history every mutation appends to.
package ledger

import (
	"context"
	"time"

	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
)

// Repository defines operations for the stock ledger.
type Repository interface {
	// Entry operations

	// GetEntry returns the current entry for location+item.
	// A zero-quantity entry is returned when none exists yet.
	GetEntry(ctx context.Context, location entity.LocationRef, itemID id.ID) (entity.LedgerEntry, error)

	// GetEntryForUpdate returns the entry with a row lock.
	// found is false when no row exists yet (nothing is locked then).
	GetEntryForUpdate(ctx context.Context, location entity.LocationRef, itemID id.ID) (entry entity.LedgerEntry, found bool, err error)

	// InsertEntry creates a new ledger row (first stock arrival).
	InsertEntry(ctx context.Context, entry entity.LedgerEntry) error

	// UpdateQuantity sets the quantity of an existing row.
	UpdateQuantity(ctx context.Context, location entity.LocationRef, itemID id.ID, quantity types.Quantity) error

	// SetReorderLevel updates the low-stock threshold.
	SetReorderLevel(ctx context.Context, location entity.LocationRef, itemID id.ID, level types.Quantity) error

	// ListByLocation returns entries for a location.
	ListByLocation(ctx context.Context, location entity.LocationRef, filter EntryFilter) ([]entity.LedgerEntry, error)

	// ListByItem returns entries across all locations for an item.
	ListByItem(ctx context.Context, itemID id.ID) ([]entity.LedgerEntry, error)

	// ListLowStock returns entries at or below their reorder level.
	ListLowStock(ctx context.Context, location entity.LocationRef) ([]entity.LedgerEntry, error)

	// Movement operations

	// CreateMovements batch inserts movement history rows.
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// GetMovementsByRecorder retrieves movements created by a document.
	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error)

	// GetMovementHistory returns movement history for an item.
	GetMovementHistory(ctx context.Context, itemID id.ID, filter MovementFilter) ([]entity.StockMovement, error)
}

// EntryFilter for filtering ledger entry queries.
type EntryFilter struct {
	ItemIDs     []id.ID
	ExcludeZero bool
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	Location   *entity.LocationRef
	RecordType *entity.RecordType
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}
