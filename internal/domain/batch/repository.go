package batch

import (
	"context"
	"time"

	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
)

// Repository defines storage operations for batches.
type Repository interface {
	// Create inserts a new batch row.
	Create(ctx context.Context, b *Batch) error

	// GetByID returns a batch or a not found error.
	GetByID(ctx context.Context, batchID id.ID) (*Batch, error)

	// GetByIDForUpdate returns a batch with a row lock.
	GetByIDForUpdate(ctx context.Context, batchID id.ID) (*Batch, error)

	// ListForItemForUpdate returns all batches for location+item with
	// row locks, ordered by expiry ascending. Empty batches are
	// excluded.
	ListForItemForUpdate(ctx context.Context, location entity.LocationRef, itemID id.ID) ([]Batch, error)

	// ListByItem returns batches for location+item without locking.
	ListByItem(ctx context.Context, location entity.LocationRef, itemID id.ID, includeEmpty bool) ([]Batch, error)

	// ListByNumber returns all batches sharing a batch number for an
	// item, across locations.
	ListByNumber(ctx context.Context, itemID id.ID, batchNumber string) ([]Batch, error)

	// ListExpiring returns non-empty, unheld batches at a location
	// whose expiry falls on or before the cutoff.
	ListExpiring(ctx context.Context, location entity.LocationRef, cutoff time.Time) ([]Batch, error)

	// UpdateQuantity sets the remaining quantity of a batch.
	UpdateQuantity(ctx context.Context, batchID id.ID, quantity types.Quantity) error

	// SetHold sets or clears the manual hold on a batch, recording
	// why it was placed. Clearing a hold clears the reason.
	SetHold(ctx context.Context, batchID id.ID, hold Hold, reason string) error
}
