package dispatch

import (
	"context"
	"time"

	"medstock/internal/core/id"
)

// ListFilter narrows dispatch queries.
type ListFilter struct {
	Status   *Status
	SourceID *id.ID
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

// Repository defines storage operations for dispatches. Reads return
// rows with their batch allocations attached.
type Repository interface {
	// Create inserts dispatch rows.
	Create(ctx context.Context, dispatches []Dispatch) error

	// GetByID returns a dispatch or a not found error.
	GetByID(ctx context.Context, dispatchID id.ID) (*Dispatch, error)

	// GetByRequisition returns all dispatches for a requisition in
	// ascending item id order.
	GetByRequisition(ctx context.Context, requisitionID id.ID) ([]Dispatch, error)

	// GetByRequisitionForUpdate is GetByRequisition with row locks.
	GetByRequisitionForUpdate(ctx context.Context, requisitionID id.ID) ([]Dispatch, error)

	// Update persists status and actor fields of one dispatch.
	Update(ctx context.Context, d *Dispatch) error

	// AddAllocations appends batch draws to a dispatch.
	AddAllocations(ctx context.Context, allocations []Allocation) error

	// List returns dispatches, newest first.
	List(ctx context.Context, filter ListFilter) ([]Dispatch, error)
}
