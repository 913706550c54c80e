package requisition

import (
	"context"
	"time"

	"medstock/internal/core/id"
)

// ListFilter narrows requisition queries.
type ListFilter struct {
	Source      *Source
	Status      *Status
	RequesterID *id.ID
	WarehouseID *id.ID
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}

// Repository defines storage operations for requisitions. Every read
// and write includes the lines; the header and its lines form one
// aggregate.
type Repository interface {
	// Create inserts the header and all lines.
	Create(ctx context.Context, r *Requisition) error

	// GetByID returns the requisition with lines, or a not found error.
	GetByID(ctx context.Context, requisitionID id.ID) (*Requisition, error)

	// GetByIDForUpdate locks the header row and returns it with lines.
	// Workflow transitions go through this.
	GetByIDForUpdate(ctx context.Context, requisitionID id.ID) (*Requisition, error)

	// GetByNumber returns the requisition by document number.
	GetByNumber(ctx context.Context, number string) (*Requisition, error)

	// Update persists the header. Guards on Version and returns a
	// concurrent modification error on mismatch.
	Update(ctx context.Context, r *Requisition) error

	// UpdateLines persists approved and delivered quantities.
	UpdateLines(ctx context.Context, lines []Line) error

	// List returns requisitions with lines, newest first.
	List(ctx context.Context, filter ListFilter) ([]Requisition, error)

	// Count returns how many requisitions match the filter.
	Count(ctx context.Context, filter ListFilter) (int64, error)
}
