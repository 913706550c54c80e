// Package dispatch tracks the shipment of each approved requisition
// line from the warehouse to the requester. One dispatch exists per
// (requisition, item) pair, created at approval time and carried
// through to delivery or cancellation.
package dispatch

import (
	"time"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
)

// Status of a dispatch. Pending from approval, dispatched once goods
// leave the warehouse, delivered once the destination confirms
// receipt. Rejecting the requisition cancels its pending dispatches.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDispatched, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Allocation records a draw from one batch against a dispatch. Batch
// number and expiry are denormalized so the shipment record stays
// readable after the batch itself is exhausted. Allocations are
// written at delivery time, when batches are actually consumed.
type Allocation struct {
	ID          id.ID          `db:"id" json:"id"`
	DispatchID  id.ID          `db:"dispatch_id" json:"dispatchId"`
	BatchID     id.ID          `db:"batch_id" json:"batchId"`
	BatchNumber string         `db:"batch_number" json:"batchNumber"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	ExpiryDate  *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`
}

// Dispatch is the shipment of one approved requisition line. Quantity
// is the approved amount to ship; DispatchedBy and ReceivedBy are
// actor user ids from the identity token.
type Dispatch struct {
	ID             id.ID               `db:"id" json:"id"`
	RequisitionID  id.ID               `db:"requisition_id" json:"requisitionId"`
	ItemID         id.ID               `db:"item_id" json:"itemId"`
	TrackingNumber string              `db:"tracking_number" json:"trackingNumber"`
	SourceType     entity.LocationType `db:"source_type" json:"sourceType"`
	SourceID       id.ID               `db:"source_id" json:"sourceId"`
	DestType       entity.LocationType `db:"dest_type" json:"destType"`
	DestID         id.ID               `db:"dest_id" json:"destId"`
	Quantity       types.Quantity      `db:"quantity" json:"quantity"`
	Status         Status              `db:"status" json:"status"`
	DispatchedBy   string              `db:"dispatched_by" json:"dispatchedBy,omitempty"`
	DispatchedAt   *time.Time          `db:"dispatched_at" json:"dispatchedAt,omitempty"`
	ReceivedBy     string              `db:"received_by" json:"receivedBy,omitempty"`
	DeliveredAt    *time.Time          `db:"delivered_at" json:"deliveredAt,omitempty"`
	CreatedAt      time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updatedAt"`

	Allocations []Allocation `db:"-" json:"allocations,omitempty"`
}

func (d *Dispatch) Source() entity.LocationRef {
	return entity.LocationRef{Type: d.SourceType, ID: d.SourceID}
}

func (d *Dispatch) Dest() entity.LocationRef {
	return entity.LocationRef{Type: d.DestType, ID: d.DestID}
}

func (d *Dispatch) Validate() error {
	if id.IsNil(d.RequisitionID) {
		return apperror.NewValidation("dispatch requisition_id is required")
	}
	if id.IsNil(d.ItemID) {
		return apperror.NewValidation("dispatch item_id is required")
	}
	if d.Quantity <= 0 {
		return apperror.NewValidation("dispatch quantity must be positive")
	}
	if !d.SourceType.IsValid() || !d.DestType.IsValid() {
		return apperror.NewValidation("invalid dispatch location")
	}
	if !d.Status.IsValid() {
		return apperror.NewValidation("invalid dispatch status")
	}
	return nil
}

// MarkDispatched moves a pending dispatch to dispatched.
func (d *Dispatch) MarkDispatched(dispatchedBy string, at time.Time) error {
	if d.Status != StatusPending {
		return apperror.NewInvalidTransition("dispatch", string(d.Status), "dispatch")
	}
	d.Status = StatusDispatched
	d.DispatchedBy = dispatchedBy
	d.DispatchedAt = &at
	d.UpdatedAt = at
	return nil
}

// MarkDelivered moves a dispatched dispatch to delivered.
func (d *Dispatch) MarkDelivered(receivedBy string, at time.Time) error {
	if d.Status != StatusDispatched {
		return apperror.NewInvalidTransition("dispatch", string(d.Status), "deliver")
	}
	d.Status = StatusDelivered
	d.ReceivedBy = receivedBy
	d.DeliveredAt = &at
	d.UpdatedAt = at
	return nil
}

// Cancel voids a dispatch that never left the warehouse.
func (d *Dispatch) Cancel(at time.Time) error {
	if d.Status != StatusPending {
		return apperror.NewInvalidTransition("dispatch", string(d.Status), "cancel")
	}
	d.Status = StatusCancelled
	d.UpdatedAt = at
	return nil
}
