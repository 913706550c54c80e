package requisition

import (
	"time"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
)

// Source distinguishes who raised the requisition. Facility and user
// requisitions share one table and one workflow; source is a
// discriminator, not a behavioral fork.
type Source string

const (
	SourceFacility Source = "facility"
	SourceUser     Source = "user"
)

func (s Source) IsValid() bool {
	return s == SourceFacility || s == SourceUser
}

// RequesterType maps the source to the location type stock is
// delivered to.
func (s Source) RequesterType() entity.LocationType {
	if s == SourceUser {
		return entity.LocationUser
	}
	return entity.LocationFacility
}

// Line is one requested item. Quantities obey
// 0 <= delivered <= approved <= requested at all times.
type Line struct {
	ID            id.ID          `db:"id" json:"id"`
	RequisitionID id.ID          `db:"requisition_id" json:"requisitionId"`
	ItemID        id.ID          `db:"item_id" json:"itemId"`
	RequestedQty  types.Quantity `db:"requested_qty" json:"requestedQty"`
	ApprovedQty   types.Quantity `db:"approved_qty" json:"approvedQty"`
	DeliveredQty  types.Quantity `db:"delivered_qty" json:"deliveredQty"`
	Note          string         `db:"note" json:"note,omitempty"`
}

func (l *Line) Validate() error {
	if id.IsNil(l.ItemID) {
		return apperror.NewValidation("line item_id is required")
	}
	if l.RequestedQty <= 0 {
		return apperror.NewValidation("line requested quantity must be positive")
	}
	if l.ApprovedQty < 0 || l.ApprovedQty > l.RequestedQty {
		return apperror.NewValidation("approved quantity must be between zero and requested")
	}
	if l.DeliveredQty < 0 || l.DeliveredQty > l.ApprovedQty {
		return apperror.NewValidation("delivered quantity must be between zero and approved")
	}
	return nil
}

// Requisition is a stock request against a warehouse. Lines are loaded
// with the header; a requisition without lines is invalid.
type Requisition struct {
	entity.BaseDocument
	Number      string     `db:"number" json:"number"`
	Date        time.Time  `db:"date" json:"date"`
	Source      Source     `db:"source" json:"source"`
	RequesterID id.ID      `db:"requester_id" json:"requesterId"`
	WarehouseID id.ID      `db:"warehouse_id" json:"warehouseId"`
	Status      Status     `db:"status" json:"status"`
	Remarks     string     `db:"remarks" json:"remarks,omitempty"`
	ApprovedBy  string     `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	RejectedBy  string     `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt  *time.Time `db:"rejected_at" json:"rejectedAt,omitempty"`
	RejectedFor string     `db:"rejected_for" json:"rejectedFor,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Requester returns where approved stock is delivered to.
func (r *Requisition) Requester() entity.LocationRef {
	return entity.LocationRef{Type: r.Source.RequesterType(), ID: r.RequesterID}
}

// Warehouse returns the location stock is drawn from.
func (r *Requisition) Warehouse() entity.LocationRef {
	return entity.LocationRef{Type: entity.LocationWarehouse, ID: r.WarehouseID}
}

func (r *Requisition) Validate() error {
	if !r.Source.IsValid() {
		return apperror.NewValidation("invalid requisition source")
	}
	if id.IsNil(r.RequesterID) {
		return apperror.NewValidation("requester_id is required")
	}
	if id.IsNil(r.WarehouseID) {
		return apperror.NewValidation("warehouse_id is required")
	}
	if !r.Status.IsValid() {
		return apperror.NewValidation("invalid requisition status")
	}
	if len(r.Lines) == 0 {
		return apperror.NewValidation("requisition must have at least one line")
	}
	seen := make(map[id.ID]struct{}, len(r.Lines))
	for i := range r.Lines {
		if err := r.Lines[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[r.Lines[i].ItemID]; dup {
			return apperror.NewValidation("duplicate item in requisition lines")
		}
		seen[r.Lines[i].ItemID] = struct{}{}
	}
	return nil
}

// Line lookup by item.
func (r *Requisition) LineByItem(itemID id.ID) *Line {
	for i := range r.Lines {
		if r.Lines[i].ItemID == itemID {
			return &r.Lines[i]
		}
	}
	return nil
}

// ClassifyApproval derives the post-approval status from line
// quantities. All lines fully approved means approved; any line
// approved below requested (including zero) means partially approved;
// every line at zero is an error, rejection is the explicit path for
// that.
func (r *Requisition) ClassifyApproval() (Status, error) {
	full := true
	any := false
	for i := range r.Lines {
		l := &r.Lines[i]
		if l.ApprovedQty > 0 {
			any = true
		}
		if l.ApprovedQty != l.RequestedQty {
			full = false
		}
	}
	if !any {
		return "", apperror.NewEmptyApproval(r.ID.String())
	}
	if full {
		return StatusApproved, nil
	}
	return StatusPartiallyApproved, nil
}

// FullyDelivered reports whether every approved line has been
// delivered in full.
func (r *Requisition) FullyDelivered() bool {
	for i := range r.Lines {
		l := &r.Lines[i]
		if l.ApprovedQty > 0 && l.DeliveredQty < l.ApprovedQty {
			return false
		}
	}
	return true
}
