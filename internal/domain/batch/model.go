// Package batch tracks per-batch stock with expiry dates and holds,
// and implements first-expired-first-out selection for dispatch.
package batch

import (
	"time"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
)

// NearExpiryWindow is how far ahead of the expiry date a batch is
// reported as near_expiry.
const NearExpiryWindow = 30 * 24 * time.Hour

// Hold is a manual restriction placed on a batch. It takes precedence
// over expiry-derived status.
type Hold string

const (
	HoldNone     Hold = ""
	HoldRecalled Hold = "recalled"
	HoldBlocked  Hold = "blocked"
)

// Status is the effective batch state. Recalled and blocked are manual
// holds; expired, near_expiry and active derive from the expiry date.
type Status string

const (
	StatusActive     Status = "active"
	StatusNearExpiry Status = "near_expiry"
	StatusExpired    Status = "expired"
	StatusRecalled   Status = "recalled"
	StatusBlocked    Status = "blocked"
)

// Batch is a physically identifiable lot of an item at a location.
// Quantity is what remains unallocated; it never exceeds the received
// quantity and never goes negative.
type Batch struct {
	ID           id.ID               `db:"id" json:"id"`
	ItemID       id.ID               `db:"item_id" json:"itemId"`
	LocationType entity.LocationType `db:"location_type" json:"locationType"`
	LocationID   id.ID               `db:"location_id" json:"locationId"`
	BatchNumber  string              `db:"batch_number" json:"batchNumber"`
	Quantity     types.Quantity      `db:"quantity" json:"quantity"`
	ReceivedQty  types.Quantity      `db:"received_qty" json:"receivedQty"`
	ExpiryDate   *time.Time          `db:"expiry_date" json:"expiryDate,omitempty"`
	Hold         Hold                `db:"hold" json:"hold,omitempty"`
	HoldReason   string              `db:"hold_reason" json:"holdReason,omitempty"`
	SupplierID   *id.ID              `db:"supplier_id" json:"supplierId,omitempty"`
	ReceivedAt   time.Time           `db:"received_at" json:"receivedAt"`
	CreatedAt    time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updatedAt"`
}

func (b *Batch) Location() entity.LocationRef {
	return entity.LocationRef{Type: b.LocationType, ID: b.LocationID}
}

// StatusAt derives the effective status at the given instant. Manual
// holds win over expiry; batches without an expiry date never expire.
// Expiry compares at date granularity: a batch is expired once its
// expiry date is before today, so it stays usable through the expiry
// day itself.
func (b *Batch) StatusAt(now time.Time) Status {
	switch b.Hold {
	case HoldRecalled:
		return StatusRecalled
	case HoldBlocked:
		return StatusBlocked
	}
	if b.ExpiryDate == nil {
		return StatusActive
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if b.ExpiryDate.Before(today) {
		return StatusExpired
	}
	if !b.ExpiryDate.After(now.Add(NearExpiryWindow)) {
		return StatusNearExpiry
	}
	return StatusActive
}

// Dispatchable reports whether the batch may be drawn from. Near-expiry
// batches are dispatchable; expired and held batches are not.
func (b *Batch) Dispatchable(now time.Time) bool {
	if b.Quantity <= 0 {
		return false
	}
	switch b.StatusAt(now) {
	case StatusActive, StatusNearExpiry:
		return true
	}
	return false
}

func (b *Batch) Validate() error {
	if id.IsNil(b.ItemID) {
		return apperror.NewValidation("batch item_id is required")
	}
	if b.BatchNumber == "" {
		return apperror.NewValidation("batch number is required")
	}
	if b.Quantity < 0 {
		return apperror.NewValidation("batch quantity must not be negative")
	}
	if !b.LocationType.IsValid() {
		return apperror.NewValidation("invalid batch location type")
	}
	return nil
}
