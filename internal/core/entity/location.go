package entity

import (
	"fmt"

	"medstock/internal/core/id"
)

// LocationType classifies a stock-holding location.
type LocationType string

const (
	// LocationWarehouse is a central warehouse issuing stock.
	LocationWarehouse LocationType = "warehouse"
	// LocationFacility is a hospital facility (ward, pharmacy, clinic).
	LocationFacility LocationType = "facility"
	// LocationUser is an individual holding user-issued stock.
	LocationUser LocationType = "user"
)

// IsValid reports whether t is a known location type.
func (t LocationType) IsValid() bool {
	switch t {
	case LocationWarehouse, LocationFacility, LocationUser:
		return true
	}
	return false
}

func (t LocationType) String() string { return string(t) }

// LocationRef identifies one stock-holding location.
// Ledger entries and batches are keyed by (location, item).
type LocationRef struct {
	Type LocationType `db:"location_type" json:"locationType"`
	ID   id.ID        `db:"location_id" json:"locationId"`
}

// NewLocationRef builds a LocationRef.
func NewLocationRef(t LocationType, locationID id.ID) LocationRef {
	return LocationRef{Type: t, ID: locationID}
}

// IsZero reports whether the reference is unset.
func (l LocationRef) IsZero() bool {
	return l.Type == "" && id.IsNil(l.ID)
}

// Equal reports whether two references point at the same location.
func (l LocationRef) Equal(other LocationRef) bool {
	return l.Type == other.Type && l.ID == other.ID
}

func (l LocationRef) String() string {
	return fmt.Sprintf("%s:%s", l.Type, l.ID)
}
