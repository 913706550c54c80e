// Package location provides the stock-holding location catalog.
// A location is anywhere quantity on hand is tracked: a central
// warehouse, a hospital facility, or an individual user. The three
// kinds share one catalog and one requisition workflow instead of
// parallel per-kind tables.
package location

import (
	"context"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
)

// Location represents a stock-holding location.
type Location struct {
	entity.Catalog

	// Type classifies the location (warehouse / facility / user)
	Type entity.LocationType `db:"type" json:"type"`

	// Address is the physical address (empty for user locations)
	Address *string `db:"address" json:"address,omitempty"`

	// IsActive indicates whether the location is operational
	IsActive bool `db:"is_active" json:"isActive"`

	// AllowNegativeStock permits issuing below zero. Kept off everywhere
	// in production; exists for stock-taking corrections.
	AllowNegativeStock bool `db:"allow_negative_stock" json:"allowNegativeStock"`

	Description *string `db:"description" json:"description,omitempty"`
}

// New creates a new Location with required fields.
func New(code, name string, locType entity.LocationType) *Location {
	return &Location{
		Catalog:  entity.NewCatalog(code, name),
		Type:     locType,
		IsActive: true,
	}
}

// Validate implements entity.Validatable.
func (l *Location) Validate(ctx context.Context) error {
	if err := l.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !l.Type.IsValid() {
		return apperror.NewValidation("invalid location type").
			WithDetail("field", "type").
			WithDetail("value", string(l.Type))
	}

	return nil
}

// Ref returns the ledger reference for this location.
func (l *Location) Ref() entity.LocationRef {
	return entity.NewLocationRef(l.Type, l.ID)
}

// CanAcceptStock returns true if the location can receive stock.
func (l *Location) CanAcceptStock() bool {
	return l.IsActive
}

// CanIssueStock returns true if the location can issue stock.
func (l *Location) CanIssueStock() bool {
	return l.IsActive && l.Type == entity.LocationWarehouse
}

// GetCode implements domain.CodeSetter.
func (l *Location) GetCode() string { return l.Code }

// SetCode implements domain.CodeSetter.
func (l *Location) SetCode(code string) { l.Code = code }
