// Package item provides the inventory item catalog: the canonical
// description of everything that can be stocked, requested and dispatched.
// Quantities are never stored here; they live in the stock ledger.
package item

import (
	"context"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
	"medstock/internal/core/types"
)

// Category groups items for reporting and reorder policy.
type Category string

const (
	CategoryMedicine   Category = "medicine"
	CategoryConsumable Category = "consumable"
	CategoryEquipment  Category = "equipment"
	CategoryLabSupply  Category = "lab_supply"
	CategoryGeneral    Category = "general"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryMedicine, CategoryConsumable, CategoryEquipment, CategoryLabSupply, CategoryGeneral:
		return true
	}
	return false
}

// Item represents one catalog entry.
type Item struct {
	entity.Catalog

	Category Category `db:"category" json:"category"`

	// Unit is the unit of measure (e.g. "box", "vial", "piece")
	Unit string `db:"unit" json:"unit"`

	// UnitCost is the reference cost per unit
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	// ShelfLifeMonths is the expected shelf life for batch-tracked items.
	// Nil for items without expiry.
	ShelfLifeMonths *int `db:"shelf_life_months" json:"shelfLifeMonths,omitempty"`

	// DefaultReorderLevel seeds the reorder level of new ledger entries.
	DefaultReorderLevel types.Quantity `db:"default_reorder_level" json:"defaultReorderLevel"`

	Description *string `db:"description" json:"description,omitempty"`
}

// NewItem creates a new Item with required fields.
func NewItem(code, name string, category Category, unit string) *Item {
	return &Item{
		Catalog:  entity.NewCatalog(code, name),
		Category: category,
		Unit:     unit,
	}
}

// Validate implements entity.Validatable.
func (i *Item) Validate(ctx context.Context) error {
	if err := i.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !i.Category.IsValid() {
		return apperror.NewValidation("invalid item category").
			WithDetail("field", "category").
			WithDetail("value", string(i.Category))
	}

	if i.Unit == "" {
		return apperror.NewValidation("unit of measure is required").
			WithDetail("field", "unit")
	}

	if i.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost cannot be negative").
			WithDetail("field", "unitCost")
	}

	if i.ShelfLifeMonths != nil && *i.ShelfLifeMonths <= 0 {
		return apperror.NewValidation("shelf life must be positive").
			WithDetail("field", "shelfLifeMonths")
	}

	if i.DefaultReorderLevel.IsNegative() {
		return apperror.NewValidation("reorder level cannot be negative").
			WithDetail("field", "defaultReorderLevel")
	}

	return nil
}

// HasExpiry reports whether stock of this item is batch-tracked with
// expiry dates.
func (i *Item) HasExpiry() bool {
	return i.ShelfLifeMonths != nil
}

// GetCode implements domain.CodeSetter.
func (i *Item) GetCode() string { return i.Code }

// SetCode implements domain.CodeSetter.
func (i *Item) SetCode(code string) { i.Code = code }
