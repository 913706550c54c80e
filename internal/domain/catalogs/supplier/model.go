// Package supplier provides the supplier catalog.
// Suppliers are the external origin of goods receipts.
package supplier

import (
	"context"
	"regexp"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Supplier represents a goods supplier.
type Supplier struct {
	entity.Catalog

	ContactName *string `db:"contact_name" json:"contactName,omitempty"`
	Phone       *string `db:"phone" json:"phone,omitempty"`
	Email       *string `db:"email" json:"email,omitempty"`
	Address     *string `db:"address" json:"address,omitempty"`

	IsActive bool `db:"is_active" json:"isActive"`
}

// New creates a new Supplier.
func New(code, name string) *Supplier {
	return &Supplier{
		Catalog:  entity.NewCatalog(code, name),
		IsActive: true,
	}
}

// Validate implements entity.Validatable.
func (s *Supplier) Validate(ctx context.Context) error {
	if err := s.Catalog.Validate(ctx); err != nil {
		return err
	}

	if s.Email != nil && *s.Email != "" && !emailRe.MatchString(*s.Email) {
		return apperror.NewValidation("invalid email").
			WithDetail("field", "email")
	}

	return nil
}

// GetCode implements domain.CodeSetter.
func (s *Supplier) GetCode() string { return s.Code }

// SetCode implements domain.CodeSetter.
func (s *Supplier) SetCode(code string) { s.Code = code }
