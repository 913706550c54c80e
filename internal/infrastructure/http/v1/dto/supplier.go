package dto

import (
	"medstock/internal/domain/catalogs/supplier"
)

type CreateSupplierRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name" binding:"required"`
	ContactName *string `json:"contactName"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	Address     *string `json:"address"`
}

type UpdateSupplierRequest struct {
	Name        string  `json:"name" binding:"required"`
	ContactName *string `json:"contactName"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	Address     *string `json:"address"`
	IsActive    *bool   `json:"isActive"`
}

type SupplierResponse struct {
	BaseResponse
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	ContactName *string `json:"contactName,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
	Address     *string `json:"address,omitempty"`
	IsActive    bool    `json:"isActive"`
}

func MapCreateSupplier(req CreateSupplierRequest) *supplier.Supplier {
	s := supplier.New(req.Code, req.Name)
	s.ContactName = req.ContactName
	s.Phone = req.Phone
	s.Email = req.Email
	s.Address = req.Address
	return s
}

func MapUpdateSupplier(req UpdateSupplierRequest, existing *supplier.Supplier) *supplier.Supplier {
	existing.Name = req.Name
	existing.ContactName = req.ContactName
	existing.Phone = req.Phone
	existing.Email = req.Email
	existing.Address = req.Address
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	return existing
}

func MapSupplierToDTO(s *supplier.Supplier) any {
	return SupplierResponse{
		BaseResponse: FromBaseCatalog(s.BaseCatalog),
		Code:         s.Code,
		Name:         s.Name,
		ContactName:  s.ContactName,
		Phone:        s.Phone,
		Email:        s.Email,
		Address:      s.Address,
		IsActive:     s.IsActive,
	}
}
