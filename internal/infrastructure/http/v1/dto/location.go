package dto

import (
	"medstock/internal/core/entity"
	"medstock/internal/domain/catalogs/location"
)

type CreateLocationRequest struct {
	Code               string  `json:"code"`
	Name               string  `json:"name" binding:"required"`
	Type               string  `json:"type" binding:"required"`
	Address            *string `json:"address"`
	AllowNegativeStock bool    `json:"allowNegativeStock"`
	Description        *string `json:"description"`
}

type UpdateLocationRequest struct {
	Name               string  `json:"name" binding:"required"`
	Address            *string `json:"address"`
	IsActive           *bool   `json:"isActive"`
	AllowNegativeStock bool    `json:"allowNegativeStock"`
	Description        *string `json:"description"`
}

type LocationResponse struct {
	BaseResponse
	Code               string  `json:"code"`
	Name               string  `json:"name"`
	Type               string  `json:"type"`
	Address            *string `json:"address,omitempty"`
	IsActive           bool    `json:"isActive"`
	AllowNegativeStock bool    `json:"allowNegativeStock"`
	Description        *string `json:"description,omitempty"`
}

func MapCreateLocation(req CreateLocationRequest) *location.Location {
	loc := location.New(req.Code, req.Name, entity.LocationType(req.Type))
	loc.Address = req.Address
	loc.AllowNegativeStock = req.AllowNegativeStock
	loc.Description = req.Description
	return loc
}

// MapUpdateLocation never changes the location type: stock ledger rows
// reference locations by (type, id) and a type change would orphan them.
func MapUpdateLocation(req UpdateLocationRequest, existing *location.Location) *location.Location {
	existing.Name = req.Name
	existing.Address = req.Address
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	existing.AllowNegativeStock = req.AllowNegativeStock
	existing.Description = req.Description
	return existing
}

func MapLocationToDTO(loc *location.Location) any {
	return LocationResponse{
		BaseResponse:       FromBaseCatalog(loc.BaseCatalog),
		Code:               loc.Code,
		Name:               loc.Name,
		Type:               string(loc.Type),
		Address:            loc.Address,
		IsActive:           loc.IsActive,
		AllowNegativeStock: loc.AllowNegativeStock,
		Description:        loc.Description,
	}
}
