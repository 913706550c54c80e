package dto

import (
	"medstock/internal/core/types"
	"medstock/internal/domain/catalogs/item"
)

type CreateItemRequest struct {
	Code                string         `json:"code"`
	Name                string         `json:"name" binding:"required"`
	Category            string         `json:"category" binding:"required"`
	Unit                string         `json:"unit" binding:"required"`
	UnitCost            string         `json:"unitCost"`
	ShelfLifeMonths     *int           `json:"shelfLifeMonths"`
	DefaultReorderLevel types.Quantity `json:"defaultReorderLevel"`
	Description         *string        `json:"description"`
}

type UpdateItemRequest struct {
	Name                string         `json:"name" binding:"required"`
	Category            string         `json:"category" binding:"required"`
	Unit                string         `json:"unit" binding:"required"`
	UnitCost            string         `json:"unitCost"`
	ShelfLifeMonths     *int           `json:"shelfLifeMonths"`
	DefaultReorderLevel types.Quantity `json:"defaultReorderLevel"`
	Description         *string        `json:"description"`
}

type ItemResponse struct {
	BaseResponse
	Code                string         `json:"code"`
	Name                string         `json:"name"`
	Category            string         `json:"category"`
	Unit                string         `json:"unit"`
	UnitCost            string         `json:"unitCost"`
	ShelfLifeMonths     *int           `json:"shelfLifeMonths,omitempty"`
	DefaultReorderLevel types.Quantity `json:"defaultReorderLevel"`
	Description         *string        `json:"description,omitempty"`
}

func MapCreateItem(req CreateItemRequest) *item.Item {
	it := item.NewItem(req.Code, req.Name, item.Category(req.Category), req.Unit)
	if req.UnitCost != "" {
		if cost, err := types.NewMoneyFromString(req.UnitCost); err == nil {
			it.UnitCost = cost
		}
	}
	it.ShelfLifeMonths = req.ShelfLifeMonths
	it.DefaultReorderLevel = req.DefaultReorderLevel
	it.Description = req.Description
	return it
}

func MapUpdateItem(req UpdateItemRequest, existing *item.Item) *item.Item {
	existing.Name = req.Name
	existing.Category = item.Category(req.Category)
	existing.Unit = req.Unit
	if req.UnitCost != "" {
		if cost, err := types.NewMoneyFromString(req.UnitCost); err == nil {
			existing.UnitCost = cost
		}
	}
	existing.ShelfLifeMonths = req.ShelfLifeMonths
	existing.DefaultReorderLevel = req.DefaultReorderLevel
	existing.Description = req.Description
	return existing
}

func MapItemToDTO(it *item.Item) any {
	return ItemResponse{
		BaseResponse:        FromBaseCatalog(it.BaseCatalog),
		Code:                it.Code,
		Name:                it.Name,
		Category:            string(it.Category),
		Unit:                it.Unit,
		UnitCost:            it.UnitCost.String(),
		ShelfLifeMonths:     it.ShelfLifeMonths,
		DefaultReorderLevel: it.DefaultReorderLevel,
		Description:         it.Description,
	}
}
