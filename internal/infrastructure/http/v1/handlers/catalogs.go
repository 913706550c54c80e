package handlers

import (
	"medstock/internal/domain/catalogs/item"
	"medstock/internal/domain/catalogs/location"
	"medstock/internal/domain/catalogs/supplier"
	"medstock/internal/infrastructure/http/v1/dto"
)

// Typed catalog handlers built on the generic CatalogHandler.

type ItemHandler = CatalogHandler[*item.Item, dto.CreateItemRequest, dto.UpdateItemRequest]

func NewItemHandler(base *BaseHandler, svc *item.Service) *ItemHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*item.Item, dto.CreateItemRequest, dto.UpdateItemRequest]{
		Service:      svc.CatalogService,
		EntityName:   "item",
		MapCreateDTO: dto.MapCreateItem,
		MapUpdateDTO: dto.MapUpdateItem,
		MapToDTO:     func(it *item.Item) any { return dto.MapItemToDTO(it) },
	})
}

type LocationHandler = CatalogHandler[*location.Location, dto.CreateLocationRequest, dto.UpdateLocationRequest]

func NewLocationHandler(base *BaseHandler, svc *location.Service) *LocationHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*location.Location, dto.CreateLocationRequest, dto.UpdateLocationRequest]{
		Service:      svc.CatalogService,
		EntityName:   "location",
		MapCreateDTO: dto.MapCreateLocation,
		MapUpdateDTO: dto.MapUpdateLocation,
		MapToDTO:     func(loc *location.Location) any { return dto.MapLocationToDTO(loc) },
	})
}

type SupplierHandler = CatalogHandler[*supplier.Supplier, dto.CreateSupplierRequest, dto.UpdateSupplierRequest]

func NewSupplierHandler(base *BaseHandler, svc *supplier.Service) *SupplierHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*supplier.Supplier, dto.CreateSupplierRequest, dto.UpdateSupplierRequest]{
		Service:      svc.CatalogService,
		EntityName:   "supplier",
		MapCreateDTO: dto.MapCreateSupplier,
		MapUpdateDTO: dto.MapUpdateSupplier,
		MapToDTO:     func(s *supplier.Supplier) any { return dto.MapSupplierToDTO(s) },
	})
}
