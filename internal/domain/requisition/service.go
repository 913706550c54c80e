package requisition

import (
	"context"
	"time"

	"medstock/internal/core/apperror"
	"medstock/internal/core/appctx"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/tx"
	"medstock/internal/domain/catalogs/item"
	"medstock/internal/domain/catalogs/location"
	"medstock/pkg/logger"
	"medstock/pkg/numerator"
)

const numberPrefix = "REQ"

// ItemReader is the part of the item catalog the service needs.
type ItemReader interface {
	GetMany(ctx context.Context, ids []id.ID) ([]*item.Item, error)
}

// LocationReader resolves location references against the catalog.
type LocationReader interface {
	Resolve(ctx context.Context, ref entity.LocationRef) (*location.Location, error)
}

// Service creates and reads requisitions. Workflow transitions
// (approve, reject, dispatch, deliver) live in the fulfillment
// orchestrator; this service owns intake and queries.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numerator *numerator.Service
	items     ItemReader
	locations LocationReader
}

func NewService(repo Repository, txManager tx.Manager, num *numerator.Service, items ItemReader, locations LocationReader) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		numerator: num,
		items:     items,
		locations: locations,
	}
}

// Create registers a new requisition in pending status. The requester
// and warehouse must exist in the location catalog and every line item
// must exist in the item catalog.
func (s *Service) Create(ctx context.Context, r *Requisition) (*Requisition, error) {
	if id.IsNil(r.ID) {
		r.ID = id.New()
	}
	r.Status = StatusPending
	if r.Date.IsZero() {
		r.Date = time.Now()
	}
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.CreatedBy = appctx.GetActorID(ctx)
	for i := range r.Lines {
		if id.IsNil(r.Lines[i].ID) {
			r.Lines[i].ID = id.New()
		}
		r.Lines[i].RequisitionID = r.ID
		r.Lines[i].ApprovedQty = 0
		r.Lines[i].DeliveredQty = 0
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, r); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if r.Number == "" {
			number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numberPrefix), nil, r.Date)
			if err != nil {
				return apperror.NewInternal(err).WithDetail("operation", "generate requisition number")
			}
			r.Number = number
		}
		if err := s.repo.Create(ctx, r); err != nil {
			return apperror.NewDatabaseError("create requisition", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "requisition created",
		"requisition_id", r.ID, "number", r.Number,
		"source", r.Source, "lines", len(r.Lines))
	return r, nil
}

func (s *Service) checkReferences(ctx context.Context, r *Requisition) error {
	warehouse, err := s.locations.Resolve(ctx, r.Warehouse())
	if err != nil {
		return err
	}
	if !warehouse.CanIssueStock() {
		return apperror.NewValidation("warehouse cannot issue stock").
			WithDetail("warehouseId", r.WarehouseID)
	}
	if r.Source == SourceFacility {
		requester, err := s.locations.Resolve(ctx, r.Requester())
		if err != nil {
			return err
		}
		if !requester.CanAcceptStock() {
			return apperror.NewValidation("requesting facility is inactive").
				WithDetail("requesterId", r.RequesterID)
		}
	}

	ids := make([]id.ID, 0, len(r.Lines))
	for i := range r.Lines {
		ids = append(ids, r.Lines[i].ItemID)
	}
	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[id.ID]struct{}, len(items))
	for _, it := range items {
		known[it.ID] = struct{}{}
	}
	for _, itemID := range ids {
		if _, ok := known[itemID]; !ok {
			return apperror.NewNotFound("item", itemID)
		}
	}
	return nil
}

// GetByID returns the requisition with lines.
func (s *Service) GetByID(ctx context.Context, requisitionID id.ID) (*Requisition, error) {
	return s.repo.GetByID(ctx, requisitionID)
}

// GetByNumber returns the requisition by document number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Requisition, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List returns requisitions matching the filter plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Requisition, int64, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.NewDatabaseError("list requisitions", err)
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperror.NewDatabaseError("count requisitions", err)
	}
	return list, total, nil
}
