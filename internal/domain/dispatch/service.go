package dispatch

import (
	"context"

	"medstock/internal/core/apperror"
	"medstock/internal/core/id"
)

// Service exposes dispatch queries. Dispatches are created and
// delivered by the fulfillment orchestrator as part of requisition
// transitions; nothing outside it mutates them.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, dispatchID id.ID) (*Dispatch, error) {
	return s.repo.GetByID(ctx, dispatchID)
}

func (s *Service) GetByRequisition(ctx context.Context, requisitionID id.ID) ([]Dispatch, error) {
	dispatches, err := s.repo.GetByRequisition(ctx, requisitionID)
	if err != nil {
		return nil, apperror.NewDatabaseError("list dispatches by requisition", err)
	}
	return dispatches, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Dispatch, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	dispatches, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperror.NewDatabaseError("list dispatches", err)
	}
	return dispatches, nil
}
