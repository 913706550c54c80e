package location

import (
	"context"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/tx"
	"medstock/internal/domain"
	"medstock/pkg/numerator"
)

// Service provides business logic for the Location catalog.
type Service struct {
	*domain.CatalogService[*Location]
	repo Repository
}

// NewService creates a new Location service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Location]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  num,
		EntityName: "location",
		CodePrefix: "LOC",
	})

	return &Service{
		CatalogService: base,
		repo:           repo,
	}
}

// ListByType returns all locations of one type.
func (s *Service) ListByType(ctx context.Context, locType entity.LocationType) ([]*Location, error) {
	if !locType.IsValid() {
		return nil, apperror.NewValidation("invalid location type").
			WithDetail("value", string(locType))
	}
	return s.repo.ListByType(ctx, locType)
}

// Resolve returns the location for a ledger reference, checking the
// type matches the catalog record.
func (s *Service) Resolve(ctx context.Context, ref entity.LocationRef) (*Location, error) {
	loc, err := s.GetByID(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if loc.Type != ref.Type {
		return nil, apperror.NewValidation("location type mismatch").
			WithDetail("expected", string(ref.Type)).
			WithDetail("actual", string(loc.Type))
	}
	return loc, nil
}

// ResolveID is a convenience wrapper for callers holding a bare ID.
func (s *Service) ResolveID(ctx context.Context, locationID id.ID) (*Location, error) {
	return s.GetByID(ctx, locationID)
}
