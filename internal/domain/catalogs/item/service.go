package item

import (
	"context"
	"strings"

	"medstock/internal/core/id"
	"medstock/internal/core/tx"
	"medstock/internal/domain"
	"medstock/pkg/numerator"
)

// Service provides business logic for the Item catalog.
type Service struct {
	*domain.CatalogService[*Item]
	repo Repository
}

// NewService creates a new Item service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Item]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  num,
		EntityName: "item",
		CodePrefix: "ITM",
	})

	normalize := func(ctx context.Context, i *Item) error {
		i.Name = strings.TrimSpace(i.Name)
		i.Unit = strings.ToLower(strings.TrimSpace(i.Unit))
		return nil
	}
	base.Hooks().OnBeforeCreate(normalize)
	base.Hooks().OnBeforeUpdate(normalize)

	return &Service{
		CatalogService: base,
		repo:           repo,
	}
}

// GetMany resolves several items at once.
func (s *Service) GetMany(ctx context.Context, ids []id.ID) ([]*Item, error) {
	return s.repo.GetMany(ctx, ids)
}
