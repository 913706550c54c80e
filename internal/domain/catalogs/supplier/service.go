package supplier

import (
	"medstock/internal/core/tx"
	"medstock/internal/domain"
	"medstock/pkg/numerator"
)

// Repository defines persistence for the Supplier catalog.
type Repository interface {
	domain.CatalogRepository[*Supplier]
}

// Service provides business logic for the Supplier catalog.
type Service struct {
	*domain.CatalogService[*Supplier]
	repo Repository
}

// NewService creates a new Supplier service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Supplier]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  num,
		EntityName: "supplier",
		CodePrefix: "SUP",
	})

	return &Service{
		CatalogService: base,
		repo:           repo,
	}
}
