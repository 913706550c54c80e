package ledger

import (
	"context"
	"time"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/tx"
	"medstock/internal/core/types"
	"medstock/pkg/logger"
)

// Posting identifies the document a ledger mutation belongs to.
type Posting struct {
	RecorderID   id.ID
	RecorderType string
	Period       time.Time
}

// Service implements stock ledger logic: debits with balance
// enforcement, credits with lazy entry creation, and low-stock checks.
// Debit and Credit expect to run inside a caller-managed transaction;
// the row lock taken by Debit is only meaningful there.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// Debit removes quantity from a location. The ledger row is locked
// before the balance check so concurrent debits serialize; a debit that
// would drive the balance negative fails with INSUFFICIENT_STOCK and no
// partial effect.
func (s *Service) Debit(ctx context.Context, posting Posting, location entity.LocationRef, itemID id.ID, quantity types.Quantity) error {
	if quantity <= 0 {
		return apperror.NewValidation("debit quantity must be positive")
	}

	entry, found, err := s.repo.GetEntryForUpdate(ctx, location, itemID)
	if err != nil {
		return apperror.NewDatabaseError("lock ledger entry", err)
	}
	if !found {
		return apperror.NewInsufficientStock(itemID.String(), quantity.Float64(), 0)
	}
	if entry.Quantity < quantity {
		return apperror.NewInsufficientStock(itemID.String(), quantity.Float64(), entry.Quantity.Float64())
	}

	if err := s.repo.UpdateQuantity(ctx, location, itemID, entry.Quantity-quantity); err != nil {
		return apperror.NewDatabaseError("update ledger entry", err)
	}

	movement := entity.NewStockMovement(
		posting.RecorderID, posting.RecorderType, posting.Period,
		entity.RecordTypeExpense, location, itemID, quantity,
	)
	if err := s.repo.CreateMovements(ctx, []entity.StockMovement{movement}); err != nil {
		return apperror.NewDatabaseError("record expense movement", err)
	}

	logger.Debug(ctx, "ledger debit",
		"item_id", itemID, "location", location.String(), "quantity", quantity)
	return nil
}

// CreditOptions carries item metadata applied when the ledger row is
// created on first arrival.
type CreditOptions struct {
	ReorderLevel types.Quantity
}

// Credit adds quantity to a location, creating the ledger row on first
// arrival. A locked read keeps concurrent credits to the same row from
// losing updates.
func (s *Service) Credit(ctx context.Context, posting Posting, location entity.LocationRef, itemID id.ID, quantity types.Quantity, opts CreditOptions) error {
	if quantity <= 0 {
		return apperror.NewValidation("credit quantity must be positive")
	}

	entry, found, err := s.repo.GetEntryForUpdate(ctx, location, itemID)
	if err != nil {
		return apperror.NewDatabaseError("lock ledger entry", err)
	}

	now := time.Now()
	if !found {
		err = s.repo.InsertEntry(ctx, entity.LedgerEntry{
			LocationType:   location.Type,
			LocationID:     location.ID,
			ItemID:         itemID,
			Quantity:       quantity,
			ReorderLevel:   opts.ReorderLevel,
			LastMovementAt: now,
			UpdatedAt:      now,
		})
	} else {
		err = s.repo.UpdateQuantity(ctx, location, itemID, entry.Quantity+quantity)
	}
	if err != nil {
		return apperror.NewDatabaseError("credit ledger entry", err)
	}

	movement := entity.NewStockMovement(
		posting.RecorderID, posting.RecorderType, posting.Period,
		entity.RecordTypeReceipt, location, itemID, quantity,
	)
	if err := s.repo.CreateMovements(ctx, []entity.StockMovement{movement}); err != nil {
		return apperror.NewDatabaseError("record receipt movement", err)
	}

	logger.Debug(ctx, "ledger credit",
		"item_id", itemID, "location", location.String(), "quantity", quantity)
	return nil
}

// GetBalance returns the current quantity on hand for location+item.
func (s *Service) GetBalance(ctx context.Context, location entity.LocationRef, itemID id.ID) (types.Quantity, error) {
	entry, err := s.repo.GetEntry(ctx, location, itemID)
	if err != nil {
		return 0, apperror.NewDatabaseError("get ledger entry", err)
	}
	return entry.Quantity, nil
}

// GetStock returns ledger entries for a location.
func (s *Service) GetStock(ctx context.Context, location entity.LocationRef, filter EntryFilter) ([]entity.LedgerEntry, error) {
	entries, err := s.repo.ListByLocation(ctx, location, filter)
	if err != nil {
		return nil, apperror.NewDatabaseError("list ledger entries", err)
	}
	return entries, nil
}

// GetStockByItem returns per-location balances for one item.
func (s *Service) GetStockByItem(ctx context.Context, itemID id.ID) ([]entity.LedgerEntry, error) {
	entries, err := s.repo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, apperror.NewDatabaseError("list ledger entries by item", err)
	}
	return entries, nil
}

// IsLowStock reports whether the balance for location+item is at or
// below its reorder level. Missing rows count as low stock only when a
// positive reorder level was ever configured, which for an absent row
// is never the case.
func (s *Service) IsLowStock(ctx context.Context, location entity.LocationRef, itemID id.ID) (bool, error) {
	entry, err := s.repo.GetEntry(ctx, location, itemID)
	if err != nil {
		return false, apperror.NewDatabaseError("get ledger entry", err)
	}
	return entry.IsLowStock(), nil
}

// ListLowStock returns all entries at a location at or below their
// reorder level.
func (s *Service) ListLowStock(ctx context.Context, location entity.LocationRef) ([]entity.LedgerEntry, error) {
	entries, err := s.repo.ListLowStock(ctx, location)
	if err != nil {
		return nil, apperror.NewDatabaseError("list low stock entries", err)
	}
	return entries, nil
}

// SetReorderLevel overrides the low-stock threshold for location+item.
func (s *Service) SetReorderLevel(ctx context.Context, location entity.LocationRef, itemID id.ID, level types.Quantity) error {
	if level < 0 {
		return apperror.NewValidation("reorder level must not be negative")
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SetReorderLevel(ctx, location, itemID, level); err != nil {
			return apperror.NewDatabaseError("set reorder level", err)
		}
		return nil
	})
}

// GetMovementHistory returns the movement trail for an item.
func (s *Service) GetMovementHistory(ctx context.Context, itemID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	movements, err := s.repo.GetMovementHistory(ctx, itemID, filter)
	if err != nil {
		return nil, apperror.NewDatabaseError("get movement history", err)
	}
	return movements, nil
}
