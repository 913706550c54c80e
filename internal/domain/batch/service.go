package batch

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

// Service implements batch lifecycle logic. Consume and Allocate
// expect to run inside a caller-managed transaction; Recall, Block and
// Unblock open their own.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// Receive registers a new batch arriving at a location. Quantity is
// recorded as both remaining and received.
func (s *Service) Receive(ctx context.Context, b *Batch) error {
	if id.IsNil(b.ID) {
		b.ID = id.New()
	}
	b.ReceivedQty = b.Quantity
	if b.ReceivedAt.IsZero() {
		b.ReceivedAt = time.Now()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := b.Validate(); err != nil {
		return err
	}
	if b.Quantity <= 0 {
		return apperror.NewValidation("received batch quantity must be positive")
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return apperror.NewDatabaseError("create batch", err)
	}
	return nil
}

// Plan produces a dispatch plan for location+item without locking or
// mutating anything. Used to preview what a dispatch would draw.
func (s *Service) Plan(ctx context.Context, location entity.LocationRef, itemID id.ID, requested types.Quantity) (SelectionResult, error) {
	batches, err := s.repo.ListByItem(ctx, location, itemID, false)
	if err != nil {
		return SelectionResult{}, apperror.NewDatabaseError("list batches", err)
	}
	return SelectForDispatch(batches, requested, time.Now()), nil
}

// Consume draws the requested quantity from batches at location+item,
// earliest expiry first, and decrements each drawn batch. All batch
// rows for the item are locked before selection so concurrent consumes
// serialize. Fails with INSUFFICIENT_STOCK when dispatchable batches
// do not cover the request; nothing is written then.
func (s *Service) Consume(ctx context.Context, location entity.LocationRef, itemID id.ID, requested types.Quantity) (SelectionResult, error) {
	if requested <= 0 {
		return SelectionResult{}, apperror.NewValidation("consume quantity must be positive")
	}

	batches, err := s.repo.ListForItemForUpdate(ctx, location, itemID)
	if err != nil {
		return SelectionResult{}, apperror.NewDatabaseError("lock batches", err)
	}

	result := SelectForDispatch(batches, requested, time.Now())
	if !result.Sufficient() {
		return SelectionResult{}, apperror.NewInsufficientStock(
			itemID.String(), requested.Float64(), result.Allocated.Float64(),
		).WithDetail("scope", "batches")
	}

	byID := make(map[id.ID]Batch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}
	for _, alloc := range result.Allocations {
		b := byID[alloc.BatchID]
		if err := s.repo.UpdateQuantity(ctx, alloc.BatchID, b.Quantity-alloc.Quantity); err != nil {
			return SelectionResult{}, apperror.NewDatabaseError("decrement batch", err)
		}
	}

	logger.Debug(ctx, "batches consumed",
		"item_id", itemID, "location", location.String(),
		"requested", requested, "batches", len(result.Allocations))
	return result, nil
}

// Allocate draws a quantity from one specific batch, bypassing FEFO
// order. Fails with OVER_ALLOCATION when the batch cannot cover the
// draw, and with INVALID_TRANSITION when the batch is held or expired.
func (s *Service) Allocate(ctx context.Context, batchID id.ID, quantity types.Quantity) error {
	if quantity <= 0 {
		return apperror.NewValidation("allocation quantity must be positive")
	}

	b, err := s.repo.GetByIDForUpdate(ctx, batchID)
	if err != nil {
		return err
	}
	now := time.Now()
	if !b.Dispatchable(now) {
		return apperror.NewInvalidTransition("batch", string(b.StatusAt(now)), "allocate")
	}
	if quantity > b.Quantity {
		return apperror.NewOverAllocation(b.BatchNumber, quantity.Float64(), b.Quantity.Float64())
	}
	if err := s.repo.UpdateQuantity(ctx, batchID, b.Quantity-quantity); err != nil {
		return apperror.NewDatabaseError("decrement batch", err)
	}
	return nil
}

// Return puts a quantity back into a batch, e.g. when a dispatch is
// cancelled after allocation. The remaining quantity never exceeds
// what was originally received.
func (s *Service) Return(ctx context.Context, batchID id.ID, quantity types.Quantity) error {
	if quantity <= 0 {
		return apperror.NewValidation("return quantity must be positive")
	}
	b, err := s.repo.GetByIDForUpdate(ctx, batchID)
	if err != nil {
		return err
	}
	restored := b.Quantity + quantity
	if restored > b.ReceivedQty {
		return apperror.NewOverAllocation(b.BatchNumber,
			restored.Float64(), b.ReceivedQty.Float64(),
		).WithDetail("operation", "return")
	}
	if err := s.repo.UpdateQuantity(ctx, batchID, restored); err != nil {
		return apperror.NewDatabaseError("restore batch quantity", err)
	}
	return nil
}

// Recall places a recall hold on every batch of an item sharing the
// batch number, across all locations, recording the reason on each
// held batch. Returns how many batches were affected.
func (s *Service) Recall(ctx context.Context, itemID id.ID, batchNumber, reason string) (int, error) {
	if batchNumber == "" {
		return 0, apperror.NewValidation("batch number is required")
	}
	if reason == "" {
		return 0, apperror.NewValidation("recall reason is required")
	}

	var affected int
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		batches, err := s.repo.ListByNumber(ctx, itemID, batchNumber)
		if err != nil {
			return apperror.NewDatabaseError("list batches by number", err)
		}
		if len(batches) == 0 {
			return apperror.NewNotFound("batch", batchNumber)
		}
		for _, b := range batches {
			if b.Hold == HoldRecalled {
				continue
			}
			if err := s.repo.SetHold(ctx, b.ID, HoldRecalled, reason); err != nil {
				return apperror.NewDatabaseError("set recall hold", err)
			}
			affected++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "batch recalled",
		"item_id", itemID, "batch_number", batchNumber,
		"reason", reason, "affected", affected)
	return affected, nil
}

// Block places a manual hold on a single batch.
func (s *Service) Block(ctx context.Context, batchID id.ID, reason string) error {
	return s.setHold(ctx, batchID, HoldBlocked, reason)
}

// Unblock lifts a manual block. A recalled batch stays recalled.
func (s *Service) Unblock(ctx context.Context, batchID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByIDForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if b.Hold != HoldBlocked {
			return apperror.NewInvalidTransition("batch", string(b.StatusAt(time.Now())), "unblock")
		}
		if err := s.repo.SetHold(ctx, batchID, HoldNone, ""); err != nil {
			return apperror.NewDatabaseError("clear hold", err)
		}
		return nil
	})
}

func (s *Service) setHold(ctx context.Context, batchID id.ID, hold Hold, reason string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByIDForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if b.Hold == hold && b.HoldReason == reason {
			return nil
		}
		if err := s.repo.SetHold(ctx, batchID, hold, reason); err != nil {
			return apperror.NewDatabaseError("set hold", err)
		}
		return nil
	})
}

// GetByID returns a single batch.
func (s *Service) GetByID(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.repo.GetByID(ctx, batchID)
}

// ListByItem returns batches for location+item.
func (s *Service) ListByItem(ctx context.Context, location entity.LocationRef, itemID id.ID, includeEmpty bool) ([]Batch, error) {
	batches, err := s.repo.ListByItem(ctx, location, itemID, includeEmpty)
	if err != nil {
		return nil, apperror.NewDatabaseError("list batches", err)
	}
	return batches, nil
}

// ListExpiring returns batches at a location expiring within the
// window, soonest first.
func (s *Service) ListExpiring(ctx context.Context, location entity.LocationRef, window time.Duration) ([]Batch, error) {
	batches, err := s.repo.ListExpiring(ctx, location, time.Now().Add(window))
	if err != nil {
		return nil, apperror.NewDatabaseError("list expiring batches", err)
	}
	return batches, nil
}
