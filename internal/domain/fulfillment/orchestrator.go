// Package fulfillment orchestrates requisition workflow transitions.
// Every transition is one atomic unit of work: requisition state,
// ledger balances, batch quantities and dispatch records move together
// or not at all. Notifications go out only after the work commits.
package fulfillment

import (
	"bytes"
	"context"
	"sort"
	"time"

	"medstock/internal/core/apperror"
	"medstock/internal/core/appctx"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/security"
	"medstock/internal/core/tx"
	"medstock/internal/core/types"
	"medstock/internal/domain/batch"
	"medstock/internal/domain/dispatch"
	"medstock/internal/domain/ledger"
	"medstock/internal/domain/notification"
	"medstock/internal/domain/requisition"
	"medstock/pkg/logger"
	"medstock/pkg/numerator"
)

const trackingNumberPrefix = "DSP"

// Ledger is the slice of the stock ledger the orchestrator drives.
type Ledger interface {
	Debit(ctx context.Context, posting ledger.Posting, location entity.LocationRef, itemID id.ID, quantity types.Quantity) error
	Credit(ctx context.Context, posting ledger.Posting, location entity.LocationRef, itemID id.ID, quantity types.Quantity, opts ledger.CreditOptions) error
	IsLowStock(ctx context.Context, location entity.LocationRef, itemID id.ID) (bool, error)
}

// Batches is the slice of the batch service the orchestrator drives.
type Batches interface {
	Consume(ctx context.Context, location entity.LocationRef, itemID id.ID, requested types.Quantity) (batch.SelectionResult, error)
}

// Auditor records workflow actions for the audit trail.
type Auditor interface {
	Record(ctx context.Context, action, entityName string, entityID id.ID, data map[string]any) error
}

// LineApproval is one approval decision: how much of an item the
// approver grants.
type LineApproval struct {
	ItemID   id.ID          `json:"itemId"`
	Quantity types.Quantity `json:"quantity"`
}

// LineDelivery is one delivery confirmation: how much of an item
// arrived at the destination.
type LineDelivery struct {
	ItemID   id.ID          `json:"itemId"`
	Quantity types.Quantity `json:"quantity"`
}

// Orchestrator executes requisition workflow transitions.
type Orchestrator struct {
	requisitions   requisition.Repository
	dispatches     dispatch.Repository
	ledger         Ledger
	batches        Batches
	txManager      tx.Manager
	numerator      *numerator.Service
	approvePolicy  *security.Policy
	dispatchPolicy *security.Policy
	notifier       notification.Notifier
	auditor        Auditor
}

type Config struct {
	Requisitions   requisition.Repository
	Dispatches     dispatch.Repository
	Ledger         Ledger
	Batches        Batches
	TxManager      tx.Manager
	Numerator      *numerator.Service
	ApprovePolicy  *security.Policy
	DispatchPolicy *security.Policy
	Notifier       notification.Notifier
	Auditor        Auditor
}

func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Notifier == nil {
		cfg.Notifier = notification.Discard{}
	}
	return &Orchestrator{
		requisitions:   cfg.Requisitions,
		dispatches:     cfg.Dispatches,
		ledger:         cfg.Ledger,
		batches:        cfg.Batches,
		txManager:      cfg.TxManager,
		numerator:      cfg.Numerator,
		approvePolicy:  cfg.ApprovePolicy,
		dispatchPolicy: cfg.DispatchPolicy,
		notifier:       cfg.Notifier,
		auditor:        cfg.Auditor,
	}
}

// Approve applies per-line approval decisions to a pending
// requisition. Lines without an explicit decision are granted in
// full. The resulting status derives from the decisions: every line
// granted in full means approved, anything less means partially
// approved, and explicitly granting nothing at all is EMPTY_APPROVAL.
// Rejection is its own operation, not a zero approval. Each approved
// line gets a pending dispatch with its own tracking number.
func (o *Orchestrator) Approve(ctx context.Context, requisitionID id.ID, approvals []LineApproval) (*requisition.Requisition, error) {
	var req *requisition.Requisition
	err := o.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		req, err = o.requisitions.GetByIDForUpdate(ctx, requisitionID)
		if err != nil {
			return err
		}
		if req.Status != requisition.StatusPending {
			return apperror.NewInvalidTransition("requisition", string(req.Status), "approve")
		}
		if err := o.checkPolicy(ctx, o.approvePolicy, req); err != nil {
			return err
		}

		if err := applyApprovals(req, approvals); err != nil {
			return err
		}
		next, err := req.ClassifyApproval()
		if err != nil {
			return err
		}
		if err := req.Transition(next); err != nil {
			return err
		}

		now := time.Now()
		req.ApprovedBy = appctx.GetActorID(ctx)
		req.ApprovedAt = &now
		req.UpdatedBy = req.ApprovedBy
		req.UpdatedAt = now

		rows, err := o.createDispatches(ctx, req, now)
		if err != nil {
			return err
		}

		if err := o.requisitions.UpdateLines(ctx, req.Lines); err != nil {
			return apperror.NewDatabaseError("update requisition lines", err)
		}
		if err := o.requisitions.Update(ctx, req); err != nil {
			return err
		}
		return o.audit(ctx, "requisition.approve", req.ID, map[string]any{
			"status": req.Status, "approvals": approvals, "dispatches": len(rows),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "requisition approved",
		"requisition_id", req.ID, "number", req.Number, "status", req.Status)
	o.notifier.Notify(ctx, notification.New(
		notification.KindRequisitionApproved, req.CreatedBy,
		"Requisition "+req.Number+" "+string(req.Status),
		map[string]any{"requisitionId": req.ID, "number": req.Number, "status": req.Status},
	))
	return req, nil
}

// applyApprovals writes decided quantities onto the lines. Lines
// without a decision default to the full requested quantity; only an
// explicit decision can grant less. A decision above the requested
// quantity or for an unknown item is a validation error.
func applyApprovals(req *requisition.Requisition, approvals []LineApproval) error {
	decided := make(map[id.ID]types.Quantity, len(approvals))
	for _, a := range approvals {
		if a.Quantity < 0 {
			return apperror.NewValidation("approved quantity must not be negative").
				WithDetail("itemId", a.ItemID)
		}
		if req.LineByItem(a.ItemID) == nil {
			return apperror.NewValidation("approval references item not on requisition").
				WithDetail("itemId", a.ItemID)
		}
		if _, dup := decided[a.ItemID]; dup {
			return apperror.NewValidation("duplicate approval for item").
				WithDetail("itemId", a.ItemID)
		}
		decided[a.ItemID] = a.Quantity
	}
	for i := range req.Lines {
		l := &req.Lines[i]
		granted, ok := decided[l.ItemID]
		if !ok {
			granted = l.RequestedQty
		}
		if granted > l.RequestedQty {
			return apperror.NewValidation("approved quantity exceeds requested").
				WithDetail("itemId", l.ItemID).
				WithDetail("requested", l.RequestedQty).
				WithDetail("approved", granted)
		}
		l.ApprovedQty = granted
	}
	return nil
}

// createDispatches raises one pending dispatch per approved line,
// warehouse to requester, each with its own tracking number.
func (o *Orchestrator) createDispatches(ctx context.Context, req *requisition.Requisition, now time.Time) ([]dispatch.Dispatch, error) {
	warehouse := req.Warehouse()
	dest := req.Requester()

	lines := shippableLines(req)
	rows := make([]dispatch.Dispatch, 0, len(lines))
	for _, line := range lines {
		number, err := o.numerator.GetNextNumber(ctx, numerator.DefaultConfig(trackingNumberPrefix), nil, now)
		if err != nil {
			return nil, apperror.NewInternal(err).WithDetail("operation", "generate tracking number")
		}
		d := dispatch.Dispatch{
			ID:             id.New(),
			RequisitionID:  req.ID,
			ItemID:         line.ItemID,
			TrackingNumber: number,
			SourceType:     warehouse.Type,
			SourceID:       warehouse.ID,
			DestType:       dest.Type,
			DestID:         dest.ID,
			Quantity:       line.ApprovedQty,
			Status:         dispatch.StatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		rows = append(rows, d)
	}
	if err := o.dispatches.Create(ctx, rows); err != nil {
		return nil, apperror.NewDatabaseError("create dispatches", err)
	}
	return rows, nil
}

// Reject moves a pending or partially approved requisition to
// rejected with a reason. Any granted quantities are reset to zero
// and pending dispatches are cancelled, so a rejected requisition
// carries no claim on stock.
func (o *Orchestrator) Reject(ctx context.Context, requisitionID id.ID, reason string) (*requisition.Requisition, error) {
	var req *requisition.Requisition
	err := o.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		req, err = o.requisitions.GetByIDForUpdate(ctx, requisitionID)
		if err != nil {
			return err
		}
		if err := o.checkPolicy(ctx, o.approvePolicy, req); err != nil {
			return err
		}
		if err := req.Transition(requisition.StatusRejected); err != nil {
			return err
		}

		now := time.Now()
		for i := range req.Lines {
			req.Lines[i].ApprovedQty = 0
		}
		if err := o.requisitions.UpdateLines(ctx, req.Lines); err != nil {
			return apperror.NewDatabaseError("update requisition lines", err)
		}

		rows, err := o.dispatches.GetByRequisitionForUpdate(ctx, req.ID)
		if err != nil {
			return apperror.NewDatabaseError("load dispatches", err)
		}
		for i := range rows {
			if rows[i].Status != dispatch.StatusPending {
				continue
			}
			if err := rows[i].Cancel(now); err != nil {
				return err
			}
			if err := o.dispatches.Update(ctx, &rows[i]); err != nil {
				return apperror.NewDatabaseError("cancel dispatch", err)
			}
		}

		req.RejectedBy = appctx.GetActorID(ctx)
		req.RejectedAt = &now
		req.RejectedFor = reason
		req.UpdatedBy = req.RejectedBy
		req.UpdatedAt = now

		if err := o.requisitions.Update(ctx, req); err != nil {
			return err
		}
		return o.audit(ctx, "requisition.reject", req.ID, map[string]any{"reason": reason})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "requisition rejected",
		"requisition_id", req.ID, "number", req.Number)
	o.notifier.Notify(ctx, notification.New(
		notification.KindRequisitionRejected, req.CreatedBy,
		"Requisition "+req.Number+" rejected",
		map[string]any{"requisitionId": req.ID, "number": req.Number, "reason": reason},
	))
	return req, nil
}

// Dispatch marks the shipment of an approved requisition as having
// left the warehouse: the requisition moves to dispatched and every
// pending dispatch with it. Stock moves only at delivery, when the
// destination confirms what arrived.
func (o *Orchestrator) Dispatch(ctx context.Context, requisitionID id.ID, remarks string) ([]dispatch.Dispatch, error) {
	var (
		req  *requisition.Requisition
		rows []dispatch.Dispatch
	)
	err := o.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		req, err = o.requisitions.GetByIDForUpdate(ctx, requisitionID)
		if err != nil {
			return err
		}
		if err := o.checkPolicy(ctx, o.dispatchPolicy, req); err != nil {
			return err
		}
		if err := req.Transition(requisition.StatusDispatched); err != nil {
			return err
		}

		rows, err = o.dispatches.GetByRequisitionForUpdate(ctx, req.ID)
		if err != nil {
			return apperror.NewDatabaseError("load dispatches", err)
		}

		now := time.Now()
		actor := appctx.GetActorID(ctx)
		shipped := 0
		for i := range rows {
			if rows[i].Status != dispatch.StatusPending {
				continue
			}
			if err := rows[i].MarkDispatched(actor, now); err != nil {
				return err
			}
			if err := o.dispatches.Update(ctx, &rows[i]); err != nil {
				return apperror.NewDatabaseError("update dispatch", err)
			}
			shipped++
		}
		if shipped == 0 {
			return apperror.NewEmptyApproval(req.ID.String())
		}

		req.UpdatedBy = actor
		req.UpdatedAt = now
		if err := o.requisitions.Update(ctx, req); err != nil {
			return err
		}
		return o.audit(ctx, "requisition.dispatch", req.ID, map[string]any{
			"dispatches": shipped, "remarks": remarks,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "requisition dispatched",
		"requisition_id", req.ID, "number", req.Number, "dispatches", len(rows))
	o.notifier.Notify(ctx, notification.New(
		notification.KindRequisitionDispatched, req.CreatedBy,
		"Requisition "+req.Number+" dispatched",
		map[string]any{"requisitionId": req.ID, "number": req.Number},
	))
	return rows, nil
}

// Deliver confirms receipt of a dispatched requisition, in full or
// line by line. An empty deliveries slice confirms every outstanding
// quantity. For each confirmed amount the source ledger is debited
// with batches drawn earliest expiry first, the destination is
// credited, and the line's delivered quantity grows; delivering past
// the approved quantity is a validation error. The requisition
// becomes delivered once every approved line is fully delivered.
// Dispatches are processed in ascending item id order so concurrent
// deliveries lock rows in the same order.
func (o *Orchestrator) Deliver(ctx context.Context, requisitionID id.ID, deliveries []LineDelivery) (*requisition.Requisition, error) {
	var req *requisition.Requisition
	err := o.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		req, err = o.requisitions.GetByIDForUpdate(ctx, requisitionID)
		if err != nil {
			return err
		}
		if req.Status != requisition.StatusDispatched {
			return apperror.NewInvalidTransition("requisition", string(req.Status), "deliver")
		}

		rows, err := o.dispatches.GetByRequisitionForUpdate(ctx, req.ID)
		if err != nil {
			return apperror.NewDatabaseError("load dispatches", err)
		}
		sort.Slice(rows, func(i, j int) bool {
			return bytes.Compare(rows[i].ItemID[:], rows[j].ItemID[:]) < 0
		})
		byItem := make(map[id.ID]*dispatch.Dispatch, len(rows))
		for i := range rows {
			if rows[i].Status == dispatch.StatusDispatched {
				byItem[rows[i].ItemID] = &rows[i]
			}
		}

		amounts, err := deliveryAmounts(req, byItem, deliveries)
		if err != nil {
			return err
		}

		now := time.Now()
		actor := appctx.GetActorID(ctx)
		for i := range rows {
			d := &rows[i]
			amount, ok := amounts[d.ItemID]
			if !ok || amount == 0 {
				continue
			}
			line := req.LineByItem(d.ItemID)

			posting := ledger.Posting{
				RecorderID:   d.ID,
				RecorderType: "dispatch",
				Period:       now,
			}
			if err := o.ledger.Debit(ctx, posting, d.Source(), d.ItemID, amount); err != nil {
				return err
			}
			result, err := o.batches.Consume(ctx, d.Source(), d.ItemID, amount)
			if err != nil {
				return err
			}
			allocations := make([]dispatch.Allocation, 0, len(result.Allocations))
			for _, alloc := range result.Allocations {
				allocations = append(allocations, dispatch.Allocation{
					ID:          id.New(),
					DispatchID:  d.ID,
					BatchID:     alloc.BatchID,
					BatchNumber: alloc.BatchNumber,
					Quantity:    alloc.Quantity,
					ExpiryDate:  alloc.ExpiryDate,
				})
			}
			if err := o.dispatches.AddAllocations(ctx, allocations); err != nil {
				return apperror.NewDatabaseError("record dispatch allocations", err)
			}
			if err := o.ledger.Credit(ctx, posting, d.Dest(), d.ItemID, amount, ledger.CreditOptions{}); err != nil {
				return err
			}

			line.DeliveredQty += amount
			if line.DeliveredQty >= line.ApprovedQty {
				if err := d.MarkDelivered(actor, now); err != nil {
					return err
				}
			} else {
				d.UpdatedAt = now
			}
			if err := o.dispatches.Update(ctx, d); err != nil {
				return apperror.NewDatabaseError("update dispatch", err)
			}
		}

		if req.FullyDelivered() {
			if err := req.Transition(requisition.StatusDelivered); err != nil {
				return err
			}
		}

		if err := o.requisitions.UpdateLines(ctx, req.Lines); err != nil {
			return apperror.NewDatabaseError("update requisition lines", err)
		}
		req.UpdatedBy = actor
		req.UpdatedAt = now
		if err := o.requisitions.Update(ctx, req); err != nil {
			return err
		}
		return o.audit(ctx, "requisition.deliver", req.ID, map[string]any{
			"receivedBy": actor, "status": req.Status, "amounts": amounts,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "requisition delivery confirmed",
		"requisition_id", req.ID, "number", req.Number, "status", req.Status)
	if req.Status == requisition.StatusDelivered {
		o.notifier.Notify(ctx, notification.New(
			notification.KindRequisitionDelivered, req.CreatedBy,
			"Requisition "+req.Number+" delivered",
			map[string]any{"requisitionId": req.ID, "number": req.Number},
		))
	}
	o.reportLowStock(ctx, req)
	return req, nil
}

// deliveryAmounts resolves how much of each item this delivery
// confirms. Empty input means everything still outstanding; explicit
// amounts are validated against the outstanding quantity per line.
func deliveryAmounts(req *requisition.Requisition, byItem map[id.ID]*dispatch.Dispatch, deliveries []LineDelivery) (map[id.ID]types.Quantity, error) {
	amounts := make(map[id.ID]types.Quantity, len(byItem))
	if len(deliveries) == 0 {
		for itemID := range byItem {
			line := req.LineByItem(itemID)
			if line == nil {
				return nil, apperror.NewValidation("dispatch references item not on requisition").
					WithDetail("itemId", itemID)
			}
			if remaining := line.ApprovedQty - line.DeliveredQty; remaining > 0 {
				amounts[itemID] = remaining
			}
		}
		return amounts, nil
	}

	for _, del := range deliveries {
		if del.Quantity <= 0 {
			return nil, apperror.NewValidation("delivered quantity must be positive").
				WithDetail("itemId", del.ItemID)
		}
		if _, dup := amounts[del.ItemID]; dup {
			return nil, apperror.NewValidation("duplicate delivery for item").
				WithDetail("itemId", del.ItemID)
		}
		if _, ok := byItem[del.ItemID]; !ok {
			return nil, apperror.NewValidation("no outstanding dispatch for item").
				WithDetail("itemId", del.ItemID)
		}
		line := req.LineByItem(del.ItemID)
		if line == nil {
			return nil, apperror.NewValidation("delivery references item not on requisition").
				WithDetail("itemId", del.ItemID)
		}
		if line.DeliveredQty+del.Quantity > line.ApprovedQty {
			return nil, apperror.NewValidation("delivered quantity exceeds approved").
				WithDetail("itemId", del.ItemID).
				WithDetail("approved", line.ApprovedQty).
				WithDetail("alreadyDelivered", line.DeliveredQty).
				WithDetail("delivered", del.Quantity)
		}
		amounts[del.ItemID] = del.Quantity
	}
	return amounts, nil
}

// shippableLines returns lines with a positive approved quantity in
// ascending item id order. The ordering fixes the lock acquisition
// sequence across concurrent dispatches.
func shippableLines(req *requisition.Requisition) []requisition.Line {
	lines := make([]requisition.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.ApprovedQty > 0 {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		return bytes.Compare(lines[i].ItemID[:], lines[j].ItemID[:]) < 0
	})
	return lines
}

func (o *Orchestrator) checkPolicy(ctx context.Context, policy *security.Policy, req *requisition.Requisition) error {
	if policy == nil {
		return nil
	}
	return policy.Check(ctx, map[string]any{
		"id":          req.ID.String(),
		"source":      string(req.Source),
		"status":      string(req.Status),
		"warehouseId": req.WarehouseID.String(),
		"requesterId": req.RequesterID.String(),
		"createdBy":   req.CreatedBy,
	})
}

func (o *Orchestrator) audit(ctx context.Context, action string, entityID id.ID, data map[string]any) error {
	if o.auditor == nil {
		return nil
	}
	if err := o.auditor.Record(ctx, action, "requisition", entityID, data); err != nil {
		return apperror.NewDatabaseError("record audit entry", err)
	}
	return nil
}

// reportLowStock emits low stock notifications for warehouse items
// that crossed their reorder level. Runs outside the transaction; a
// failed check only logs.
func (o *Orchestrator) reportLowStock(ctx context.Context, req *requisition.Requisition) {
	warehouse := req.Warehouse()
	for _, l := range req.Lines {
		if l.DeliveredQty <= 0 {
			continue
		}
		low, err := o.ledger.IsLowStock(ctx, warehouse, l.ItemID)
		if err != nil {
			logger.Warn(ctx, "low stock check failed",
				"item_id", l.ItemID, "error", err)
			continue
		}
		if low {
			o.notifier.Notify(ctx, notification.New(
				notification.KindLowStock, req.WarehouseID.String(),
				"Low stock after dispatch",
				map[string]any{"itemId": l.ItemID, "warehouseId": req.WarehouseID},
			))
		}
	}
}
