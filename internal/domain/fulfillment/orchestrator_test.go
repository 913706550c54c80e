package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstock/internal/core/apperror"
	"medstock/internal/core/appctx"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/security"
	"medstock/internal/core/types"
	"medstock/internal/domain/batch"
	"medstock/internal/domain/dispatch"
	"medstock/internal/domain/ledger"
	"medstock/internal/domain/notification"
	"medstock/internal/domain/requisition"
	"medstock/pkg/numerator"
)

// world holds the in-memory state the fakes operate on. The fake tx
// manager snapshots it before each unit of work and restores it on
// error, mirroring rollback.
type world struct {
	requisitions map[id.ID]*requisition.Requisition
	dispatches   map[id.ID]*dispatch.Dispatch
	balances     map[string]types.Quantity
	batches      []batch.Batch
}

func newWorld() *world {
	return &world{
		requisitions: make(map[id.ID]*requisition.Requisition),
		dispatches:   make(map[id.ID]*dispatch.Dispatch),
		balances:     make(map[string]types.Quantity),
	}
}

func balanceKey(loc entity.LocationRef, itemID id.ID) string {
	return loc.String() + "/" + itemID.String()
}

func (w *world) clone() *world {
	c := newWorld()
	for k, v := range w.requisitions {
		cp := *v
		cp.Lines = append([]requisition.Line(nil), v.Lines...)
		c.requisitions[k] = &cp
	}
	for k, v := range w.dispatches {
		cp := *v
		cp.Allocations = append([]dispatch.Allocation(nil), v.Allocations...)
		c.dispatches[k] = &cp
	}
	for k, v := range w.balances {
		c.balances[k] = v
	}
	c.batches = append([]batch.Batch(nil), w.batches...)
	return c
}

func (w *world) restore(snap *world) { *w = *snap }

type fakeTxManager struct {
	w *world
}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := m.w.clone()
	if err := fn(ctx); err != nil {
		m.w.restore(snap)
		return err
	}
	return nil
}

type fakeReqRepo struct{ w *world }

func (r *fakeReqRepo) Create(ctx context.Context, req *requisition.Requisition) error {
	r.w.requisitions[req.ID] = req
	return nil
}

func (r *fakeReqRepo) GetByID(ctx context.Context, requisitionID id.ID) (*requisition.Requisition, error) {
	req, ok := r.w.requisitions[requisitionID]
	if !ok {
		return nil, apperror.NewNotFound("requisition", requisitionID)
	}
	cp := *req
	cp.Lines = append([]requisition.Line(nil), req.Lines...)
	return &cp, nil
}

func (r *fakeReqRepo) GetByIDForUpdate(ctx context.Context, requisitionID id.ID) (*requisition.Requisition, error) {
	return r.GetByID(ctx, requisitionID)
}

func (r *fakeReqRepo) GetByNumber(ctx context.Context, number string) (*requisition.Requisition, error) {
	for _, req := range r.w.requisitions {
		if req.Number == number {
			return r.GetByID(ctx, req.ID)
		}
	}
	return nil, apperror.NewNotFound("requisition", number)
}

func (r *fakeReqRepo) Update(ctx context.Context, req *requisition.Requisition) error {
	stored, ok := r.w.requisitions[req.ID]
	if !ok {
		return apperror.NewNotFound("requisition", req.ID)
	}
	cp := *req
	cp.Lines = stored.Lines
	r.w.requisitions[req.ID] = &cp
	return nil
}

func (r *fakeReqRepo) UpdateLines(ctx context.Context, lines []requisition.Line) error {
	for _, l := range lines {
		stored := r.w.requisitions[l.RequisitionID]
		if stored == nil {
			continue
		}
		for i := range stored.Lines {
			if stored.Lines[i].ID == l.ID {
				stored.Lines[i].ApprovedQty = l.ApprovedQty
				stored.Lines[i].DeliveredQty = l.DeliveredQty
			}
		}
	}
	return nil
}

func (r *fakeReqRepo) List(ctx context.Context, filter requisition.ListFilter) ([]requisition.Requisition, error) {
	return nil, nil
}

func (r *fakeReqRepo) Count(ctx context.Context, filter requisition.ListFilter) (int64, error) {
	return 0, nil
}

type fakeDispatchRepo struct{ w *world }

func (r *fakeDispatchRepo) Create(ctx context.Context, dispatches []dispatch.Dispatch) error {
	for _, d := range dispatches {
		cp := d
		r.w.dispatches[d.ID] = &cp
	}
	return nil
}

func (r *fakeDispatchRepo) GetByID(ctx context.Context, dispatchID id.ID) (*dispatch.Dispatch, error) {
	d, ok := r.w.dispatches[dispatchID]
	if !ok {
		return nil, apperror.NewNotFound("dispatch", dispatchID)
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDispatchRepo) GetByRequisition(ctx context.Context, requisitionID id.ID) ([]dispatch.Dispatch, error) {
	var out []dispatch.Dispatch
	for _, d := range r.w.dispatches {
		if d.RequisitionID == requisitionID {
			cp := *d
			cp.Allocations = append([]dispatch.Allocation(nil), d.Allocations...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *fakeDispatchRepo) GetByRequisitionForUpdate(ctx context.Context, requisitionID id.ID) ([]dispatch.Dispatch, error) {
	return r.GetByRequisition(ctx, requisitionID)
}

func (r *fakeDispatchRepo) Update(ctx context.Context, d *dispatch.Dispatch) error {
	stored, ok := r.w.dispatches[d.ID]
	if !ok {
		return apperror.NewNotFound("dispatch", d.ID)
	}
	stored.Status = d.Status
	stored.DispatchedBy = d.DispatchedBy
	stored.DispatchedAt = d.DispatchedAt
	stored.ReceivedBy = d.ReceivedBy
	stored.DeliveredAt = d.DeliveredAt
	stored.UpdatedAt = d.UpdatedAt
	return nil
}

func (r *fakeDispatchRepo) AddAllocations(ctx context.Context, allocations []dispatch.Allocation) error {
	for _, a := range allocations {
		stored, ok := r.w.dispatches[a.DispatchID]
		if !ok {
			return apperror.NewNotFound("dispatch", a.DispatchID)
		}
		stored.Allocations = append(stored.Allocations, a)
	}
	return nil
}

func (r *fakeDispatchRepo) List(ctx context.Context, filter dispatch.ListFilter) ([]dispatch.Dispatch, error) {
	return nil, nil
}

type fakeLedger struct {
	w            *world
	reorderLevel types.Quantity
}

func (l *fakeLedger) Debit(ctx context.Context, posting ledger.Posting, location entity.LocationRef, itemID id.ID, quantity types.Quantity) error {
	key := balanceKey(location, itemID)
	have := l.w.balances[key]
	if have < quantity {
		return apperror.NewInsufficientStock(itemID.String(), quantity.Float64(), have.Float64())
	}
	l.w.balances[key] = have - quantity
	return nil
}

func (l *fakeLedger) Credit(ctx context.Context, posting ledger.Posting, location entity.LocationRef, itemID id.ID, quantity types.Quantity, opts ledger.CreditOptions) error {
	l.w.balances[balanceKey(location, itemID)] += quantity
	return nil
}

func (l *fakeLedger) IsLowStock(ctx context.Context, location entity.LocationRef, itemID id.ID) (bool, error) {
	return l.reorderLevel > 0 && l.w.balances[balanceKey(location, itemID)] <= l.reorderLevel, nil
}

type fakeBatches struct{ w *world }

func (b *fakeBatches) Consume(ctx context.Context, location entity.LocationRef, itemID id.ID, requested types.Quantity) (batch.SelectionResult, error) {
	var eligible []batch.Batch
	for _, bt := range b.w.batches {
		if bt.ItemID == itemID && bt.Location().Equal(location) {
			eligible = append(eligible, bt)
		}
	}
	result := batch.SelectForDispatch(eligible, requested, time.Now())
	if !result.Sufficient() {
		return result, apperror.NewInsufficientStock(itemID.String(),
			requested.Float64(), result.Allocated.Float64())
	}
	for _, alloc := range result.Allocations {
		for i := range b.w.batches {
			if b.w.batches[i].ID == alloc.BatchID {
				b.w.batches[i].Quantity -= alloc.Quantity
			}
		}
	}
	return result, nil
}

type recordingNotifier struct {
	kinds []notification.Kind
}

func (n *recordingNotifier) Notify(ctx context.Context, note notification.Notification) {
	n.kinds = append(n.kinds, note.Kind)
}

type seqRow struct{ val int64 }

func (r *seqRow) Scan(dest ...any) error {
	if ptr, ok := dest[0].(*int64); ok {
		*ptr = r.val
	}
	return nil
}

type seqQuerier struct{ current int64 }

func (q *seqQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.current++
	return &seqRow{val: q.current}
}

// fixture builds a pending requisition over two items with warehouse
// stock and batches to cover it.
type fixture struct {
	w        *world
	orch     *Orchestrator
	notifier *recordingNotifier
	req      *requisition.Requisition
	itemA    id.ID
	itemB    id.ID
	whID     id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	w := newWorld()
	notifier := &recordingNotifier{}

	itemA := id.New()
	itemB := id.New()
	whID := id.New()

	req := &requisition.Requisition{
		BaseDocument: entity.BaseDocument{
			BaseEntity: entity.BaseEntity{ID: id.New(), Version: 1},
		},
		Number:      "REQ-2026-00001",
		Date:        time.Now().UTC(),
		Source:      requisition.SourceFacility,
		RequesterID: id.New(),
		WarehouseID: whID,
		Status:      requisition.StatusPending,
	}
	req.CreatedBy = "requester-1"
	req.Lines = []requisition.Line{
		{ID: id.New(), RequisitionID: req.ID, ItemID: itemA, RequestedQty: types.NewQuantityFromInt(10)},
		{ID: id.New(), RequisitionID: req.ID, ItemID: itemB, RequestedQty: types.NewQuantityFromInt(4)},
	}
	w.requisitions[req.ID] = req

	warehouse := entity.NewLocationRef(entity.LocationWarehouse, whID)
	w.balances[balanceKey(warehouse, itemA)] = types.NewQuantityFromInt(50)
	w.balances[balanceKey(warehouse, itemB)] = types.NewQuantityFromInt(20)

	expiry := time.Now().AddDate(1, 0, 0)
	w.batches = []batch.Batch{
		{ID: id.New(), ItemID: itemA, LocationType: entity.LocationWarehouse, LocationID: whID,
			BatchNumber: "A-1", Quantity: types.NewQuantityFromInt(50),
			ReceivedQty: types.NewQuantityFromInt(50), ExpiryDate: &expiry, ReceivedAt: time.Now()},
		{ID: id.New(), ItemID: itemB, LocationType: entity.LocationWarehouse, LocationID: whID,
			BatchNumber: "B-1", Quantity: types.NewQuantityFromInt(20),
			ReceivedQty: types.NewQuantityFromInt(20), ExpiryDate: &expiry, ReceivedAt: time.Now()},
	}

	orch := NewOrchestrator(Config{
		Requisitions: &fakeReqRepo{w: w},
		Dispatches:   &fakeDispatchRepo{w: w},
		Ledger:       &fakeLedger{w: w},
		Batches:      &fakeBatches{w: w},
		TxManager:    &fakeTxManager{w: w},
		Numerator:    numerator.New(&seqQuerier{}),
		Notifier:     notifier,
	})

	return &fixture{w: w, orch: orch, notifier: notifier, req: req, itemA: itemA, itemB: itemB, whID: whID}
}

func actorCtx(userID string) context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{UserID: userID, Role: "pharmacist"})
}

func approvals(f *fixture, qtyA, qtyB int64) []LineApproval {
	return []LineApproval{
		{ItemID: f.itemA, Quantity: types.NewQuantityFromInt(qtyA)},
		{ItemID: f.itemB, Quantity: types.NewQuantityFromInt(qtyB)},
	}
}

func (f *fixture) dispatchFor(t *testing.T, itemID id.ID) *dispatch.Dispatch {
	t.Helper()
	for _, d := range f.w.dispatches {
		if d.RequisitionID == f.req.ID && d.ItemID == itemID {
			return d
		}
	}
	t.Fatalf("no dispatch for item %s", itemID)
	return nil
}

func TestApprove_Full(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("approver-1")

	req, err := f.orch.Approve(ctx, f.req.ID, approvals(f, 10, 4))
	require.NoError(t, err)

	assert.Equal(t, requisition.StatusApproved, req.Status)
	assert.Equal(t, "approver-1", req.ApprovedBy)
	require.NotNil(t, req.ApprovedAt)
	assert.Contains(t, f.notifier.kinds, notification.KindRequisitionApproved)

	stored := f.w.requisitions[f.req.ID]
	assert.Equal(t, requisition.StatusApproved, stored.Status)
	assert.Equal(t, types.NewQuantityFromInt(10), stored.Lines[0].ApprovedQty)
}

// Approval raises one pending dispatch per line, each with its own
// tracking number, before anything ships.
func TestApprove_CreatesPendingDispatches(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Approve(actorCtx("approver-1"), f.req.ID, approvals(f, 10, 4))
	require.NoError(t, err)

	require.Len(t, f.w.dispatches, 2)
	rowA := f.dispatchFor(t, f.itemA)
	assert.Equal(t, dispatch.StatusPending, rowA.Status)
	assert.Equal(t, types.NewQuantityFromInt(10), rowA.Quantity)
	assert.Regexp(t, `^DSP-\d{4}-\d{5}$`, rowA.TrackingNumber)
	assert.Equal(t, entity.LocationWarehouse, rowA.SourceType)
	assert.Equal(t, f.whID, rowA.SourceID)
	assert.Equal(t, entity.LocationFacility, rowA.DestType)
	assert.Equal(t, f.req.RequesterID, rowA.DestID)

	rowB := f.dispatchFor(t, f.itemB)
	assert.Equal(t, types.NewQuantityFromInt(4), rowB.Quantity)
	assert.NotEqual(t, rowA.TrackingNumber, rowB.TrackingNumber)
}

func TestApprove_Partial(t *testing.T) {
	f := newFixture(t)

	req, err := f.orch.Approve(actorCtx("approver-1"), f.req.ID, approvals(f, 6, 4))
	require.NoError(t, err)
	assert.Equal(t, requisition.StatusPartiallyApproved, req.Status)

	// Only the reduced quantity is claimed for shipment.
	assert.Equal(t, types.NewQuantityFromInt(6), f.dispatchFor(t, f.itemA).Quantity)
}

// A line the approver does not mention is granted in full; only an
// explicit decision can grant less.
func TestApprove_OmittedLineDefaultsToRequested(t *testing.T) {
	f := newFixture(t)

	req, err := f.orch.Approve(actorCtx("approver-1"), f.req.ID, []LineApproval{
		{ItemID: f.itemA, Quantity: types.NewQuantityFromInt(10)},
	})
	require.NoError(t, err)
	assert.Equal(t, requisition.StatusApproved, req.Status)
	assert.Equal(t, types.NewQuantityFromInt(4), f.w.requisitions[f.req.ID].Lines[1].ApprovedQty)

	require.Len(t, f.w.dispatches, 2)
	assert.Equal(t, types.NewQuantityFromInt(4), f.dispatchFor(t, f.itemB).Quantity)
}

func TestApprove_NothingGranted(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Approve(actorCtx("approver-1"), f.req.ID, approvals(f, 0, 0))
	assert.True(t, apperror.HasCode(err, apperror.CodeEmptyApproval))

	assert.Equal(t, requisition.StatusPending, f.w.requisitions[f.req.ID].Status)
	assert.Empty(t, f.w.dispatches)
}

func TestApprove_OverRequested(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Approve(actorCtx("approver-1"), f.req.ID, approvals(f, 11, 4))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestApprove_UnknownItem(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Approve(actorCtx("approver-1"), f.req.ID, []LineApproval{
		{ItemID: id.New(), Quantity: types.NewQuantityFromInt(1)},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestApprove_NotPending(t *testing.T) {
	f := newFixture(t)
	f.req.Status = requisition.StatusApproved

	_, err := f.orch.Approve(actorCtx("approver-1"), f.req.ID, approvals(f, 10, 4))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestReject(t *testing.T) {
	f := newFixture(t)

	req, err := f.orch.Reject(actorCtx("approver-1"), f.req.ID, "duplicate request")
	require.NoError(t, err)

	assert.Equal(t, requisition.StatusRejected, req.Status)
	assert.Equal(t, "duplicate request", req.RejectedFor)
	assert.Equal(t, "approver-1", req.RejectedBy)
	assert.Contains(t, f.notifier.kinds, notification.KindRequisitionRejected)

	_, err = f.orch.Approve(actorCtx("approver-1"), f.req.ID, approvals(f, 10, 4))
	assert.Error(t, err)
}

// A partially approved requisition can still be rejected; the
// rejection wipes the granted quantities and cancels the pending
// dispatches, leaving no claim on stock behind.
func TestReject_AfterPartialApproval(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("approver-1")

	_, err := f.orch.Approve(ctx, f.req.ID, approvals(f, 6, 4))
	require.NoError(t, err)
	require.Equal(t, requisition.StatusPartiallyApproved, f.w.requisitions[f.req.ID].Status)

	req, err := f.orch.Reject(ctx, f.req.ID, "budget cut")
	require.NoError(t, err)

	assert.Equal(t, requisition.StatusRejected, req.Status)
	stored := f.w.requisitions[f.req.ID]
	for _, l := range stored.Lines {
		assert.True(t, l.ApprovedQty.IsZero())
	}
	for _, d := range f.w.dispatches {
		assert.Equal(t, dispatch.StatusCancelled, d.Status)
	}
}

func TestReject_AfterFullApprovalRefused(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("approver-1")

	_, err := f.orch.Approve(ctx, f.req.ID, approvals(f, 10, 4))
	require.NoError(t, err)

	_, err = f.orch.Reject(ctx, f.req.ID, "too late")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
	assert.Equal(t, requisition.StatusApproved, f.w.requisitions[f.req.ID].Status)
}

// Dispatching marks the shipment as having left the warehouse; stock
// does not move until delivery is confirmed.
func TestDispatch_MarksShipmentWithoutMovingStock(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("storekeeper-1")

	_, err := f.orch.Approve(ctx, f.req.ID, approvals(f, 10, 4))
	require.NoError(t, err)

	rows, err := f.orch.Dispatch(ctx, f.req.ID, "van 2")
	require.NoError(t, err)

	require.Len(t, rows, 2)
	for _, d := range f.w.dispatches {
		assert.Equal(t, dispatch.StatusDispatched, d.Status)
		assert.Equal(t, "storekeeper-1", d.DispatchedBy)
		require.NotNil(t, d.DispatchedAt)
	}

	warehouse := entity.NewLocationRef(entity.LocationWarehouse, f.whID)
	assert.Equal(t, types.NewQuantityFromInt(50), f.w.balances[balanceKey(warehouse, f.itemA)])
	assert.Equal(t, types.NewQuantityFromInt(20), f.w.balances[balanceKey(warehouse, f.itemB)])
	assert.Equal(t, requisition.StatusDispatched, f.w.requisitions[f.req.ID].Status)
	assert.Contains(t, f.notifier.kinds, notification.KindRequisitionDispatched)
}

func TestDispatch_WithoutApproval(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Dispatch(actorCtx("storekeeper-1"), f.req.ID, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestDeliver_FullConfirmsAndMovesStock(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("nurse-1")

	_, err := f.orch.Approve(ctx, f.req.ID, approvals(f, 6, 4))
	require.NoError(t, err)
	_, err = f.orch.Dispatch(ctx, f.req.ID, "")
	require.NoError(t, err)

	req, err := f.orch.Deliver(ctx, f.req.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, requisition.StatusDelivered, req.Status)

	warehouse := entity.NewLocationRef(entity.LocationWarehouse, f.whID)
	requester := entity.NewLocationRef(entity.LocationFacility, f.req.RequesterID)
	assert.Equal(t, types.NewQuantityFromInt(44), f.w.balances[balanceKey(warehouse, f.itemA)])
	assert.Equal(t, types.NewQuantityFromInt(6), f.w.balances[balanceKey(requester, f.itemA)])
	assert.Equal(t, types.NewQuantityFromInt(4), f.w.balances[balanceKey(requester, f.itemB)])

	stored := f.w.requisitions[f.req.ID]
	for _, l := range stored.Lines {
		assert.Equal(t, l.ApprovedQty, l.DeliveredQty)
	}

	for _, d := range f.w.dispatches {
		assert.Equal(t, dispatch.StatusDelivered, d.Status)
		assert.Equal(t, "nurse-1", d.ReceivedBy)
		require.NotEmpty(t, d.Allocations)
	}
	assert.Contains(t, f.notifier.kinds, notification.KindRequisitionDelivered)
}

// Confirming part of a shipment moves only that part; the requisition
// stays dispatched until the rest arrives.
func TestDeliver_PartialThenRemainder(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("nurse-1")

	_, err := f.orch.Approve(ctx, f.req.ID, approvals(f, 10, 4))
	require.NoError(t, err)
	_, err = f.orch.Dispatch(ctx, f.req.ID, "")
	require.NoError(t, err)

	req, err := f.orch.Deliver(ctx, f.req.ID, []LineDelivery{
		{ItemID: f.itemA, Quantity: types.NewQuantityFromInt(6)},
	})
	require.NoError(t, err)

	assert.Equal(t, requisition.StatusDispatched, req.Status)
	stored := f.w.requisitions[f.req.ID]
	assert.Equal(t, types.NewQuantityFromInt(6), stored.Lines[0].DeliveredQty)
	assert.True(t, stored.Lines[1].DeliveredQty.IsZero())
	assert.Equal(t, dispatch.StatusDispatched, f.dispatchFor(t, f.itemA).Status)

	req, err = f.orch.Deliver(ctx, f.req.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, requisition.StatusDelivered, req.Status)
	requester := entity.NewLocationRef(entity.LocationFacility, f.req.RequesterID)
	assert.Equal(t, types.NewQuantityFromInt(10), f.w.balances[balanceKey(requester, f.itemA)])
	assert.Equal(t, types.NewQuantityFromInt(4), f.w.balances[balanceKey(requester, f.itemB)])
	assert.Equal(t, dispatch.StatusDelivered, f.dispatchFor(t, f.itemA).Status)
}

func TestDeliver_AboveApprovedRefused(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("nurse-1")

	_, err := f.orch.Approve(ctx, f.req.ID, approvals(f, 6, 4))
	require.NoError(t, err)
	_, err = f.orch.Dispatch(ctx, f.req.ID, "")
	require.NoError(t, err)

	warehouse := entity.NewLocationRef(entity.LocationWarehouse, f.whID)
	before := f.w.balances[balanceKey(warehouse, f.itemA)]

	_, err = f.orch.Deliver(ctx, f.req.ID, []LineDelivery{
		{ItemID: f.itemA, Quantity: types.NewQuantityFromInt(7)},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, before, f.w.balances[balanceKey(warehouse, f.itemA)])
	assert.Equal(t, requisition.StatusDispatched, f.w.requisitions[f.req.ID].Status)
}

func TestDeliver_RollsBackOnBatchShortage(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("nurse-1")

	_, err := f.orch.Approve(ctx, f.req.ID, approvals(f, 10, 4))
	require.NoError(t, err)
	_, err = f.orch.Dispatch(ctx, f.req.ID, "")
	require.NoError(t, err)

	// Ledger says itemB stock exists but its batches are held.
	for i := range f.w.batches {
		if f.w.batches[i].ItemID == f.itemB {
			f.w.batches[i].Hold = batch.HoldBlocked
		}
	}

	warehouse := entity.NewLocationRef(entity.LocationWarehouse, f.whID)
	beforeA := f.w.balances[balanceKey(warehouse, f.itemA)]

	_, err = f.orch.Deliver(ctx, f.req.ID, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// Nothing from the failed delivery survives.
	assert.Equal(t, beforeA, f.w.balances[balanceKey(warehouse, f.itemA)])
	assert.Equal(t, requisition.StatusDispatched, f.w.requisitions[f.req.ID].Status)
	for _, l := range f.w.requisitions[f.req.ID].Lines {
		assert.True(t, l.DeliveredQty.IsZero())
	}
}

func TestDeliver_RequiresDispatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Deliver(actorCtx("nurse-1"), f.req.ID, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

// Stock is conserved end to end: what leaves the warehouse arrives at
// the requester, nothing more, nothing less.
func TestWorkflow_Conservation(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("staff-1")

	warehouse := entity.NewLocationRef(entity.LocationWarehouse, f.whID)
	requester := entity.NewLocationRef(entity.LocationFacility, f.req.RequesterID)
	totalBefore := f.w.balances[balanceKey(warehouse, f.itemA)] + f.w.balances[balanceKey(requester, f.itemA)]

	_, err := f.orch.Approve(ctx, f.req.ID, approvals(f, 7, 2))
	require.NoError(t, err)
	_, err = f.orch.Dispatch(ctx, f.req.ID, "")
	require.NoError(t, err)
	_, err = f.orch.Deliver(ctx, f.req.ID, nil)
	require.NoError(t, err)

	totalAfter := f.w.balances[balanceKey(warehouse, f.itemA)] + f.w.balances[balanceKey(requester, f.itemA)]
	assert.Equal(t, totalBefore, totalAfter)
	assert.Equal(t, types.NewQuantityFromInt(7), f.w.balances[balanceKey(requester, f.itemA)])
}

// Full lifecycle of the dispatch rows: pending at approval,
// dispatched when shipped, delivered when confirmed.
func TestWorkflow_DispatchLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("staff-1")

	_, err := f.orch.Approve(ctx, f.req.ID, approvals(f, 10, 4))
	require.NoError(t, err)
	for _, d := range f.w.dispatches {
		assert.Equal(t, dispatch.StatusPending, d.Status)
	}

	_, err = f.orch.Dispatch(ctx, f.req.ID, "")
	require.NoError(t, err)
	for _, d := range f.w.dispatches {
		assert.Equal(t, dispatch.StatusDispatched, d.Status)
	}

	_, err = f.orch.Deliver(ctx, f.req.ID, nil)
	require.NoError(t, err)
	for _, d := range f.w.dispatches {
		assert.Equal(t, dispatch.StatusDelivered, d.Status)
	}
}

func TestDispatch_PolicyDenied(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("storekeeper-1")

	_, err := f.orch.Approve(ctx, f.req.ID, approvals(f, 10, 4))
	require.NoError(t, err)

	f.orch.dispatchPolicy = security.MustCompilePolicy(`actor.is_admin`)

	_, err = f.orch.Dispatch(ctx, f.req.ID, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
	assert.Equal(t, requisition.StatusApproved, f.w.requisitions[f.req.ID].Status)
}
