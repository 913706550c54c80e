package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
)

type entryKey struct {
	loc    entity.LocationRef
	itemID id.ID
}

type memRepo struct {
	entries   map[entryKey]entity.LedgerEntry
	movements []entity.StockMovement
}

func newMemRepo() *memRepo {
	return &memRepo{entries: make(map[entryKey]entity.LedgerEntry)}
}

func (r *memRepo) GetEntry(ctx context.Context, location entity.LocationRef, itemID id.ID) (entity.LedgerEntry, error) {
	e, ok := r.entries[entryKey{location, itemID}]
	if !ok {
		return entity.LedgerEntry{LocationType: location.Type, LocationID: location.ID, ItemID: itemID}, nil
	}
	return e, nil
}

func (r *memRepo) GetEntryForUpdate(ctx context.Context, location entity.LocationRef, itemID id.ID) (entity.LedgerEntry, bool, error) {
	e, ok := r.entries[entryKey{location, itemID}]
	return e, ok, nil
}

func (r *memRepo) InsertEntry(ctx context.Context, entry entity.LedgerEntry) error {
	r.entries[entryKey{entry.Location(), entry.ItemID}] = entry
	return nil
}

func (r *memRepo) UpdateQuantity(ctx context.Context, location entity.LocationRef, itemID id.ID, quantity types.Quantity) error {
	key := entryKey{location, itemID}
	e := r.entries[key]
	e.Quantity = quantity
	e.LastMovementAt = time.Now()
	r.entries[key] = e
	return nil
}

func (r *memRepo) SetReorderLevel(ctx context.Context, location entity.LocationRef, itemID id.ID, level types.Quantity) error {
	key := entryKey{location, itemID}
	e, ok := r.entries[key]
	if !ok {
		e = entity.LedgerEntry{LocationType: location.Type, LocationID: location.ID, ItemID: itemID}
	}
	e.ReorderLevel = level
	r.entries[key] = e
	return nil
}

func (r *memRepo) ListByLocation(ctx context.Context, location entity.LocationRef, filter EntryFilter) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	for k, e := range r.entries {
		if !k.loc.Equal(location) {
			continue
		}
		if filter.ExcludeZero && e.Quantity.IsZero() {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memRepo) ListByItem(ctx context.Context, itemID id.ID) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	for k, e := range r.entries {
		if k.itemID == itemID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) ListLowStock(ctx context.Context, location entity.LocationRef) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	for k, e := range r.entries {
		if k.loc.Equal(location) && e.IsLowStock() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *memRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, m := range r.movements {
		if m.RecorderID == recorderID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) GetMovementHistory(ctx context.Context, itemID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, m := range r.movements {
		if m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testPosting() Posting {
	return Posting{RecorderID: id.New(), RecorderType: "goods_receipt", Period: time.Now()}
}

func qty(n int64) types.Quantity { return types.NewQuantityFromInt(n) }

func TestCredit_CreatesEntryOnFirstArrival(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, passthroughTx{})
	ctx := context.Background()

	loc := entity.NewLocationRef(entity.LocationWarehouse, id.New())
	itemID := id.New()

	err := svc.Credit(ctx, testPosting(), loc, itemID, qty(100), CreditOptions{ReorderLevel: qty(10)})
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, loc, itemID)
	require.NoError(t, err)
	assert.Equal(t, qty(100), balance)

	entry := repo.entries[entryKey{loc, itemID}]
	assert.Equal(t, qty(10), entry.ReorderLevel)

	require.Len(t, repo.movements, 1)
	assert.Equal(t, entity.RecordTypeReceipt, repo.movements[0].RecordType)
	assert.Equal(t, qty(100), repo.movements[0].Quantity)
}

func TestCredit_AddsToExistingEntry(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, passthroughTx{})
	ctx := context.Background()

	loc := entity.NewLocationRef(entity.LocationWarehouse, id.New())
	itemID := id.New()

	require.NoError(t, svc.Credit(ctx, testPosting(), loc, itemID, qty(40), CreditOptions{}))
	require.NoError(t, svc.Credit(ctx, testPosting(), loc, itemID, qty(60), CreditOptions{}))

	balance, err := svc.GetBalance(ctx, loc, itemID)
	require.NoError(t, err)
	assert.Equal(t, qty(100), balance)
}

func TestCredit_RejectsNonPositive(t *testing.T) {
	svc := NewService(newMemRepo(), passthroughTx{})
	loc := entity.NewLocationRef(entity.LocationWarehouse, id.New())

	err := svc.Credit(context.Background(), testPosting(), loc, id.New(), qty(0), CreditOptions{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestDebit_ReducesBalance(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, passthroughTx{})
	ctx := context.Background()

	loc := entity.NewLocationRef(entity.LocationWarehouse, id.New())
	itemID := id.New()
	require.NoError(t, svc.Credit(ctx, testPosting(), loc, itemID, qty(100), CreditOptions{}))

	err := svc.Debit(ctx, testPosting(), loc, itemID, qty(30))
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, loc, itemID)
	require.NoError(t, err)
	assert.Equal(t, qty(70), balance)

	require.Len(t, repo.movements, 2)
	assert.Equal(t, entity.RecordTypeExpense, repo.movements[1].RecordType)
}

func TestDebit_InsufficientStock(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, passthroughTx{})
	ctx := context.Background()

	loc := entity.NewLocationRef(entity.LocationWarehouse, id.New())
	itemID := id.New()
	require.NoError(t, svc.Credit(ctx, testPosting(), loc, itemID, qty(5), CreditOptions{}))

	err := svc.Debit(ctx, testPosting(), loc, itemID, qty(6))
	assert.True(t, apperror.IsInsufficientStock(err))

	// Balance and history untouched by the refused debit.
	balance, _ := svc.GetBalance(ctx, loc, itemID)
	assert.Equal(t, qty(5), balance)
	assert.Len(t, repo.movements, 1)
}

func TestDebit_MissingEntryIsInsufficient(t *testing.T) {
	svc := NewService(newMemRepo(), passthroughTx{})
	loc := entity.NewLocationRef(entity.LocationFacility, id.New())

	err := svc.Debit(context.Background(), testPosting(), loc, id.New(), qty(1))
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestDebit_ExactBalanceGoesToZero(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, passthroughTx{})
	ctx := context.Background()

	loc := entity.NewLocationRef(entity.LocationWarehouse, id.New())
	itemID := id.New()
	require.NoError(t, svc.Credit(ctx, testPosting(), loc, itemID, qty(10), CreditOptions{}))
	require.NoError(t, svc.Debit(ctx, testPosting(), loc, itemID, qty(10)))

	balance, err := svc.GetBalance(ctx, loc, itemID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestIsLowStock(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, passthroughTx{})
	ctx := context.Background()

	loc := entity.NewLocationRef(entity.LocationWarehouse, id.New())
	itemID := id.New()
	require.NoError(t, svc.Credit(ctx, testPosting(), loc, itemID, qty(100), CreditOptions{ReorderLevel: qty(20)}))

	low, err := svc.IsLowStock(ctx, loc, itemID)
	require.NoError(t, err)
	assert.False(t, low)

	require.NoError(t, svc.Debit(ctx, testPosting(), loc, itemID, qty(80)))
	low, err = svc.IsLowStock(ctx, loc, itemID)
	require.NoError(t, err)
	assert.True(t, low)
}

func TestIsLowStock_NoReorderLevel(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, passthroughTx{})
	ctx := context.Background()

	loc := entity.NewLocationRef(entity.LocationWarehouse, id.New())
	itemID := id.New()
	require.NoError(t, svc.Credit(ctx, testPosting(), loc, itemID, qty(1), CreditOptions{}))
	require.NoError(t, svc.Debit(ctx, testPosting(), loc, itemID, qty(1)))

	low, err := svc.IsLowStock(ctx, loc, itemID)
	require.NoError(t, err)
	assert.False(t, low)
}

func TestSetReorderLevel(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, passthroughTx{})
	ctx := context.Background()

	loc := entity.NewLocationRef(entity.LocationWarehouse, id.New())
	itemID := id.New()
	require.NoError(t, svc.Credit(ctx, testPosting(), loc, itemID, qty(10), CreditOptions{}))

	require.NoError(t, svc.SetReorderLevel(ctx, loc, itemID, qty(15)))
	low, err := svc.IsLowStock(ctx, loc, itemID)
	require.NoError(t, err)
	assert.True(t, low)

	err = svc.SetReorderLevel(ctx, loc, itemID, qty(-1))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestGetStock_ExcludesZeroWhenAsked(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, passthroughTx{})
	ctx := context.Background()

	loc := entity.NewLocationRef(entity.LocationWarehouse, id.New())
	itemA, itemB := id.New(), id.New()
	require.NoError(t, svc.Credit(ctx, testPosting(), loc, itemA, qty(10), CreditOptions{}))
	require.NoError(t, svc.Credit(ctx, testPosting(), loc, itemB, qty(10), CreditOptions{}))
	require.NoError(t, svc.Debit(ctx, testPosting(), loc, itemB, qty(10)))

	all, err := svc.GetStock(ctx, loc, EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	nonZero, err := svc.GetStock(ctx, loc, EntryFilter{ExcludeZero: true})
	require.NoError(t, err)
	require.Len(t, nonZero, 1)
	assert.Equal(t, itemA, nonZero[0].ItemID)
}

func TestMovementHistory_RecordsBothDirections(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, passthroughTx{})
	ctx := context.Background()

	loc := entity.NewLocationRef(entity.LocationWarehouse, id.New())
	itemID := id.New()
	require.NoError(t, svc.Credit(ctx, testPosting(), loc, itemID, qty(50), CreditOptions{}))
	require.NoError(t, svc.Debit(ctx, testPosting(), loc, itemID, qty(20)))

	history, err := svc.GetMovementHistory(ctx, itemID, MovementFilter{})
	require.NoError(t, err)
	require.Len(t, history, 2)

	var net types.Quantity
	for _, m := range history {
		net += m.SignedQuantity()
	}
	assert.Equal(t, qty(30), net)
}
