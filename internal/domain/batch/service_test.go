package batch

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

type memBatchRepo struct {
	batches map[id.ID]*Batch
}

func newMemBatchRepo(batches ...Batch) *memBatchRepo {
	r := &memBatchRepo{batches: make(map[id.ID]*Batch)}
	for i := range batches {
		b := batches[i]
		r.batches[b.ID] = &b
	}
	return r
}

func (r *memBatchRepo) Create(ctx context.Context, b *Batch) error {
	cp := *b
	r.batches[b.ID] = &cp
	return nil
}

func (r *memBatchRepo) GetByID(ctx context.Context, batchID id.ID) (*Batch, error) {
	b, ok := r.batches[batchID]
	if !ok {
		return nil, apperror.NewNotFound("batch", batchID.String())
	}
	cp := *b
	return &cp, nil
}

func (r *memBatchRepo) GetByIDForUpdate(ctx context.Context, batchID id.ID) (*Batch, error) {
	return r.GetByID(ctx, batchID)
}

func (r *memBatchRepo) ListForItemForUpdate(ctx context.Context, location entity.LocationRef, itemID id.ID) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.ItemID == itemID && b.Location().Equal(location) && b.Quantity > 0 {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memBatchRepo) ListByItem(ctx context.Context, location entity.LocationRef, itemID id.ID, includeEmpty bool) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.ItemID != itemID || !b.Location().Equal(location) {
			continue
		}
		if !includeEmpty && b.Quantity <= 0 {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r *memBatchRepo) ListByNumber(ctx context.Context, itemID id.ID, batchNumber string) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.ItemID == itemID && b.BatchNumber == batchNumber {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memBatchRepo) ListExpiring(ctx context.Context, location entity.LocationRef, cutoff time.Time) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.Location().Equal(location) && b.Quantity > 0 && b.Hold == HoldNone &&
			b.ExpiryDate != nil && !b.ExpiryDate.After(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memBatchRepo) UpdateQuantity(ctx context.Context, batchID id.ID, quantity types.Quantity) error {
	b, ok := r.batches[batchID]
	if !ok {
		return apperror.NewNotFound("batch", batchID.String())
	}
	b.Quantity = quantity
	return nil
}

func (r *memBatchRepo) SetHold(ctx context.Context, batchID id.ID, hold Hold, reason string) error {
	b, ok := r.batches[batchID]
	if !ok {
		return apperror.NewNotFound("batch", batchID.String())
	}
	b.Hold = hold
	b.HoldReason = reason
	return nil
}

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func stockedBatch(itemID id.ID, number string, quantity int64) Batch {
	b := testBatch(number, date("2027-01-01"), quantity)
	b.ItemID = itemID
	b.LocationID = id.New()
	return b
}

func TestRecall_HoldsAllBatchesOfNumberWithReason(t *testing.T) {
	itemID := id.New()
	here := stockedBatch(itemID, "LOT-7", 10)
	there := stockedBatch(itemID, "LOT-7", 5)
	other := stockedBatch(itemID, "LOT-8", 5)
	repo := newMemBatchRepo(here, there, other)
	svc := NewService(repo, passthroughTx{})

	affected, err := svc.Recall(context.Background(), itemID, "LOT-7", "supplier contamination notice")
	require.NoError(t, err)
	assert.Equal(t, 2, affected)

	for _, batchID := range []id.ID{here.ID, there.ID} {
		b, err := repo.GetByID(context.Background(), batchID)
		require.NoError(t, err)
		assert.Equal(t, HoldRecalled, b.Hold)
		assert.Equal(t, "supplier contamination notice", b.HoldReason)
	}
	untouched, err := repo.GetByID(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, HoldNone, untouched.Hold)
	assert.Empty(t, untouched.HoldReason)
}

func TestRecall_RequiresReason(t *testing.T) {
	itemID := id.New()
	repo := newMemBatchRepo(stockedBatch(itemID, "LOT-7", 10))
	svc := NewService(repo, passthroughTx{})

	_, err := svc.Recall(context.Background(), itemID, "LOT-7", "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestRecall_SkipsAlreadyRecalled(t *testing.T) {
	itemID := id.New()
	prior := stockedBatch(itemID, "LOT-7", 10)
	prior.Hold = HoldRecalled
	prior.HoldReason = "first notice"
	fresh := stockedBatch(itemID, "LOT-7", 5)
	repo := newMemBatchRepo(prior, fresh)
	svc := NewService(repo, passthroughTx{})

	affected, err := svc.Recall(context.Background(), itemID, "LOT-7", "second notice")
	require.NoError(t, err)
	assert.Equal(t, 1, affected)

	kept, err := repo.GetByID(context.Background(), prior.ID)
	require.NoError(t, err)
	assert.Equal(t, "first notice", kept.HoldReason)
}

func TestRecall_UnknownNumber(t *testing.T) {
	svc := NewService(newMemBatchRepo(), passthroughTx{})

	_, err := svc.Recall(context.Background(), id.New(), "LOT-404", "why not")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}

func TestBlockAndUnblock(t *testing.T) {
	itemID := id.New()
	b := stockedBatch(itemID, "LOT-7", 10)
	repo := newMemBatchRepo(b)
	svc := NewService(repo, passthroughTx{})

	require.NoError(t, svc.Block(context.Background(), b.ID, "damaged packaging"))
	held, err := repo.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, HoldBlocked, held.Hold)
	assert.Equal(t, "damaged packaging", held.HoldReason)

	require.NoError(t, svc.Unblock(context.Background(), b.ID))
	cleared, err := repo.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, HoldNone, cleared.Hold)
	assert.Empty(t, cleared.HoldReason)
}

func TestUnblock_DoesNotLiftRecall(t *testing.T) {
	itemID := id.New()
	b := stockedBatch(itemID, "LOT-7", 10)
	b.Hold = HoldRecalled
	b.HoldReason = "contamination"
	repo := newMemBatchRepo(b)
	svc := NewService(repo, passthroughTx{})

	err := svc.Unblock(context.Background(), b.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}
