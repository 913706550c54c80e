package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func testBatch(number string, expiry *time.Time, quantity int64) Batch {
	return Batch{
		ID:           id.New(),
		ItemID:       id.New(),
		LocationType: entity.LocationWarehouse,
		BatchNumber:  number,
		Quantity:     types.NewQuantityFromInt(quantity),
		ReceivedQty:  types.NewQuantityFromInt(quantity),
		ExpiryDate:   expiry,
		ReceivedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSelectForDispatch_EarliestExpiryFirst(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	batches := []Batch{
		testBatch("B-JAN", date("2025-01-01"), 5),
		testBatch("B-JUN", date("2025-06-01"), 5),
		testBatch("B-MAR", date("2025-03-01"), 5),
	}

	result := SelectForDispatch(batches, types.NewQuantityFromInt(8), now)

	require.True(t, result.Sufficient())
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, "B-JAN", result.Allocations[0].BatchNumber)
	assert.Equal(t, types.NewQuantityFromInt(5), result.Allocations[0].Quantity)
	assert.Equal(t, "B-MAR", result.Allocations[1].BatchNumber)
	assert.Equal(t, types.NewQuantityFromInt(3), result.Allocations[1].Quantity)
	assert.Equal(t, types.NewQuantityFromInt(8), result.Allocated)
}

func TestSelectForDispatch_NilExpiryLast(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	batches := []Batch{
		testBatch("B-NOEXP", nil, 10),
		testBatch("B-DATED", date("2025-01-01"), 4),
	}

	result := SelectForDispatch(batches, types.NewQuantityFromInt(6), now)

	require.Len(t, result.Allocations, 2)
	assert.Equal(t, "B-DATED", result.Allocations[0].BatchNumber)
	assert.Equal(t, "B-NOEXP", result.Allocations[1].BatchNumber)
	assert.Equal(t, types.NewQuantityFromInt(2), result.Allocations[1].Quantity)
}

func TestSelectForDispatch_SkipsExpiredAndHeld(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	expired := testBatch("B-EXPIRED", date("2025-01-01"), 10)
	recalled := testBatch("B-RECALLED", date("2026-01-01"), 10)
	recalled.Hold = HoldRecalled
	good := testBatch("B-GOOD", date("2026-01-01"), 10)

	result := SelectForDispatch([]Batch{expired, recalled, good}, types.NewQuantityFromInt(5), now)

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, "B-GOOD", result.Allocations[0].BatchNumber)
}

func TestSelectForDispatch_Shortfall(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	batches := []Batch{
		testBatch("B-ONLY", date("2025-01-01"), 3),
	}

	result := SelectForDispatch(batches, types.NewQuantityFromInt(10), now)

	assert.False(t, result.Sufficient())
	assert.Equal(t, types.NewQuantityFromInt(3), result.Allocated)
	assert.Equal(t, types.NewQuantityFromInt(7), result.Shortfall)
}

func TestSelectForDispatch_TieBreaksOnReceivedAt(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	older := testBatch("B-OLDER", date("2025-01-01"), 5)
	older.ReceivedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testBatch("B-NEWER", date("2025-01-01"), 5)
	newer.ReceivedAt = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	result := SelectForDispatch([]Batch{newer, older}, types.NewQuantityFromInt(7), now)

	require.Len(t, result.Allocations, 2)
	assert.Equal(t, "B-OLDER", result.Allocations[0].BatchNumber)
	assert.Equal(t, "B-NEWER", result.Allocations[1].BatchNumber)
}

func TestSelectForDispatch_ZeroRequest(t *testing.T) {
	now := time.Now()
	result := SelectForDispatch([]Batch{testBatch("B", nil, 5)}, 0, now)

	assert.True(t, result.Sufficient())
	assert.Empty(t, result.Allocations)
}
