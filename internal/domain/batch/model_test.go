package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry *time.Time
		hold   Hold
		want   Status
	}{
		{"no expiry", nil, HoldNone, StatusActive},
		{"far future", date("2027-01-01"), HoldNone, StatusActive},
		{"within window", date("2026-03-20"), HoldNone, StatusNearExpiry},
		{"on expiry day", date("2026-03-01"), HoldNone, StatusNearExpiry},
		{"expired yesterday", date("2026-02-28"), HoldNone, StatusExpired},
		{"past expiry", date("2025-01-01"), HoldNone, StatusExpired},
		{"recall wins over expiry", date("2025-01-01"), HoldRecalled, StatusRecalled},
		{"block wins over expiry", date("2025-01-01"), HoldBlocked, StatusBlocked},
		{"recall without expiry", nil, HoldRecalled, StatusRecalled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBatch("B", tt.expiry, 10)
			b.Hold = tt.hold
			assert.Equal(t, tt.want, b.StatusAt(now))
		})
	}
}

func TestDispatchable(t *testing.T) {
	now := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)

	nearExpiry := testBatch("B", date("2026-03-10"), 5)
	assert.True(t, nearExpiry.Dispatchable(now))

	lastDay := testBatch("B", date("2026-03-01"), 5)
	assert.True(t, lastDay.Dispatchable(now))

	empty := testBatch("B", date("2027-01-01"), 5)
	empty.Quantity = 0
	assert.False(t, empty.Dispatchable(now))

	expired := testBatch("B", date("2026-02-01"), 5)
	assert.False(t, expired.Dispatchable(now))

	blocked := testBatch("B", date("2027-01-01"), 5)
	blocked.Hold = HoldBlocked
	assert.False(t, blocked.Dispatchable(now))
}

func TestBatchValidate(t *testing.T) {
	b := testBatch("B-1", date("2027-01-01"), 5)
	assert.NoError(t, b.Validate())

	noNumber := b
	noNumber.BatchNumber = ""
	assert.Error(t, noNumber.Validate())

	negative := b
	negative.Quantity = -1
	assert.Error(t, negative.Validate())
}
