package batch

import (
	"sort"
	"time"

	"medstock/internal/core/id"
	"medstock/internal/core/types"
)

// Allocation is one planned draw against a batch.
type Allocation struct {
	BatchID     id.ID          `json:"batchId"`
	BatchNumber string         `json:"batchNumber"`
	Quantity    types.Quantity `json:"quantity"`
	ExpiryDate  *time.Time     `json:"expiryDate,omitempty"`
}

// SelectionResult is a dispatch plan. When the dispatchable stock does
// not cover the request, Allocations holds the partial plan and
// Shortfall the uncovered remainder.
type SelectionResult struct {
	Allocations []Allocation   `json:"allocations"`
	Allocated   types.Quantity `json:"allocated"`
	Shortfall   types.Quantity `json:"shortfall"`
}

func (r SelectionResult) Sufficient() bool { return r.Shortfall == 0 }

// SelectForDispatch plans draws against the given batches, earliest
// expiry first. Expired and held batches are skipped; batches without
// an expiry date sort after all dated ones. Ties break on received
// time, then batch id, so the plan is deterministic for a given input.
// The input slice is not modified.
func SelectForDispatch(batches []Batch, requested types.Quantity, now time.Time) SelectionResult {
	result := SelectionResult{Shortfall: requested}
	if requested <= 0 {
		result.Shortfall = 0
		return result
	}

	eligible := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if b.Dispatchable(now) {
			eligible = append(eligible, b)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	remaining := requested
	for _, b := range eligible {
		if remaining == 0 {
			break
		}
		take := b.Quantity.Min(remaining)
		result.Allocations = append(result.Allocations, Allocation{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
			ExpiryDate:  b.ExpiryDate,
		})
		result.Allocated += take
		remaining -= take
	}
	result.Shortfall = remaining
	return result
}
