package requisition

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstock/internal/core/apperror"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
)

func testRequisition(lines ...Line) *Requisition {
	r := &Requisition{
		Date:        time.Now().UTC(),
		Source:      SourceFacility,
		RequesterID: id.New(),
		WarehouseID: id.New(),
		Status:      StatusPending,
		Lines:       lines,
	}
	return r
}

func line(requested, approved int64) Line {
	return Line{
		ID:           id.New(),
		ItemID:       id.New(),
		RequestedQty: types.NewQuantityFromInt(requested),
		ApprovedQty:  types.NewQuantityFromInt(approved),
	}
}

func TestClassifyApproval(t *testing.T) {
	t.Run("all lines in full", func(t *testing.T) {
		r := testRequisition(line(10, 10), line(5, 5))
		status, err := r.ClassifyApproval()
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, status)
	})

	t.Run("one line reduced", func(t *testing.T) {
		r := testRequisition(line(10, 10), line(5, 3))
		status, err := r.ClassifyApproval()
		require.NoError(t, err)
		assert.Equal(t, StatusPartiallyApproved, status)
	})

	t.Run("one line zeroed", func(t *testing.T) {
		r := testRequisition(line(10, 10), line(5, 0))
		status, err := r.ClassifyApproval()
		require.NoError(t, err)
		assert.Equal(t, StatusPartiallyApproved, status)
	})

	t.Run("nothing granted", func(t *testing.T) {
		r := testRequisition(line(10, 0), line(5, 0))
		_, err := r.ClassifyApproval()
		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperror.CodeEmptyApproval, appErr.Code)
	})
}

func TestRequisitionValidate(t *testing.T) {
	r := testRequisition(line(10, 0))
	assert.NoError(t, r.Validate())

	noLines := testRequisition()
	assert.Error(t, noLines.Validate())

	badSource := testRequisition(line(10, 0))
	badSource.Source = "department"
	assert.Error(t, badSource.Validate())

	dup := line(10, 0)
	duplicated := testRequisition(dup, dup)
	assert.Error(t, duplicated.Validate())
}

func TestLineValidate(t *testing.T) {
	ok := line(10, 5)
	assert.NoError(t, ok.Validate())

	overApproved := line(10, 12)
	assert.Error(t, overApproved.Validate())

	overDelivered := line(10, 5)
	overDelivered.DeliveredQty = types.NewQuantityFromInt(7)
	assert.Error(t, overDelivered.Validate())

	zeroRequested := line(0, 0)
	assert.Error(t, zeroRequested.Validate())
}
