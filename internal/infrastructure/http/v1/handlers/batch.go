package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medstock/internal/core/apperror"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
	"medstock/internal/domain/batch"
)

// BatchHandler serves batch ledger queries and quality holds.
type BatchHandler struct {
	*BaseHandler
	batches *batch.Service
}

func NewBatchHandler(base *BaseHandler, svc *batch.Service) *BatchHandler {
	return &BatchHandler{BaseHandler: base, batches: svc}
}

// batchView decorates a batch with its derived status.
type batchView struct {
	batch.Batch
	Status batch.Status `json:"status"`
}

func viewOf(b batch.Batch, now time.Time) batchView {
	return batchView{Batch: b, Status: b.StatusAt(now)}
}

// Get handles GET /batches/:id.
func (h *BatchHandler) Get(c *gin.Context) {
	batchID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	b, err := h.batches.GetByID(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(*b, time.Now().UTC()))
}

// ListByItem handles GET /stock/:locationType/:locationId/items/:itemId/batches.
func (h *BatchHandler) ListByItem(c *gin.Context) {
	location, err := parseLocationRef(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	itemID, err := id.Parse(c.Param("itemId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid itemId format"))
		return
	}

	includeEmpty := c.Query("includeEmpty") == "true"
	batches, err := h.batches.ListByItem(c.Request.Context(), location, itemID, includeEmpty)
	if err != nil {
		h.Error(c, err)
		return
	}

	now := time.Now().UTC()
	views := make([]batchView, len(batches))
	for i, b := range batches {
		views[i] = viewOf(b, now)
	}
	c.JSON(http.StatusOK, gin.H{"batches": views})
}

// ListExpiring handles GET /stock/:locationType/:locationId/batches/expiring.
func (h *BatchHandler) ListExpiring(c *gin.Context) {
	location, err := parseLocationRef(c)
	if err != nil {
		h.Error(c, err)
		return
	}

	window := batch.NearExpiryWindow
	if days := h.ParseIntQuery(c, "days", 0); days > 0 {
		window = time.Duration(days) * 24 * time.Hour
	}

	batches, err := h.batches.ListExpiring(c.Request.Context(), location, window)
	if err != nil {
		h.Error(c, err)
		return
	}

	now := time.Now().UTC()
	views := make([]batchView, len(batches))
	for i, b := range batches {
		views[i] = viewOf(b, now)
	}
	c.JSON(http.StatusOK, gin.H{"batches": views})
}

// Plan handles GET /stock/:locationType/:locationId/items/:itemId/plan.
// It previews which batches a dispatch of the given quantity would
// draw from, without locking or changing anything.
func (h *BatchHandler) Plan(c *gin.Context) {
	location, err := parseLocationRef(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	itemID, err := id.Parse(c.Param("itemId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid itemId format"))
		return
	}

	var quantity types.Quantity
	if err := quantity.UnmarshalJSON([]byte(c.Query("quantity"))); err != nil || quantity <= 0 {
		h.Error(c, apperror.NewValidation("quantity must be a positive number"))
		return
	}

	result, err := h.batches.Plan(c.Request.Context(), location, itemID, quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Recall handles POST /batches/recall. It puts every batch of one
// batch number on recall hold across all locations, recording why.
func (h *BatchHandler) Recall(c *gin.Context) {
	var req struct {
		ItemID      string `json:"itemId" binding:"required"`
		BatchNumber string `json:"batchNumber" binding:"required"`
		Reason      string `json:"reason" binding:"required"`
	}
	if !h.BindJSON(c, &req) {
		return
	}
	itemID, err := id.Parse(req.ItemID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid itemId format"))
		return
	}

	affected, err := h.batches.Recall(c.Request.Context(), itemID, req.BatchNumber, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": affected})
}

// Block handles POST /batches/:id/block.
func (h *BatchHandler) Block(c *gin.Context) {
	batchID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	if err := h.batches.Block(c.Request.Context(), batchID, req.Reason); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "batch hold updated")
}

// Unblock handles POST /batches/:id/unblock.
func (h *BatchHandler) Unblock(c *gin.Context) {
	batchID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}
	if err := h.batches.Unblock(c.Request.Context(), batchID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "batch hold updated")
}
