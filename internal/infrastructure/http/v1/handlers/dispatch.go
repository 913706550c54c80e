package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medstock/internal/core/apperror"
	"medstock/internal/core/id"
	"medstock/internal/domain/dispatch"
	"medstock/internal/infrastructure/http/v1/dto"
)

// DispatchHandler serves shipment queries. Dispatches are created and
// delivered through the requisition workflow, so this handler is
// read-only.
type DispatchHandler struct {
	*BaseHandler
	dispatches *dispatch.Service
}

func NewDispatchHandler(base *BaseHandler, svc *dispatch.Service) *DispatchHandler {
	return &DispatchHandler{BaseHandler: base, dispatches: svc}
}

// Get handles GET /dispatches/:id.
func (h *DispatchHandler) Get(c *gin.Context) {
	dispatchID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	d, err := h.dispatches.GetByID(c.Request.Context(), dispatchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ListByRequisition handles GET /requisitions/:id/dispatches.
func (h *DispatchHandler) ListByRequisition(c *gin.Context) {
	requisitionID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	dispatches, err := h.dispatches.GetByRequisition(c.Request.Context(), requisitionID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispatches": dispatches})
}

// List handles GET /dispatches.
func (h *DispatchHandler) List(c *gin.Context) {
	filter := dispatch.ListFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if v := c.Query("status"); v != "" {
		status := dispatch.Status(v)
		if !status.IsValid() {
			h.Error(c, apperror.NewValidation("unknown status").WithDetail("status", v))
			return
		}
		filter.Status = &status
	}
	if v := c.Query("sourceId"); v != "" {
		sourceID, err := id.Parse(v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid sourceId format"))
			return
		}
		filter.SourceID = &sourceID
	}
	if v := c.Query("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from date, want RFC3339"))
			return
		}
		filter.FromDate = &from
	}
	if v := c.Query("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to date, want RFC3339"))
			return
		}
		filter.ToDate = &to
	}

	dispatches, err := h.dispatches.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      dispatches,
		TotalCount: int64(len(dispatches)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}
