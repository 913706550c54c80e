package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medstock/internal/core/apperror"
	"medstock/internal/core/id"
	"medstock/internal/domain/fulfillment"
	"medstock/internal/domain/requisition"
	"medstock/internal/infrastructure/http/v1/dto"
)

// RequisitionHandler serves requisition CRUD and workflow transitions.
type RequisitionHandler struct {
	*BaseHandler
	service      *requisition.Service
	orchestrator *fulfillment.Orchestrator
}

func NewRequisitionHandler(base *BaseHandler, svc *requisition.Service, orch *fulfillment.Orchestrator) *RequisitionHandler {
	return &RequisitionHandler{
		BaseHandler:  base,
		service:      svc,
		orchestrator: orch,
	}
}

// Create handles POST /requisitions.
func (h *RequisitionHandler) Create(c *gin.Context) {
	var req dto.CreateRequisitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	model, err := req.ToModel()
	if err != nil {
		h.Error(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), model)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapRequisitionToDTO(created))
}

// Get handles GET /requisitions/:id.
func (h *RequisitionHandler) Get(c *gin.Context) {
	requisitionID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	r, err := h.service.GetByID(c.Request.Context(), requisitionID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapRequisitionToDTO(r))
}

// GetByNumber handles GET /requisitions/by-number/:number.
func (h *RequisitionHandler) GetByNumber(c *gin.Context) {
	r, err := h.service.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapRequisitionToDTO(r))
}

// List handles GET /requisitions.
func (h *RequisitionHandler) List(c *gin.Context) {
	filter, err := h.parseListFilter(c)
	if err != nil {
		h.Error(c, err)
		return
	}

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	out := make([]any, len(items))
	for i := range items {
		out[i] = dto.MapRequisitionToDTO(&items[i])
	}
	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      out,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// Approve handles POST /requisitions/:id/approve.
func (h *RequisitionHandler) Approve(c *gin.Context) {
	requisitionID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.ApproveRequisitionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	approvals, err := req.ToApprovals()
	if err != nil {
		h.Error(c, err)
		return
	}

	r, err := h.orchestrator.Approve(c.Request.Context(), requisitionID, approvals)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapRequisitionToDTO(r))
}

// Reject handles POST /requisitions/:id/reject.
func (h *RequisitionHandler) Reject(c *gin.Context) {
	requisitionID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.RejectRequisitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	r, err := h.orchestrator.Reject(c.Request.Context(), requisitionID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapRequisitionToDTO(r))
}

// Dispatch handles POST /requisitions/:id/dispatch.
func (h *RequisitionHandler) Dispatch(c *gin.Context) {
	requisitionID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.DispatchRequisitionRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	dispatches, err := h.orchestrator.Dispatch(c.Request.Context(), requisitionID, req.Remarks)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispatches": dispatches})
}

// Deliver handles POST /requisitions/:id/deliver. Without a body the
// whole outstanding shipment is confirmed; with lines only the named
// amounts are.
func (h *RequisitionHandler) Deliver(c *gin.Context) {
	requisitionID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.DeliverRequisitionRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}
	deliveries, err := req.ToDeliveries()
	if err != nil {
		h.Error(c, err)
		return
	}

	r, err := h.orchestrator.Deliver(c.Request.Context(), requisitionID, deliveries)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapRequisitionToDTO(r))
}

func (h *RequisitionHandler) parseListFilter(c *gin.Context) (requisition.ListFilter, error) {
	filter := requisition.ListFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if v := c.Query("source"); v != "" {
		source := requisition.Source(v)
		if !source.IsValid() {
			return filter, apperror.NewValidation("unknown source").WithDetail("source", v)
		}
		filter.Source = &source
	}
	if v := c.Query("status"); v != "" {
		status := requisition.Status(v)
		if !status.IsValid() {
			return filter, apperror.NewValidation("unknown status").WithDetail("status", v)
		}
		filter.Status = &status
	}
	if v := c.Query("requesterId"); v != "" {
		requesterID, err := id.Parse(v)
		if err != nil {
			return filter, apperror.NewValidation("invalid requesterId format")
		}
		filter.RequesterID = &requesterID
	}
	if v := c.Query("warehouseId"); v != "" {
		warehouseID, err := id.Parse(v)
		if err != nil {
			return filter, apperror.NewValidation("invalid warehouseId format")
		}
		filter.WarehouseID = &warehouseID
	}
	if v := c.Query("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperror.NewValidation("invalid from date, want RFC3339")
		}
		filter.FromDate = &from
	}
	if v := c.Query("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperror.NewValidation("invalid to date, want RFC3339")
		}
		filter.ToDate = &to
	}
	return filter, nil
}
