package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medstock/internal/core/apperror"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
	"medstock/internal/domain/goodsreceipt"
	"medstock/internal/infrastructure/http/v1/dto"
)

// GoodsReceiptHandler serves supplier delivery postings.
type GoodsReceiptHandler struct {
	*BaseHandler
	receipts *goodsreceipt.Service
}

func NewGoodsReceiptHandler(base *BaseHandler, svc *goodsreceipt.Service) *GoodsReceiptHandler {
	return &GoodsReceiptHandler{BaseHandler: base, receipts: svc}
}

type receiptLineRequest struct {
	ItemID      string         `json:"itemId" binding:"required"`
	BatchNumber string         `json:"batchNumber" binding:"required"`
	Quantity    types.Quantity `json:"quantity" binding:"required"`
	UnitCost    string         `json:"unitCost"`
	ExpiryDate  *time.Time     `json:"expiryDate"`
}

type postReceiptRequest struct {
	WarehouseID string               `json:"warehouseId" binding:"required"`
	SupplierID  *string              `json:"supplierId"`
	Date        *time.Time           `json:"date"`
	Reference   string               `json:"reference"`
	Remarks     string               `json:"remarks"`
	Lines       []receiptLineRequest `json:"lines" binding:"required"`
}

// Post handles POST /goods-receipts. A receipt is posted in one shot:
// batches are created and the warehouse ledger credited atomically.
func (h *GoodsReceiptHandler) Post(c *gin.Context) {
	var req postReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid warehouseId format"))
		return
	}

	g := &goodsreceipt.GoodsReceipt{
		Date:        time.Now().UTC(),
		WarehouseID: warehouseID,
		Reference:   req.Reference,
		Remarks:     req.Remarks,
	}
	if req.Date != nil {
		g.Date = req.Date.UTC()
	}
	if req.SupplierID != nil {
		supplierID, err := id.Parse(*req.SupplierID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid supplierId format"))
			return
		}
		g.SupplierID = &supplierID
	}
	for _, l := range req.Lines {
		itemID, err := id.Parse(l.ItemID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid line itemId format"))
			return
		}
		line := goodsreceipt.Line{
			ItemID:      itemID,
			BatchNumber: l.BatchNumber,
			Quantity:    l.Quantity,
			ExpiryDate:  l.ExpiryDate,
		}
		if l.UnitCost != "" {
			cost, err := types.NewMoneyFromString(l.UnitCost)
			if err != nil {
				h.Error(c, apperror.NewValidation("invalid line unitCost"))
				return
			}
			line.UnitCost = cost
		}
		g.Lines = append(g.Lines, line)
	}

	posted, err := h.receipts.Post(c.Request.Context(), g)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, posted)
}

// Get handles GET /goods-receipts/:id.
func (h *GoodsReceiptHandler) Get(c *gin.Context) {
	receiptID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	g, err := h.receipts.GetByID(c.Request.Context(), receiptID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// List handles GET /goods-receipts.
func (h *GoodsReceiptHandler) List(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 50)
	offset := h.ParseIntQuery(c, "offset", 0)

	var warehouseID *id.ID
	if v := c.Query("warehouseId"); v != "" {
		parsed, err := id.Parse(v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid warehouseId format"))
			return
		}
		warehouseID = &parsed
	}

	receipts, err := h.receipts.List(c.Request.Context(), warehouseID, limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      receipts,
		TotalCount: int64(len(receipts)),
		Limit:      limit,
		Offset:     offset,
	})
}
