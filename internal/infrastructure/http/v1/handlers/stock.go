package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medstock/internal/core/apperror"
	"medstock/internal/core/entity"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
	"medstock/internal/domain/ledger"
	"medstock/internal/infrastructure/http/v1/dto"
)

// StockHandler serves stock level and movement history queries.
type StockHandler struct {
	*BaseHandler
	ledger *ledger.Service
}

func NewStockHandler(base *BaseHandler, svc *ledger.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, ledger: svc}
}

func parseLocationRef(c *gin.Context) (entity.LocationRef, error) {
	locType := entity.LocationType(c.Param("locationType"))
	if !locType.IsValid() {
		return entity.LocationRef{}, apperror.NewValidation("unknown location type").
			WithDetail("locationType", c.Param("locationType"))
	}
	locationID, err := id.Parse(c.Param("locationId"))
	if err != nil {
		return entity.LocationRef{}, apperror.NewValidation("invalid locationId format")
	}
	return entity.NewLocationRef(locType, locationID), nil
}

// GetStock handles GET /stock/:locationType/:locationId.
func (h *StockHandler) GetStock(c *gin.Context) {
	location, err := parseLocationRef(c)
	if err != nil {
		h.Error(c, err)
		return
	}

	filter := ledger.EntryFilter{
		ExcludeZero: c.Query("includeZero") != "true",
	}
	if v := c.Query("itemId"); v != "" {
		itemID, err := id.Parse(v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid itemId format"))
			return
		}
		filter.ItemIDs = []id.ID{itemID}
	}

	entries, err := h.ledger.GetStock(c.Request.Context(), location, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": location, "entries": entries})
}

// GetBalance handles GET /stock/:locationType/:locationId/items/:itemId.
func (h *StockHandler) GetBalance(c *gin.Context) {
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

	qty, err := h.ledger.GetBalance(c.Request.Context(), location, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"location": location,
		"itemId":   itemID,
		"quantity": qty,
	})
}

// GetStockByItem handles GET /items/:itemId/stock: where an item sits
// across all locations.
func (h *StockHandler) GetStockByItem(c *gin.Context) {
	itemID, err := id.Parse(c.Param("itemId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid itemId format"))
		return
	}

	entries, err := h.ledger.GetStockByItem(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"itemId": itemID, "entries": entries})
}

// ListLowStock handles GET /stock/:locationType/:locationId/low.
func (h *StockHandler) ListLowStock(c *gin.Context) {
	location, err := parseLocationRef(c)
	if err != nil {
		h.Error(c, err)
		return
	}

	entries, err := h.ledger.ListLowStock(c.Request.Context(), location)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": location, "entries": entries})
}

// SetReorderLevel handles PUT /stock/:locationType/:locationId/items/:itemId/reorder-level.
func (h *StockHandler) SetReorderLevel(c *gin.Context) {
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

	var req struct {
		ReorderLevel types.Quantity `json:"reorderLevel"`
	}
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.ledger.SetReorderLevel(c.Request.Context(), location, itemID, req.ReorderLevel); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "reorder level updated")
}

// GetMovementHistory handles GET /items/:itemId/movements.
func (h *StockHandler) GetMovementHistory(c *gin.Context) {
	itemID, err := id.Parse(c.Param("itemId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid itemId format"))
		return
	}

	filter := ledger.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}
	if v := c.Query("recordType"); v != "" {
		rt := entity.RecordType(v)
		if rt != entity.RecordTypeReceipt && rt != entity.RecordTypeExpense {
			h.Error(c, apperror.NewValidation("unknown record type").WithDetail("recordType", v))
			return
		}
		filter.RecordType = &rt
	}
	if v := c.Query("locationType"); v != "" {
		locType := entity.LocationType(v)
		if !locType.IsValid() {
			h.Error(c, apperror.NewValidation("unknown location type"))
			return
		}
		locationID, err := id.Parse(c.Query("locationId"))
		if err != nil {
			h.Error(c, apperror.NewValidation("locationId is required with locationType"))
			return
		}
		ref := entity.NewLocationRef(locType, locationID)
		filter.Location = &ref
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

	movements, err := h.ledger.GetMovementHistory(c.Request.Context(), itemID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      movements,
		TotalCount: int64(len(movements)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}
