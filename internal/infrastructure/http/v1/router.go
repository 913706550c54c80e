// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"medstock/internal/domain/batch"
	"medstock/internal/domain/catalogs/item"
	"medstock/internal/domain/catalogs/location"
	"medstock/internal/domain/catalogs/supplier"
	"medstock/internal/domain/dispatch"
	"medstock/internal/domain/fulfillment"
	"medstock/internal/domain/goodsreceipt"
	"medstock/internal/domain/ledger"
	"medstock/internal/domain/requisition"
	"medstock/internal/infrastructure/http/v1/handlers"
	"medstock/internal/infrastructure/http/v1/middleware"
	"medstock/internal/infrastructure/storage/postgres"
	"medstock/pkg/logger"
)

// Roles known to the API. Admins bypass role checks.
const (
	RoleStorekeeper = "storekeeper"
	RolePharmacist  = "pharmacist"
	RoleRequester   = "requester"
)

// RouterConfig carries the wired services for route registration.
type RouterConfig struct {
	Pool      *postgres.Pool
	Logger    *logger.Logger
	Validator middleware.TokenValidator

	Items     *item.Service
	Locations *location.Service
	Suppliers *supplier.Service

	Ledger       *ledger.Service
	Batches      *batch.Service
	Requisitions *requisition.Service
	Dispatches   *dispatch.Service
	Receipts     *goodsreceipt.Service
	Orchestrator *fulfillment.Orchestrator

	Notifications handlers.NotificationStore
}

// NewRouter builds the Gin engine with the full route table.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Order matters: recovery outermost, error rendering innermost.
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.Validator))

	registerCatalogRoutes(api, cfg)
	registerStockRoutes(api, cfg)
	registerWorkflowRoutes(api, cfg)

	return router
}

func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	base := handlers.NewBaseHandler()
	catalogs := rg.Group("/catalog")

	handlers.NewItemHandler(base, cfg.Items).RegisterRoutes(catalogs.Group("/items"))
	handlers.NewLocationHandler(base, cfg.Locations).RegisterRoutes(catalogs.Group("/locations"))
	handlers.NewSupplierHandler(base, cfg.Suppliers).RegisterRoutes(catalogs.Group("/suppliers"))
}

func registerStockRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	base := handlers.NewBaseHandler()
	stockHandler := handlers.NewStockHandler(base, cfg.Ledger)
	batchHandler := handlers.NewBatchHandler(base, cfg.Batches)

	stock := rg.Group("/stock/:locationType/:locationId")
	{
		stock.GET("", stockHandler.GetStock)
		stock.GET("/low", stockHandler.ListLowStock)
		stock.GET("/items/:itemId", stockHandler.GetBalance)
		stock.PUT("/items/:itemId/reorder-level",
			middleware.RequireRole(RoleStorekeeper), stockHandler.SetReorderLevel)
		stock.GET("/items/:itemId/batches", batchHandler.ListByItem)
		stock.GET("/items/:itemId/plan", batchHandler.Plan)
		stock.GET("/batches/expiring", batchHandler.ListExpiring)
	}

	items := rg.Group("/items/:itemId")
	{
		items.GET("/stock", stockHandler.GetStockByItem)
		items.GET("/movements", stockHandler.GetMovementHistory)
	}

	batches := rg.Group("/batches")
	{
		batches.GET("/:id", batchHandler.Get)
		batches.POST("/recall", middleware.RequireRole(RolePharmacist), batchHandler.Recall)
		batches.POST("/:id/block", middleware.RequireRole(RolePharmacist, RoleStorekeeper), batchHandler.Block)
		batches.POST("/:id/unblock", middleware.RequireRole(RolePharmacist, RoleStorekeeper), batchHandler.Unblock)
	}
}

func registerWorkflowRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	base := handlers.NewBaseHandler()
	reqHandler := handlers.NewRequisitionHandler(base, cfg.Requisitions, cfg.Orchestrator)
	dspHandler := handlers.NewDispatchHandler(base, cfg.Dispatches)
	grnHandler := handlers.NewGoodsReceiptHandler(base, cfg.Receipts)

	requisitions := rg.Group("/requisitions")
	{
		requisitions.POST("", reqHandler.Create)
		requisitions.GET("", reqHandler.List)
		requisitions.GET("/:id", reqHandler.Get)
		requisitions.GET("/by-number/:number", reqHandler.GetByNumber)
		requisitions.GET("/:id/dispatches", dspHandler.ListByRequisition)

		requisitions.POST("/:id/approve",
			middleware.RequireRole(RolePharmacist), reqHandler.Approve)
		requisitions.POST("/:id/reject",
			middleware.RequireRole(RolePharmacist), reqHandler.Reject)
		requisitions.POST("/:id/dispatch",
			middleware.RequireRole(RoleStorekeeper), reqHandler.Dispatch)
		requisitions.POST("/:id/deliver", reqHandler.Deliver)
	}

	dispatches := rg.Group("/dispatches")
	{
		dispatches.GET("", dspHandler.List)
		dispatches.GET("/:id", dspHandler.Get)
	}

	receipts := rg.Group("/goods-receipts")
	{
		receipts.POST("", middleware.RequireRole(RoleStorekeeper), grnHandler.Post)
		receipts.GET("", grnHandler.List)
		receipts.GET("/:id", grnHandler.Get)
	}

	ntfHandler := handlers.NewNotificationHandler(base, cfg.Notifications)
	notifications := rg.Group("/notifications")
	{
		notifications.GET("", ntfHandler.List)
		notifications.POST("/mark-read", ntfHandler.MarkRead)
	}
}
