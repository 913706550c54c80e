// Package main is the entry point for the medstock API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medstock/internal/core/security"
	"medstock/internal/domain/batch"
	"medstock/internal/domain/catalogs/item"
	"medstock/internal/domain/catalogs/location"
	"medstock/internal/domain/catalogs/supplier"
	"medstock/internal/domain/dispatch"
	"medstock/internal/domain/fulfillment"
	"medstock/internal/domain/goodsreceipt"
	"medstock/internal/domain/ledger"
	"medstock/internal/domain/requisition"
	v1 "medstock/internal/infrastructure/http/v1"
	"medstock/internal/infrastructure/storage/postgres"
	"medstock/internal/infrastructure/storage/postgres/catalog_repo"
	"medstock/internal/infrastructure/storage/postgres/document_repo"
	"medstock/internal/infrastructure/storage/postgres/register_repo"
	"medstock/pkg/logger"
	"medstock/pkg/numerator"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Info("starting medstock server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	numeratorService := numerator.New(pool)

	// --- Catalogs ---
	itemRepo := catalog_repo.NewItemRepo(txManager)
	locationRepo := catalog_repo.NewLocationRepo(txManager)
	supplierRepo := catalog_repo.NewSupplierRepo(txManager)

	itemService := item.NewService(itemRepo, txManager, numeratorService)
	locationService := location.NewService(locationRepo, txManager, numeratorService)
	supplierService := supplier.NewService(supplierRepo, txManager, numeratorService)

	// --- Stock ---
	ledgerRepo := register_repo.NewLedgerRepo(txManager)
	batchRepo := register_repo.NewBatchRepo(txManager)
	ledgerService := ledger.NewService(ledgerRepo, txManager)
	batchService := batch.NewService(batchRepo, txManager)

	// --- Documents ---
	requisitionRepo := document_repo.NewRequisitionRepo(txManager)
	dispatchRepo := document_repo.NewDispatchRepo(txManager)
	receiptRepo := document_repo.NewGoodsReceiptRepo(txManager)

	requisitionService := requisition.NewService(
		requisitionRepo, txManager, numeratorService, itemService, locationService)
	dispatchService := dispatch.NewService(dispatchRepo)
	receiptService := goodsreceipt.NewService(
		receiptRepo, ledgerService, batchService, itemService, locationService,
		txManager, numeratorService)

	// --- Workflow ---
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}
	notifier := postgres.NewNotifier(pool)

	orchestrator := fulfillment.NewOrchestrator(fulfillment.Config{
		Requisitions:   requisitionRepo,
		Dispatches:     dispatchRepo,
		Ledger:         ledgerService,
		Batches:        batchService,
		TxManager:      txManager,
		Numerator:      numeratorService,
		ApprovePolicy:  security.MustCompilePolicy(getEnv("APPROVE_POLICY", security.DefaultApprovePolicy)),
		DispatchPolicy: security.MustCompilePolicy(getEnv("DISPATCH_POLICY", security.DefaultDispatchPolicy)),
		Notifier:       notifier,
		Auditor:        auditService,
	})

	// --- HTTP ---
	validator := security.NewTokenValidator(
		[]byte(mustEnv("JWT_SECRET")), getEnv("JWT_ISSUER", ""))

	router := v1.NewRouter(v1.RouterConfig{
		Pool:          pool,
		Logger:        log,
		Validator:     validator,
		Items:         itemService,
		Locations:     locationService,
		Suppliers:     supplierService,
		Ledger:        ledgerService,
		Batches:       batchService,
		Requisitions:  requisitionService,
		Dispatches:    dispatchService,
		Receipts:      receiptService,
		Orchestrator:  orchestrator,
		Notifications: notifier,
	})

	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
