// Package main provides a CLI tool for seeding the database with demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"medstock/internal/core/entity"
	"medstock/internal/core/types"
	"medstock/internal/domain/batch"
	"medstock/internal/domain/catalogs/item"
	"medstock/internal/domain/catalogs/location"
	"medstock/internal/domain/catalogs/supplier"
	"medstock/internal/domain/goodsreceipt"
	"medstock/internal/domain/ledger"
	"medstock/internal/infrastructure/storage/postgres"
	"medstock/internal/infrastructure/storage/postgres/catalog_repo"
	"medstock/internal/infrastructure/storage/postgres/document_repo"
	"medstock/internal/infrastructure/storage/postgres/register_repo"
	"medstock/pkg/logger"
	"medstock/pkg/numerator"
)

func main() {
	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	num := numerator.New(pool)

	itemService := item.NewService(catalog_repo.NewItemRepo(txManager), txManager, num)
	locationService := location.NewService(catalog_repo.NewLocationRepo(txManager), txManager, num)
	supplierService := supplier.NewService(catalog_repo.NewSupplierRepo(txManager), txManager, num)

	ledgerService := ledger.NewService(register_repo.NewLedgerRepo(txManager), txManager)
	batchService := batch.NewService(register_repo.NewBatchRepo(txManager), txManager)
	receiptService := goodsreceipt.NewService(
		document_repo.NewGoodsReceiptRepo(txManager),
		ledgerService, batchService, itemService, locationService,
		txManager, num)

	warehouse := location.New("WH-CENTRAL", "Central Warehouse", entity.LocationWarehouse)
	pharmacy := location.New("FAC-PHARM", "Main Pharmacy", entity.LocationFacility)
	icu := location.New("FAC-ICU", "Intensive Care Unit", entity.LocationFacility)
	for _, loc := range []*location.Location{warehouse, pharmacy, icu} {
		if err := locationService.Create(ctx, loc); err != nil {
			log.Fatalw("failed to seed location", "code", loc.Code, "error", err)
		}
	}
	log.Info("seeded locations")

	medsupply := supplier.New("SUP-MEDS", "MedSupply Ltd")
	if err := supplierService.Create(ctx, medsupply); err != nil {
		log.Fatalw("failed to seed supplier", "error", err)
	}

	shelfLife := func(months int) *int { return &months }
	paracetamol := item.NewItem("MED-PARA-500", "Paracetamol 500mg", item.CategoryMedicine, "box")
	paracetamol.ShelfLifeMonths = shelfLife(36)
	paracetamol.DefaultReorderLevel = qty(20)

	amoxicillin := item.NewItem("MED-AMOX-250", "Amoxicillin 250mg", item.CategoryMedicine, "box")
	amoxicillin.ShelfLifeMonths = shelfLife(24)
	amoxicillin.DefaultReorderLevel = qty(15)

	gloves := item.NewItem("CON-GLV-M", "Examination Gloves M", item.CategoryConsumable, "box")
	gloves.DefaultReorderLevel = qty(50)

	for _, it := range []*item.Item{paracetamol, amoxicillin, gloves} {
		if err := itemService.Create(ctx, it); err != nil {
			log.Fatalw("failed to seed item", "code", it.Code, "error", err)
		}
	}
	log.Info("seeded items")

	if os.Getenv("SEED_OPENING_STOCK") == "true" {
		expiry := func(months int) *time.Time {
			t := time.Now().UTC().AddDate(0, months, 0)
			return &t
		}
		receipt := &goodsreceipt.GoodsReceipt{
			Date:        time.Now().UTC(),
			WarehouseID: warehouse.ID,
			SupplierID:  &medsupply.ID,
			Reference:   "opening stock",
			Lines: []goodsreceipt.Line{
				{ItemID: paracetamol.ID, BatchNumber: "PARA-2026-01", Quantity: qty(200), ExpiryDate: expiry(30)},
				{ItemID: amoxicillin.ID, BatchNumber: "AMOX-2026-01", Quantity: qty(120), ExpiryDate: expiry(18)},
				{ItemID: gloves.ID, BatchNumber: "GLV-2026-01", Quantity: qty(500)},
			},
		}
		posted, err := receiptService.Post(ctx, receipt)
		if err != nil {
			log.Fatalw("failed to seed opening stock", "error", err)
		}
		log.Infow("seeded opening stock", "receipt", posted.Number)
	}

	log.Info("seeding completed successfully")
}

func qty(n int64) types.Quantity {
	return types.NewQuantityFromInt(n)
}
