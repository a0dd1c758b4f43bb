package models

import (
	"log"

	"github.com/greenstem/pos_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Vendor{}, &User{}, &Location{},
		&ProductCategory{}, &Product{}, &Image{},
		&Supplier{}, &Reason{},
		&StockLevel{}, &StockAdjustment{}, &StockLevelDailyBalance{},
		&PurchaseOrder{}, &PurchaseOrderItem{},
		&PubSubMessageRecord{}, &IdempotencyKey{},
		&History{},
		&TrackTraceReport{}, &ReconciliationReport{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
