package models

import "time"

// Drift detection output (nightly/admin-triggered/CLI).
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	VendorId      string    `gorm:"index;not null" json:"vendor_id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`  // e.g. STOCK_LEVEL, PRODUCT_TOTAL, NEGATIVE_STOCK
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"` // e.g. StockLevel, Product
	EntityId      int       `gorm:"index;not null" json:"entity_id"`           // stock_level_id, product_id, etc
	Details       string    `gorm:"type:text" json:"details"`                  // human-readable mismatch detail
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
