package models

import (
	"context"
	"errors"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockLevel is the quantity of one product at one location. One row per
// (vendor, product, location); created lazily on the first receipt or
// adjustment and mutated only under a row lock inside the adjustment engine
// or the receiving state machine.
type StockLevel struct {
	ID         int    `gorm:"primary_key" json:"id"`
	VendorId   string `gorm:"size:64;not null;uniqueIndex:uniq_stock_level,priority:1" json:"vendor_id"`
	ProductId  int    `gorm:"not null;index;uniqueIndex:uniq_stock_level,priority:2" json:"product_id"`
	LocationId int    `gorm:"not null;index;uniqueIndex:uniq_stock_level,priority:3" json:"location_id"`
	// QuantityOnHand never goes below zero; an adjustment that would do so is
	// rejected, not clamped.
	QuantityOnHand decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_on_hand"`
	CommittedQty   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"committed_qty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// AvailableQty is on-hand minus held/reserved units.
func (s StockLevel) AvailableQty() decimal.Decimal {
	return s.QuantityOnHand.Sub(s.CommittedQty)
}

// FirstOrCreateStockLevel locks (FOR UPDATE) the stock level row for one
// (product, location), creating it with zero quantity when absent. The lock is
// held until the caller's transaction commits or rolls back, which is what
// serializes concurrent adjustments to the same row. Must be called inside a
// transaction; the caller owns rollback.
func FirstOrCreateStockLevel(tx *gorm.DB, vendorId string, productId int, locationId int) (*StockLevel, bool, error) {
	isNew := false
	stockLevel := StockLevel{
		VendorId:   vendorId,
		ProductId:  productId,
		LocationId: locationId,
	}
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vendor_id = ? AND product_id = ? AND location_id = ?", vendorId, productId, locationId).
		FirstOrCreate(&stockLevel)
	if result.Error != nil {
		return nil, isNew, WrapStorageError("lock stock level", result.Error)
	}
	if result.RowsAffected == 1 {
		isNew = true
	}
	return &stockLevel, isNew, nil
}

// applyStockLevelDelta applies a relative quantity change to an already-locked
// row. The SQL is relative on purpose: combined with the row lock it makes
// concurrent same-row adjustments apply in commit order with no lost update.
func applyStockLevelDelta(tx *gorm.DB, stockLevelId int, delta decimal.Decimal) error {
	err := tx.Exec("UPDATE stock_levels SET quantity_on_hand = quantity_on_hand + ? WHERE id = ?", delta, stockLevelId).Error
	if err != nil {
		return WrapStorageError("apply stock level delta", err)
	}
	return nil
}

// SetStockLevelQuantity rewrites one row's on-hand quantity outright.
// Rebuild-only: normal mutations go through applyStockLevelDelta under the
// row lock.
func SetStockLevelQuantity(tx *gorm.DB, stockLevelId int, qty decimal.Decimal) error {
	err := tx.Exec("UPDATE stock_levels SET quantity_on_hand = ? WHERE id = ?", qty, stockLevelId).Error
	if err != nil {
		return WrapStorageError("set stock level quantity", err)
	}
	return nil
}

// RecomputeProductTotalStock is the exported entry used by the rebuild CLI.
func RecomputeProductTotalStock(tx *gorm.DB, vendorId string, productId int) (decimal.Decimal, error) {
	return recomputeProductTotalStock(tx, vendorId, productId)
}

// recomputeProductTotalStock rewrites the denormalized per-product aggregate
// from the stock level rows. Runs inside the same transaction as the
// per-location write, so readers never observe a stale aggregate.
func recomputeProductTotalStock(tx *gorm.DB, vendorId string, productId int) (decimal.Decimal, error) {
	err := tx.Exec(`UPDATE products
		SET total_stock = (SELECT COALESCE(SUM(quantity_on_hand), 0) FROM stock_levels WHERE vendor_id = ? AND product_id = ?)
		WHERE vendor_id = ? AND id = ?`,
		vendorId, productId, vendorId, productId).Error
	if err != nil {
		return decimal.Zero, WrapStorageError("recompute product total stock", err)
	}
	var total decimal.Decimal
	err = tx.Model(&Product{}).
		Select("total_stock").
		Where("vendor_id = ? AND id = ?", vendorId, productId).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, WrapStorageError("read product total stock", err)
	}
	return total, nil
}

// GetProductStock computes the aggregate on-hand quantity for a product
// across all locations at read time.
func GetProductStock(ctx context.Context, productId int) (decimal.Decimal, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return decimal.Zero, errors.New("vendor id is required")
	}

	var stockInHand decimal.Decimal
	db := config.GetDB()
	err := db.WithContext(ctx).
		Model(&StockLevel{}).
		Select("COALESCE(SUM(quantity_on_hand), 0)").
		Where("vendor_id = ?", vendorId).
		Where("product_id = ?", productId).
		Scan(&stockInHand).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return stockInHand, nil
}

func ListStockLevels(ctx context.Context, productId *int, locationId *int) ([]*StockLevel, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	var results []*StockLevel

	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
	if productId != nil && *productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *productId)
	}
	if locationId != nil && *locationId > 0 {
		dbCtx = dbCtx.Where("location_id = ?", *locationId)
	}
	// db query
	err := dbCtx.Order("product_id, location_id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// StockOnHandRow is one line of the on-hand snapshot (API + XLSX export).
type StockOnHandRow struct {
	ProductId      int             `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Sku            string          `json:"sku"`
	Unit           ProductUnit     `json:"unit"`
	LocationId     int             `json:"location_id"`
	LocationName   string          `json:"location_name"`
	QuantityOnHand decimal.Decimal `json:"quantity_on_hand"`
	CommittedQty   decimal.Decimal `json:"committed_qty"`
	AvailableQty   decimal.Decimal `json:"available_qty"`
}

func GetStockOnHand(ctx context.Context, locationId *int) ([]*StockOnHandRow, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	var rows []*StockOnHandRow

	dbCtx := db.WithContext(ctx).
		Model(&StockLevel{}).
		Select(`stock_levels.product_id,
			products.name AS product_name,
			products.sku,
			products.unit,
			stock_levels.location_id,
			locations.name AS location_name,
			stock_levels.quantity_on_hand,
			stock_levels.committed_qty,
			stock_levels.quantity_on_hand - stock_levels.committed_qty AS available_qty`).
		Joins("JOIN products ON products.id = stock_levels.product_id AND products.vendor_id = stock_levels.vendor_id").
		Joins("JOIN locations ON locations.id = stock_levels.location_id AND locations.vendor_id = stock_levels.vendor_id").
		Where("stock_levels.vendor_id = ?", vendorId)
	if locationId != nil && *locationId > 0 {
		dbCtx = dbCtx.Where("stock_levels.location_id = ?", *locationId)
	}
	err := dbCtx.Order("products.name, locations.name").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
