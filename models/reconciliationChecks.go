package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
	"github.com/sirupsen/logrus"
)

// RunStockReconciliation writes mismatch rows to reconciliation_reports and
// returns how many it found. This is intended to be run on a schedule
// (nightly) or via an admin trigger; the CLI exits non-zero on drift.
//
// Three checks:
//  1. stock level quantity vs the sum of its adjustment ledger
//  2. product aggregate vs the sum of its stock level rows
//  3. any stock level below zero (should be impossible)
func RunStockReconciliation(ctx context.Context, vendorId string) (correlationId string, mismatches int, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := config.GetDB()
	if db == nil {
		return "", 0, fmt.Errorf("db is nil")
	}
	logger := config.GetLogger()

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	now := time.Now().UTC()

	// 1) Stock level vs sum(stock_adjustments.quantity_change)
	type levelMismatch struct {
		StockLevelId int
		ExpectedQty  string
		ActualQty    string
	}
	var levelMismatches []levelMismatch
	if err := db.WithContext(ctx).Raw(`
		SELECT
			sl.id AS stock_level_id,
			CAST(sl.quantity_on_hand AS CHAR) AS expected_qty,
			CAST(COALESCE(SUM(sa.quantity_change), 0) AS CHAR) AS actual_qty
		FROM stock_levels sl
		LEFT JOIN stock_adjustments sa
		  ON sa.vendor_id = sl.vendor_id
		 AND sa.product_id = sl.product_id
		 AND sa.location_id = sl.location_id
		WHERE sl.vendor_id = ?
		GROUP BY sl.id
		HAVING ROUND(sl.quantity_on_hand, 4) <> ROUND(COALESCE(SUM(sa.quantity_change), 0), 4)
	`, vendorId).Scan(&levelMismatches).Error; err != nil {
		return cid, 0, err
	}
	for _, m := range levelMismatches {
		_ = db.WithContext(ctx).Create(&ReconciliationReport{
			VendorId:      vendorId,
			CheckType:     "STOCK_LEVEL",
			EntityType:    "StockLevel",
			EntityId:      m.StockLevelId,
			Details:       fmt.Sprintf("quantity_on_hand=%s != sum(stock_adjustments.quantity_change)=%s", m.ExpectedQty, m.ActualQty),
			CorrelationId: cid,
			CreatedAt:     now,
		}).Error
	}

	// 2) Product aggregate vs sum(stock_levels.quantity_on_hand)
	type productMismatch struct {
		ProductId   int
		ExpectedQty string
		ActualQty   string
	}
	var productMismatches []productMismatch
	if err := db.WithContext(ctx).Raw(`
		SELECT
			p.id AS product_id,
			CAST(p.total_stock AS CHAR) AS expected_qty,
			CAST(COALESCE(SUM(sl.quantity_on_hand), 0) AS CHAR) AS actual_qty
		FROM products p
		LEFT JOIN stock_levels sl
		  ON sl.vendor_id = p.vendor_id
		 AND sl.product_id = p.id
		WHERE p.vendor_id = ?
		GROUP BY p.id
		HAVING ROUND(p.total_stock, 4) <> ROUND(COALESCE(SUM(sl.quantity_on_hand), 0), 4)
	`, vendorId).Scan(&productMismatches).Error; err != nil {
		return cid, 0, err
	}
	for _, m := range productMismatches {
		_ = db.WithContext(ctx).Create(&ReconciliationReport{
			VendorId:      vendorId,
			CheckType:     "PRODUCT_TOTAL",
			EntityType:    "Product",
			EntityId:      m.ProductId,
			Details:       fmt.Sprintf("total_stock=%s != sum(stock_levels.quantity_on_hand)=%s", m.ExpectedQty, m.ActualQty),
			CorrelationId: cid,
			CreatedAt:     now,
		}).Error
	}

	// 3) Negative on-hand (the adjustment engine rejects these; a row here
	// means something bypassed it).
	type negativeRow struct {
		StockLevelId int
		Qty          string
	}
	var negatives []negativeRow
	if err := db.WithContext(ctx).Raw(`
		SELECT id AS stock_level_id, CAST(quantity_on_hand AS CHAR) AS qty
		FROM stock_levels
		WHERE vendor_id = ? AND quantity_on_hand < 0
	`, vendorId).Scan(&negatives).Error; err != nil {
		return cid, 0, err
	}
	for _, n := range negatives {
		_ = db.WithContext(ctx).Create(&ReconciliationReport{
			VendorId:      vendorId,
			CheckType:     "NEGATIVE_STOCK",
			EntityType:    "StockLevel",
			EntityId:      n.StockLevelId,
			Details:       fmt.Sprintf("quantity_on_hand=%s is negative", n.Qty),
			CorrelationId: cid,
			CreatedAt:     now,
		}).Error
	}

	total := len(levelMismatches) + len(productMismatches) + len(negatives)
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":              "ReconciliationChecks",
			"vendor_id":          vendorId,
			"correlation_id":     cid,
			"level_mismatches":   len(levelMismatches),
			"product_mismatches": len(productMismatches),
			"negative_levels":    len(negatives),
		}).Info("stock reconciliation checks completed")
	}
	return cid, total, nil
}
