package workflow

import (
	"fmt"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func acquireStockRebuildLock(tx *gorm.DB, vendorId string, productId int, locationId int) error {
	lockName := fmt.Sprintf("stock_rebuild:%s:%d:%d", vendorId, productId, locationId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire rebuild lock for vendor_id=%s product_id=%d location_id=%d",
			vendorId, productId, locationId)
	}
	return nil
}

func releaseStockRebuildLock(tx *gorm.DB, vendorId string, productId int, locationId int) {
	lockName := fmt.Sprintf("stock_rebuild:%s:%d:%d", vendorId, productId, locationId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

// RebuildStockLevelFromLedger replays the adjustment ledger for a single
// (product, location) and rewrites the stored quantity and the product
// aggregate from it. The ledger is append-only and carries every signed
// change, so its sum IS the on-hand quantity; any divergence in the stored
// row is drift from a manual edit or a partial migration.
func RebuildStockLevelFromLedger(
	tx *gorm.DB,
	logger *logrus.Logger,
	vendorId string,
	productId int,
	locationId int,
) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, fmt.Errorf("rebuild stock level: tx is nil")
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	if vendorId == "" || productId <= 0 || locationId <= 0 {
		return decimal.Zero, fmt.Errorf("rebuild stock level: invalid scope")
	}

	if err := acquireStockRebuildLock(tx, vendorId, productId, locationId); err != nil {
		return decimal.Zero, err
	}
	defer releaseStockRebuildLock(tx, vendorId, productId, locationId)

	var ledgerQty decimal.Decimal
	if err := tx.Raw(`
		SELECT COALESCE(SUM(quantity_change), 0)
		FROM stock_adjustments
		WHERE vendor_id = ? AND product_id = ? AND location_id = ?
	`, vendorId, productId, locationId).Scan(&ledgerQty).Error; err != nil {
		return decimal.Zero, err
	}

	level, _, err := models.FirstOrCreateStockLevel(tx, vendorId, productId, locationId)
	if err != nil {
		return decimal.Zero, err
	}
	storedQty := level.QuantityOnHand

	if err := models.SetStockLevelQuantity(tx, level.ID, ledgerQty); err != nil {
		return decimal.Zero, err
	}
	total, err := models.RecomputeProductTotalStock(tx, vendorId, productId)
	if err != nil {
		return decimal.Zero, err
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"vendor_id":   vendorId,
			"product_id":  productId,
			"location_id": locationId,
			"stored_qty":  storedQty.String(),
			"ledger_qty":  ledgerQty.String(),
			"total_stock": total.String(),
			"drifted":     !storedQty.Equal(ledgerQty),
		}).Info("stock.rebuild.done")
	}
	return ledgerQty, nil
}
