package workflow

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func reorderThreshold() decimal.Decimal {
	if v := strings.TrimSpace(os.Getenv("REORDER_THRESHOLD")); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.NewFromInt(10)
}

// CheckLowStock warns when an adjustment leaves the product's aggregate below
// the reorder threshold. Log-only: ordering decisions stay with the humans.
func CheckLowStock(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	if msg.Action != string(models.PubSubMessageActionCreate) {
		return nil
	}

	var adjustment models.StockAdjustment
	if err := json.Unmarshal(msg.NewObj, &adjustment); err != nil {
		config.LogError(logger, "lowStock.go", "CheckLowStock", "Unmarshal msg.NewObj", msg.NewObj, err)
		return err
	}
	if adjustment.QuantityChange.IsPositive() {
		return nil
	}

	var product models.Product
	err := tx.Select("id", "name", "sku", "total_stock").
		Where("id = ? AND vendor_id = ?", adjustment.ProductId, msg.VendorId).
		First(&product).Error
	if err != nil {
		config.LogError(logger, "lowStock.go", "CheckLowStock", "GetProduct", adjustment.ProductId, err)
		return err
	}

	threshold := reorderThreshold()
	if product.TotalStock.LessThan(threshold) {
		logger.WithFields(logrus.Fields{
			"vendor_id":   msg.VendorId,
			"product_id":  product.ID,
			"sku":         product.Sku,
			"total_stock": product.TotalStock.String(),
			"threshold":   threshold.String(),
		}).Warn("product stock below reorder threshold: " + product.Name)
	}
	return nil
}
