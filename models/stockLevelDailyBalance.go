package models

import (
	"context"
	"errors"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockLevelDailyBalance is the per-day movement and closing quantity of one
// (vendor, location, product). Upserted inside the same transaction as every
// stock write, so the history report never drifts from the ledger.
type StockLevelDailyBalance struct {
	VendorId    string          `gorm:"primaryKey;size:64" json:"vendor_id"`
	LocationId  int             `gorm:"primaryKey" json:"location_id"`
	ProductId   int             `gorm:"primaryKey" json:"product_id"`
	BalanceDate time.Time       `gorm:"primaryKey" json:"balance_date"`
	QtyIn       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty_in"`
	QtyOut      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty_out"`
	ClosingQty  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"closing_qty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertStockLevelDailyBalance folds one signed quantity change into the day
// bucket for (vendor, location, product). qty_in/qty_out accumulate the split
// movement; closing_qty is overwritten with the post-change on-hand, which is
// correct because callers hold the stock level row lock while this runs.
func UpsertStockLevelDailyBalance(tx *gorm.DB, vendorId string, locationId int, productId int, date time.Time, change decimal.Decimal, closing decimal.Decimal) error {
	timezone := vendorTimezone(tx, vendorId)
	dateOnly, err := utils.ConvertToDate(date, timezone)
	if err != nil {
		return err
	}

	qtyIn := decimal.Zero
	qtyOut := decimal.Zero
	if change.IsPositive() {
		qtyIn = change
	} else {
		qtyOut = change.Neg()
	}

	err = tx.Exec(`
        INSERT INTO stock_level_daily_balances (vendor_id, location_id, product_id, balance_date, qty_in, qty_out, closing_qty)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE qty_in = qty_in + VALUES(qty_in), qty_out = qty_out + VALUES(qty_out), closing_qty = VALUES(closing_qty)
    `, vendorId, locationId, productId, dateOnly, qtyIn, qtyOut, closing).Error
	if err != nil {
		return WrapStorageError("upsert daily balance", err)
	}
	return nil
}

// vendorTimezone reads the vendor's timezone without touching redis; the
// ConvertToDate default applies when the row is missing or blank.
func vendorTimezone(tx *gorm.DB, vendorId string) string {
	var timezone string
	if err := tx.Model(&Vendor{}).Select("timezone").Where("id = ?", vendorId).Scan(&timezone).Error; err != nil {
		return ""
	}
	return timezone
}

func GetStockLevelDailyBalances(ctx context.Context, productId int, locationId *int, fromDate *MyDateString, toDate *MyDateString) ([]*StockLevelDailyBalance, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	if productId <= 0 {
		return nil, &ValidationError{Field: "product_id", Message: "product id is required"}
	}

	vendor, err := GetVendorById(ctx, vendorId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Where("vendor_id = ?", vendorId).
		Where("product_id = ?", productId)
	if locationId != nil && *locationId > 0 {
		dbCtx = dbCtx.Where("location_id = ?", *locationId)
	}
	if fromDate != nil {
		if err := fromDate.StartOfDayUTCTime(vendor.Timezone); err != nil {
			return nil, &ValidationError{Field: "from_date", Message: err.Error()}
		}
		dbCtx = dbCtx.Where("balance_date >= ?", time.Time(*fromDate))
	}
	if toDate != nil {
		if err := toDate.EndOfDayUTCTime(vendor.Timezone); err != nil {
			return nil, &ValidationError{Field: "to_date", Message: err.Error()}
		}
		dbCtx = dbCtx.Where("balance_date <= ?", time.Time(*toDate))
	}

	var results []*StockLevelDailyBalance
	err = dbCtx.Order("balance_date, location_id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
