package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireVendorPostingLock serializes event processing per vendor across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same *gorm.DB that will do the processing transaction.
func AcquireVendorPostingLock(tx *gorm.DB, vendorId string) error {
	lockName := fmt.Sprintf("posting:%s", vendorId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for vendor_id=%s", vendorId)
	}
	return nil
}

func ReleaseVendorPostingLock(tx *gorm.DB, vendorId string) {
	lockName := fmt.Sprintf("posting:%s", vendorId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
