package models

import (
	"context"
	"errors"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
	"gorm.io/gorm"
)

// ReprocessOutbox resets every unprocessed outbox row for a document so the
// dispatcher republishes it. Idempotency keys make the replay safe.
func ReprocessOutbox(ctx context.Context, referenceType EventReferenceType, referenceId int) (*OutboxStatus, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	now := time.Now().UTC()
	db := config.GetDB()

	res := db.WithContext(ctx).
		Model(&PubSubMessageRecord{}).
		Where("vendor_id = ? AND reference_type = ? AND reference_id = ? AND is_processed = 0", vendorId, referenceType, referenceId).
		Updates(map[string]interface{}{
			"locked_at":          nil,
			"locked_by":          nil,
			"publish_status":     OutboxPublishStatusPending,
			"next_attempt_at":    &now,
			"last_publish_error": nil,
			"last_process_error": nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return GetOutboxStatus(ctx, referenceType, referenceId)
}
