package workflow

import (
	"context"
	"strconv"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessMessage handles one inventory event delivered by Pub/Sub. The whole
// handler runs in a single DB transaction guarded by a per-vendor advisory
// lock and the idempotency ledger: a redelivered message either skips (already
// SUCCEEDED) or retries cleanly.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, m config.PubSubMessage) error {
	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		// Enforce strict per-vendor ordering across instances.
		if err := AcquireVendorPostingLock(tx.WithContext(ctx), m.VendorId); err != nil {
			return err
		}
		defer ReleaseVendorPostingLock(tx.WithContext(ctx), m.VendorId)

		handlerName := m.ReferenceType
		messageId := strconv.Itoa(m.ID)

		skip, err := BeginIdempotency(tx.WithContext(ctx), m.VendorId, handlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		// IMPORTANT: do not call tx.Commit()/tx.Rollback() inside db.Transaction.
		// Returning error triggers rollback; returning nil commits.
		if err := processWorkflow(tx.WithContext(ctx), logger, m); err != nil {
			_ = MarkIdempotencyFailed(tx.WithContext(ctx), m.VendorId, handlerName, messageId, err)
			return err
		}
		if err := MarkIdempotencySucceeded(tx.WithContext(ctx), m.VendorId, handlerName, messageId); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Model(&models.PubSubMessageRecord{}).
			Where("id = ?", m.ID).
			Updates(map[string]interface{}{"is_processed": true, "processed_at": &now}).Error; err != nil {
			config.LogError(logger, "mainWorkflow.go", "ProcessMessage", "UpdatePubSubMessageRecord", m.ID, err)
			return err
		}
		return nil
	})
}

func processWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	switch msg.ReferenceType {
	case string(models.EventReferenceTypeStockAdjustment):
		if err := ProcessTrackTraceAdjustment(tx, logger, msg); err != nil {
			return err
		}
		return CheckLowStock(tx, logger, msg)
	case string(models.EventReferenceTypePurchaseOrder):
		return ProcessTrackTraceReceipt(tx, logger, msg)
	}
	return nil
}
