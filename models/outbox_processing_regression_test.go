package models_test

import (
	"strconv"
	"testing"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
	"github.com/greenstem/pos_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// An adjustment must enqueue exactly one outbox row in its own transaction,
// and redelivering that row to the worker must process it exactly once.
func TestOutboxEventProcessedExactlyOnce(t *testing.T) {
	ctx, env := setupInventoryTestEnv(t)
	seedStock(t, ctx, env, 10)

	result, err := models.ApplyAdjustment(ctx, &models.NewStockAdjustment{
		ProductId:      env.ProductId,
		LocationId:     env.LocationId,
		AdjustmentType: models.AdjustmentTypeTheft,
		QuantityChange: decimal.NewFromInt(-2),
		Reason:         "Missing after shift",
		IdempotencyKey: "theft-2026-02-14",
	})
	if err != nil {
		t.Fatalf("ApplyAdjustment: %v", err)
	}

	db := config.GetDB()
	var record models.PubSubMessageRecord
	if err := db.WithContext(ctx).
		Where("vendor_id = ? AND reference_type = ? AND reference_id = ? AND action = ?",
			env.VendorId, models.EventReferenceTypeStockAdjustment, result.AdjustmentId, models.PubSubMessageActionCreate).
		First(&record).Error; err != nil {
		t.Fatalf("expected an outbox row for the adjustment: %v", err)
	}
	if record.IsProcessed {
		t.Fatalf("outbox row must start unprocessed")
	}
	if record.PublishStatus != models.OutboxPublishStatusPending {
		t.Fatalf("outbox row must start PENDING, got %s", record.PublishStatus)
	}
	if record.CorrelationId == "" {
		t.Fatalf("outbox row must carry a correlation id")
	}

	logger := logrus.New()
	msg := models.ConvertToPubSubMessage(record)
	procCtx := utils.SetVendorIdInContext(ctx, record.VendorId)
	procCtx = utils.SetUserIdInContext(procCtx, 0)
	procCtx = utils.SetUserNameInContext(procCtx, "System")

	if err := workflow.ProcessMessage(procCtx, logger, msg); err != nil {
		t.Fatalf("first ProcessMessage: %v", err)
	}

	if err := db.WithContext(ctx).First(&record, record.ID).Error; err != nil {
		t.Fatalf("reload outbox row: %v", err)
	}
	if !record.IsProcessed || record.ProcessedAt == nil {
		t.Fatalf("outbox row must be marked processed")
	}

	var ledger models.IdempotencyKey
	if err := db.WithContext(ctx).
		Where("vendor_id = ? AND handler_name = ?", env.VendorId, string(models.EventReferenceTypeStockAdjustment)).
		First(&ledger).Error; err != nil {
		t.Fatalf("expected an idempotency ledger row: %v", err)
	}
	if ledger.Status != models.IdempotencyStatusSucceeded {
		t.Fatalf("ledger row should be SUCCEEDED, got %s", ledger.Status)
	}

	// Redelivery replays against the ledger and succeeds without side effects.
	if err := workflow.ProcessMessage(procCtx, logger, msg); err != nil {
		t.Fatalf("redelivered ProcessMessage: %v", err)
	}
	var rows []models.IdempotencyKey
	if err := db.WithContext(ctx).
		Where("vendor_id = ? AND message_id = ?", env.VendorId, strconv.Itoa(msg.ID)).
		Find(&rows).Error; err != nil {
		t.Fatalf("load ledger rows for message: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one ledger row for the message, got %d", len(rows))
	}

	// Stock is untouched by event processing; it moved once at apply time.
	if got := onHand(t, ctx, env); !got.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("expected 8 on hand, got %s", got)
	}
}
