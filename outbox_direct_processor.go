package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
	"github.com/greenstem/pos_backend/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDirectProcessor processes unhandled outbox records without Pub/Sub.
// This is intended for local/dev environments where Pub/Sub is not configured.
type OutboxDirectProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	Tracer    trace.Tracer
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewOutboxDirectProcessor(db *gorm.DB, logger *logrus.Logger) *OutboxDirectProcessor {
	return &OutboxDirectProcessor{
		DB:        db,
		Logger:    logger,
		Tracer:    tracer,
		WorkerID:  "direct-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

func shouldRunDirectOutboxProcessor() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv("OUTBOX_DIRECT_PROCESSING")))
	if val == "true" {
		return true
	}
	if val == "false" {
		return false
	}
	// Default: run as a safety-net even when Pub/Sub is configured.
	//
	// Why:
	// - In some environments Pub/Sub settings may exist but delivery/permissions can be misconfigured,
	//   leaving outbox rows stuck in PENDING/FAILED/SENT without compliance filings ever happening.
	// - Running the direct processor as a background "backup worker" ensures events are eventually processed.
	// - Processing is protected by DB idempotency keys, so at-least-once delivery is safe.
	//
	// To disable in production, explicitly set OUTBOX_DIRECT_PROCESSING=false.
	return true
}

func (p *OutboxDirectProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *OutboxDirectProcessor) processOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.PubSubMessageRecord
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = 0").
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &p.WorkerID
			if err := tx.Model(&models.PubSubMessageRecord{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": claimed[i].LockedAt,
					"locked_by": claimed[i].LockedBy,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, rec := range claimed {
		msg := models.ConvertToPubSubMessage(rec)
		procCtx := utils.SetVendorIdInContext(ctx, rec.VendorId)
		procCtx = utils.SetUserIdInContext(procCtx, 0)
		procCtx = utils.SetUserNameInContext(procCtx, "System")
		procCtx = utils.SetCorrelationIdInContext(procCtx, rec.CorrelationId)
		var span trace.Span
		if p.Tracer != nil {
			procCtx, span = p.Tracer.Start(procCtx, "outbox.direct.process")
		}

		err := workflow.ProcessMessage(procCtx, p.Logger, msg)
		if span != nil {
			span.End()
		}
		if err != nil {
			errMsg := err.Error()
			_ = p.DB.WithContext(ctx).Model(&models.PubSubMessageRecord{}).
				Where("id = ?", rec.ID).
				Updates(map[string]interface{}{
					"last_process_error": &errMsg,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error
			if p.Logger != nil {
				p.Logger.WithFields(logrus.Fields{
					"field":          "OutboxDirectProcessor",
					"vendor_id":      rec.VendorId,
					"reference_type": rec.ReferenceType,
					"reference_id":   rec.ReferenceId,
					"record_id":      rec.ID,
				}).Error("direct processing failed: " + errMsg)
			}
			continue
		}

		_ = p.DB.WithContext(ctx).Model(&models.PubSubMessageRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"locked_at": nil,
				"locked_by": nil,
			}).Error
	}
}
