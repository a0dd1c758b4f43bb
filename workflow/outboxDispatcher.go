package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDispatcher drains the transactional outbox into Pub/Sub. Several
// replicas may run at once: rows are claimed under FOR UPDATE SKIP LOCKED, so
// each eligible row is published by exactly one dispatcher, and a stale
// PROCESSING claim (crashed replica) is reclaimed after LockTimeout.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

// Run polls until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) {
	if d.DB == nil {
		return
	}
	now := time.Now().UTC()

	claimed, err := d.claimBatch(ctx, now)
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, rec := range claimed {
		// rows marked DEAD inside the claim transaction are terminal
		if rec.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		msg := models.ConvertToPubSubMessage(rec)
		pubID, pubErr := config.PublishInventoryWorkflowWithResult(ctx, rec.VendorId, msg)
		if pubErr != nil {
			d.markPublishFailed(ctx, rec, pubErr)
			continue
		}
		d.markPublishSent(ctx, rec.ID, pubID, now)
	}
}

// claimBatch selects eligible rows and claims them in one transaction.
// Eligible: PENDING/FAILED whose retry time has arrived, or PROCESSING with a
// lock older than LockTimeout. Rows past MaxAttempts flip to DEAD instead of
// being claimed.
func (d *OutboxDispatcher) claimBatch(ctx context.Context, now time.Time) ([]models.PubSubMessageRecord, error) {
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.PubSubMessageRecord
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = 0").
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}

		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				reason := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := d.updateRecord(tx, claimed[i].ID, map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &reason,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}); err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].PublishAttempts++
			claimed[i].LastPublishError = nil
			if err := d.updateRecord(tx, claimed[i].ID, map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          &d.DispatcherID,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (d *OutboxDispatcher) updateRecord(tx *gorm.DB, recordID int, updates map[string]interface{}) error {
	return tx.Model(&models.PubSubMessageRecord{}).Where("id = ?", recordID).Updates(updates).Error
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, recordID int, pubsubMsgID string, now time.Time) {
	_ = d.updateRecord(d.DB.WithContext(ctx), recordID, map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusSent,
		"published_at":       &now,
		"pub_sub_message_id": &pubsubMsgID,
		"locked_at":          nil,
		"locked_by":          nil,
		"next_attempt_at":    nil,
	})
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, rec models.PubSubMessageRecord, pubErr error) {
	db := d.DB.WithContext(ctx)
	now := time.Now().UTC()
	reason := pubErr.Error()

	if d.MaxAttempts > 0 && rec.PublishAttempts >= d.MaxAttempts {
		_ = d.updateRecord(db, rec.ID, map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusDead,
			"last_publish_error": &reason,
			"next_attempt_at":    nil,
			"locked_at":          nil,
			"locked_by":          nil,
		})
		if d.Logger != nil {
			config.LogError(d.Logger, "outboxDispatcher.go", "markPublishFailed",
				"moved to DEAD after max attempts", rec.ID, pubErr)
		}
		return
	}

	next := now.Add(d.retryBackoff(rec.PublishAttempts))
	_ = d.updateRecord(db, rec.ID, map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusFailed,
		"last_publish_error": &reason,
		"next_attempt_at":    &next,
		"locked_at":          nil,
		"locked_by":          nil,
	})
	if d.Logger != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "markPublishFailed",
			fmt.Sprintf("publish failed, retry at %s", next.Format(time.RFC3339Nano)), rec.ID, pubErr)
	}
}

func (d *OutboxDispatcher) retryBackoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return backoff
}
