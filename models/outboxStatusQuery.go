package models

import (
	"context"
	"errors"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
)

func GetOutboxStatus(ctx context.Context, referenceType EventReferenceType, referenceId int) (*OutboxStatus, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	var rec PubSubMessageRecord
	if err := db.WithContext(ctx).
		Where("vendor_id = ? AND reference_type = ? AND reference_id = ?", vendorId, referenceType, referenceId).
		Order("id DESC").
		First(&rec).Error; err != nil {
		return nil, err
	}

	// The record itself only tracks is_processed; the failure detail rides on
	// last_process_error until the push worker succeeds.
	postingStatus := OutboxPostingStatusPending
	if rec.IsProcessed {
		postingStatus = OutboxPostingStatusSucceeded
	} else if rec.LastProcessError != nil && *rec.LastProcessError != "" {
		postingStatus = OutboxPostingStatusFailed
	}

	return &OutboxStatus{
		RecordId:         rec.ID,
		ReferenceType:    rec.ReferenceType,
		ReferenceId:      rec.ReferenceId,
		PublishStatus:    rec.PublishStatus,
		ProcessingStatus: postingStatus,
		IsProcessed:      rec.IsProcessed,
		PublishAttempts:  rec.PublishAttempts,
		NextAttemptAt:    rec.NextAttemptAt,
		LastPublishError: rec.LastPublishError,
		LastProcessError: rec.LastProcessError,
		CreatedAt:        rec.CreatedAt,
		PublishedAt:      rec.PublishedAt,
		ProcessedAt:      rec.ProcessedAt,
	}, nil
}
