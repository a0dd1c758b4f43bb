package models

import (
	"context"
	"time"

	"github.com/greenstem/pos_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TrackTraceStatusPending   = "pending"
	TrackTraceStatusSubmitted = "submitted"
	TrackTraceStatusFailed    = "failed"
	TrackTraceStatusDead      = "dead"
)

// TrackTraceReport records one inventory event filed with the state
// track-and-trace API. One row per (vendor, reference); Pub/Sub redeliveries
// retry the same row instead of filing duplicates.
type TrackTraceReport struct {
	ID            int                `gorm:"primary_key" json:"id"`
	VendorId      string             `gorm:"size:64;not null;uniqueIndex:uniq_tracktrace_ref,priority:1" json:"vendor_id"`
	Provider      string             `gorm:"size:50;not null" json:"provider"`
	License       string             `gorm:"size:100" json:"license"`
	ReferenceType EventReferenceType `gorm:"type:enum('ADJ','PO','STK','PRD');uniqueIndex:uniq_tracktrace_ref,priority:2" json:"reference_type"`
	ReferenceId   int                `gorm:"not null;uniqueIndex:uniq_tracktrace_ref,priority:3" json:"reference_id"`
	Status        string             `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ExternalId    *string            `gorm:"size:128" json:"external_id"`
	Attempts      int                `gorm:"not null;default:0" json:"attempts"`
	LastError     *string            `gorm:"type:text" json:"last_error"`
	SubmittedAt   *time.Time         `json:"submitted_at"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// FirstOrCreateTrackTraceReport returns the report row for one inventory
// event, creating a pending row on first delivery.
func FirstOrCreateTrackTraceReport(ctx context.Context, vendorId string, provider string, license string, refType EventReferenceType, refId int) (*TrackTraceReport, error) {
	db := config.GetDB()
	report := TrackTraceReport{
		VendorId:      vendorId,
		Provider:      provider,
		License:       license,
		ReferenceType: refType,
		ReferenceId:   refId,
		Status:        TrackTraceStatusPending,
	}
	err := db.WithContext(ctx).
		Where("vendor_id = ? AND reference_type = ? AND reference_id = ?", vendorId, refType, refId).
		FirstOrCreate(&report).Error
	if err != nil {
		return nil, WrapStorageError("upsert track trace report", err)
	}
	return &report, nil
}

func (report *TrackTraceReport) MarkSubmitted(ctx context.Context, externalId string) error {
	db := config.GetDB()
	now := time.Now().UTC()
	err := db.WithContext(ctx).Model(report).Updates(map[string]interface{}{
		"Status":      TrackTraceStatusSubmitted,
		"ExternalId":  externalId,
		"Attempts":    gorm.Expr("attempts + 1"),
		"LastError":   nil,
		"SubmittedAt": now,
	}).Error
	if err != nil {
		return WrapStorageError("mark track trace submitted", err)
	}
	return nil
}

func (report *TrackTraceReport) MarkFailed(ctx context.Context, cause error, maxAttempts int) error {
	db := config.GetDB()
	status := TrackTraceStatusFailed
	if report.Attempts+1 >= maxAttempts {
		status = TrackTraceStatusDead
	}
	message := cause.Error()
	err := db.WithContext(ctx).Model(report).Updates(map[string]interface{}{
		"Status":    status,
		"Attempts":  gorm.Expr("attempts + 1"),
		"LastError": message,
	}).Error
	if err != nil {
		return WrapStorageError("mark track trace failed", err)
	}
	report.Status = status
	return nil
}

// ListTrackTraceReports pages the newest report rows for the vendor's
// compliance dashboard, optionally filtered by status.
func ListTrackTraceReports(ctx context.Context, vendorId string, status *string, limit int) ([]TrackTraceReport, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var reports []TrackTraceReport
	err := dbCtx.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}).
		Limit(limit).
		Find(&reports).Error
	if err != nil {
		return nil, WrapStorageError("list track trace reports", err)
	}
	return reports, nil
}
