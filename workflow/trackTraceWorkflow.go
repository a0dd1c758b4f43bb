package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/tracksync"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	trackTraceClient     *tracksync.Client
	trackTraceClientErr  error
	trackTraceClientOnce sync.Once
)

func getTrackTraceClient(logger *logrus.Logger) (*tracksync.Client, error) {
	trackTraceClientOnce.Do(func() {
		trackTraceClient, trackTraceClientErr = tracksync.NewClient(logger)
	})
	return trackTraceClient, trackTraceClientErr
}

func trackTraceMaxAttempts() int {
	if v := strings.TrimSpace(os.Getenv("TRACKTRACE_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 10
}

func workflowContext(tx *gorm.DB) context.Context {
	if tx != nil && tx.Statement != nil && tx.Statement.Context != nil {
		return tx.Statement.Context
	}
	return context.Background()
}

// ProcessTrackTraceAdjustment files one stock adjustment with the state
// track-and-trace API. Receiving adjustments are skipped here: the purchase
// order event files the whole receipt instead, so each physical movement is
// reported exactly once.
//
// The report row lives outside the message transaction on purpose. A failed
// submission rolls the transaction back for redelivery, but the attempt count
// and last error must survive the rollback or poison events would retry
// forever.
func ProcessTrackTraceAdjustment(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	if !config.TrackTraceSyncEnabled() {
		return nil
	}
	if msg.Action != string(models.PubSubMessageActionCreate) {
		return nil
	}

	var adjustment models.StockAdjustment
	if err := json.Unmarshal(msg.NewObj, &adjustment); err != nil {
		config.LogError(logger, "trackTraceWorkflow.go", "ProcessTrackTraceAdjustment", "Unmarshal msg.NewObj", msg.NewObj, err)
		return err
	}
	if adjustment.ReferenceType != nil && *adjustment.ReferenceType == models.EventReferenceTypePurchaseOrder {
		return nil
	}

	var vendor models.Vendor
	if err := tx.Where("id = ?", msg.VendorId).First(&vendor).Error; err != nil {
		config.LogError(logger, "trackTraceWorkflow.go", "ProcessTrackTraceAdjustment", "GetVendor", msg.VendorId, err)
		return err
	}
	provider, license, err := vendor.GetTrackTrace()
	if err != nil {
		// Vendor does not report to a state system.
		return nil
	}

	ctx := workflowContext(tx)
	report, err := models.FirstOrCreateTrackTraceReport(ctx, msg.VendorId, provider, license,
		models.EventReferenceTypeStockAdjustment, adjustment.ID)
	if err != nil {
		return err
	}
	switch report.Status {
	case models.TrackTraceStatusSubmitted, models.TrackTraceStatusDead:
		return nil
	}

	var product models.Product
	if err := tx.Select("id", "name", "sku", "unit").
		Where("id = ? AND vendor_id = ?", adjustment.ProductId, msg.VendorId).
		First(&product).Error; err != nil {
		config.LogError(logger, "trackTraceWorkflow.go", "ProcessTrackTraceAdjustment", "GetProduct", adjustment.ProductId, err)
		return err
	}

	client, err := getTrackTraceClient(logger)
	if err != nil {
		config.LogError(logger, "trackTraceWorkflow.go", "ProcessTrackTraceAdjustment", "NewClient", nil, err)
		return err
	}

	submission := tracksync.AdjustmentSubmission{
		License:        license,
		Sku:            product.Sku,
		ProductName:    product.Name,
		Quantity:       adjustment.QuantityChange.String(),
		UnitOfMeasure:  string(product.Unit),
		AdjustmentType: string(adjustment.AdjustmentType),
		Reason:         adjustment.Reason,
		AdjustedAt:     adjustment.CreatedAt,
	}
	externalId, err := client.SubmitAdjustment(ctx, provider, submission)
	if err != nil {
		if markErr := report.MarkFailed(ctx, err, trackTraceMaxAttempts()); markErr != nil {
			config.LogError(logger, "trackTraceWorkflow.go", "ProcessTrackTraceAdjustment", "MarkFailed", report.ID, markErr)
		}
		if report.Status == models.TrackTraceStatusDead {
			logger.WithFields(logrus.Fields{
				"vendor_id":     msg.VendorId,
				"adjustment_id": adjustment.ID,
				"attempts":      report.Attempts + 1,
			}).Error("track-trace report moved to dead after max attempts: " + err.Error())
			// Ack/drop: keeping a dead report in the retry loop helps nobody.
			return nil
		}
		return err
	}
	return report.MarkSubmitted(ctx, externalId)
}

// ProcessTrackTraceReceipt files a completed receipt once the purchase order
// reaches received. Partial deliveries wait: the final filing covers every
// line, and the unique report row per order keeps redeliveries from filing
// twice.
func ProcessTrackTraceReceipt(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	if !config.TrackTraceSyncEnabled() {
		return nil
	}
	if msg.Action != string(models.PubSubMessageActionUpdate) {
		return nil
	}

	var order models.PurchaseOrder
	if err := json.Unmarshal(msg.NewObj, &order); err != nil {
		config.LogError(logger, "trackTraceWorkflow.go", "ProcessTrackTraceReceipt", "Unmarshal msg.NewObj", msg.NewObj, err)
		return err
	}
	if order.CurrentStatus != models.PurchaseOrderStatusReceived || order.OrderType != models.OrderTypeInbound {
		return nil
	}
	if len(msg.OldObj) > 0 {
		var oldOrder models.PurchaseOrder
		if err := json.Unmarshal(msg.OldObj, &oldOrder); err == nil &&
			oldOrder.CurrentStatus == models.PurchaseOrderStatusReceived {
			return nil
		}
	}

	var vendor models.Vendor
	if err := tx.Where("id = ?", msg.VendorId).First(&vendor).Error; err != nil {
		config.LogError(logger, "trackTraceWorkflow.go", "ProcessTrackTraceReceipt", "GetVendor", msg.VendorId, err)
		return err
	}
	provider, license, err := vendor.GetTrackTrace()
	if err != nil {
		return nil
	}

	ctx := workflowContext(tx)
	report, err := models.FirstOrCreateTrackTraceReport(ctx, msg.VendorId, provider, license,
		models.EventReferenceTypePurchaseOrder, order.ID)
	if err != nil {
		return err
	}
	switch report.Status {
	case models.TrackTraceStatusSubmitted, models.TrackTraceStatusDead:
		return nil
	}

	productIds := make([]int, 0, len(order.Items))
	for _, item := range order.Items {
		productIds = append(productIds, item.ProductId)
	}
	var products []models.Product
	if err := tx.Select("id", "name", "sku").
		Where("vendor_id = ? AND id IN ?", msg.VendorId, productIds).
		Find(&products).Error; err != nil {
		config.LogError(logger, "trackTraceWorkflow.go", "ProcessTrackTraceReceipt", "GetProducts", productIds, err)
		return err
	}
	productById := make(map[int]models.Product, len(products))
	for _, p := range products {
		productById[p.ID] = p
	}

	receivedAt := order.UpdatedAt
	if order.ReceivedAt != nil {
		receivedAt = *order.ReceivedAt
	}
	submission := tracksync.ReceiptSubmission{
		License:     license,
		OrderNumber: order.OrderNumber,
		ReceivedAt:  receivedAt,
	}
	for _, item := range order.Items {
		condition := string(models.ItemConditionGood)
		if item.Condition != nil {
			condition = string(*item.Condition)
		}
		submission.Lines = append(submission.Lines, tracksync.ReceiptLine{
			Sku:         productById[item.ProductId].Sku,
			ProductName: productById[item.ProductId].Name,
			Quantity:    item.ReceivedQty.String(),
			Condition:   condition,
		})
	}

	client, err := getTrackTraceClient(logger)
	if err != nil {
		config.LogError(logger, "trackTraceWorkflow.go", "ProcessTrackTraceReceipt", "NewClient", nil, err)
		return err
	}
	externalId, err := client.SubmitReceipt(ctx, provider, submission)
	if err != nil {
		if markErr := report.MarkFailed(ctx, err, trackTraceMaxAttempts()); markErr != nil {
			config.LogError(logger, "trackTraceWorkflow.go", "ProcessTrackTraceReceipt", "MarkFailed", report.ID, markErr)
		}
		if report.Status == models.TrackTraceStatusDead {
			logger.WithFields(logrus.Fields{
				"vendor_id":         msg.VendorId,
				"purchase_order_id": order.ID,
				"attempts":          report.Attempts + 1,
			}).Error("track-trace report moved to dead after max attempts: " + err.Error())
			return nil
		}
		return err
	}
	return report.MarkSubmitted(ctx, externalId)
}

// ResubmitTrackTraceReport refiles one failed or dead report from current
// database state instead of the original event payload. Operator entry point:
// it ignores the TRACK_TRACE_SYNC flag and the dead cutoff, since running the
// resubmit tool is the manual intervention the dead status asks for.
func ResubmitTrackTraceReport(ctx context.Context, db *gorm.DB, logger *logrus.Logger, report *models.TrackTraceReport) error {
	client, err := getTrackTraceClient(logger)
	if err != nil {
		return err
	}

	var externalId string
	switch report.ReferenceType {
	case models.EventReferenceTypeStockAdjustment:
		var adjustment models.StockAdjustment
		if err := db.WithContext(ctx).
			Where("id = ? AND vendor_id = ?", report.ReferenceId, report.VendorId).
			First(&adjustment).Error; err != nil {
			return err
		}
		var product models.Product
		if err := db.WithContext(ctx).Select("id", "name", "sku", "unit").
			Where("id = ? AND vendor_id = ?", adjustment.ProductId, report.VendorId).
			First(&product).Error; err != nil {
			return err
		}
		externalId, err = client.SubmitAdjustment(ctx, report.Provider, tracksync.AdjustmentSubmission{
			License:        report.License,
			Sku:            product.Sku,
			ProductName:    product.Name,
			Quantity:       adjustment.QuantityChange.String(),
			UnitOfMeasure:  string(product.Unit),
			AdjustmentType: string(adjustment.AdjustmentType),
			Reason:         adjustment.Reason,
			AdjustedAt:     adjustment.CreatedAt,
		})
	case models.EventReferenceTypePurchaseOrder:
		var order models.PurchaseOrder
		if err := db.WithContext(ctx).Preload("Items").
			Where("id = ? AND vendor_id = ?", report.ReferenceId, report.VendorId).
			First(&order).Error; err != nil {
			return err
		}
		if order.CurrentStatus != models.PurchaseOrderStatusReceived {
			return fmt.Errorf("purchase order %d is %s, only received orders are filed", order.ID, order.CurrentStatus)
		}
		productIds := make([]int, 0, len(order.Items))
		for _, item := range order.Items {
			productIds = append(productIds, item.ProductId)
		}
		var products []models.Product
		if err := db.WithContext(ctx).Select("id", "name", "sku").
			Where("vendor_id = ? AND id IN ?", report.VendorId, productIds).
			Find(&products).Error; err != nil {
			return err
		}
		productById := make(map[int]models.Product, len(products))
		for _, p := range products {
			productById[p.ID] = p
		}
		receivedAt := order.UpdatedAt
		if order.ReceivedAt != nil {
			receivedAt = *order.ReceivedAt
		}
		submission := tracksync.ReceiptSubmission{
			License:     report.License,
			OrderNumber: order.OrderNumber,
			ReceivedAt:  receivedAt,
		}
		for _, item := range order.Items {
			condition := string(models.ItemConditionGood)
			if item.Condition != nil {
				condition = string(*item.Condition)
			}
			submission.Lines = append(submission.Lines, tracksync.ReceiptLine{
				Sku:         productById[item.ProductId].Sku,
				ProductName: productById[item.ProductId].Name,
				Quantity:    item.ReceivedQty.String(),
				Condition:   condition,
			})
		}
		externalId, err = client.SubmitReceipt(ctx, report.Provider, submission)
	default:
		return fmt.Errorf("reference type %s has no track-trace filing", report.ReferenceType)
	}

	if err != nil {
		if markErr := report.MarkFailed(ctx, err, trackTraceMaxAttempts()); markErr != nil {
			config.LogError(logger, "trackTraceWorkflow.go", "ResubmitTrackTraceReport", "MarkFailed", report.ID, markErr)
		}
		return err
	}
	return report.MarkSubmitted(ctx, externalId)
}
