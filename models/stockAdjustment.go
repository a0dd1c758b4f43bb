package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockAdjustment is the append-only audit row: one per applied quantity
// change, written in the same transaction as the stock level mutation. Rows
// are never updated or deleted; the (vendor_id, idempotency_key) unique index
// is what makes retries safe.
type StockAdjustment struct {
	ID             int             `gorm:"primary_key" json:"id"`
	VendorId       string          `gorm:"size:64;not null;uniqueIndex:uniq_adjustment_idem,priority:1" json:"vendor_id"`
	ProductId      int             `gorm:"not null;index" json:"product_id"`
	LocationId     int             `gorm:"not null;index" json:"location_id"`
	AdjustmentType AdjustmentType  `gorm:"type:enum('count_correction', 'damage', 'shrinkage', 'theft', 'expired', 'received', 'return', 'other');not null" json:"adjustment_type"`
	QuantityBefore decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_before"`
	QuantityAfter  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_after"`
	// QuantityChange is signed and never zero; after = before + change always.
	QuantityChange decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"quantity_change"`
	Reason         string              `gorm:"size:255;not null" json:"reason"`
	Notes          *string             `gorm:"type:text" json:"notes"`
	ReferenceType  *EventReferenceType `gorm:"type:enum('ADJ','PO','STK','PRD');default:NULL" json:"reference_type"`
	ReferenceId    *int                `json:"reference_id"`
	BatchId        *string             `gorm:"size:100;index" json:"batch_id"`
	IdempotencyKey string              `gorm:"size:191;not null;uniqueIndex:uniq_adjustment_idem,priority:2" json:"idempotency_key"`
	CreatedBy      int                 `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time           `gorm:"autoCreateTime;index" json:"created_at"`
}

// NewStockAdjustment is one requested quantity change. The idempotency key is
// caller-supplied: a retried request must reuse the key from its first
// attempt, otherwise it is a new operation.
type NewStockAdjustment struct {
	ProductId      int                 `json:"product_id" binding:"required"`
	LocationId     int                 `json:"location_id" binding:"required"`
	AdjustmentType AdjustmentType      `json:"adjustment_type" binding:"required"`
	QuantityChange decimal.Decimal     `json:"quantity_change" binding:"required"`
	Reason         string              `json:"reason" binding:"required"`
	Notes          *string             `json:"notes"`
	ReferenceType  *EventReferenceType `json:"reference_type"`
	ReferenceId    *int                `json:"reference_id"`
	IdempotencyKey string              `json:"idempotency_key" binding:"required"`
}

// AdjustmentResult is the authoritative before/after snapshot returned to the
// caller. Replayed marks a request answered from a previously stored audit row
// without re-mutating state; ProductTotalStock is the aggregate across all
// locations as of this call.
type AdjustmentResult struct {
	AdjustmentId      int             `json:"adjustment_id"`
	ProductId         int             `json:"product_id"`
	LocationId        int             `json:"location_id"`
	QuantityBefore    decimal.Decimal `json:"quantity_before"`
	QuantityAfter     decimal.Decimal `json:"quantity_after"`
	QuantityChange    decimal.Decimal `json:"quantity_change"`
	ProductTotalStock decimal.Decimal `json:"product_total_stock"`
	Replayed          bool            `json:"replayed"`
}

func (input *NewStockAdjustment) validate(ctx context.Context, vendorId string) error {
	if input.QuantityChange.IsZero() {
		return &ValidationError{Field: "quantity_change", Message: "quantity change cannot be zero"}
	}
	if strings.TrimSpace(input.Reason) == "" {
		return &ValidationError{Field: "reason", Message: "reason is required"}
	}
	if !input.AdjustmentType.IsValid() {
		return &ValidationError{Field: "adjustment_type", Message: "invalid adjustment type"}
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return &ValidationError{Field: "idempotency_key", Message: "idempotency key is required"}
	}
	if len(input.IdempotencyKey) > 191 {
		return &ValidationError{Field: "idempotency_key", Message: "idempotency key must be 191 characters or less"}
	}
	if input.ReferenceType != nil && input.ReferenceId == nil {
		return &ValidationError{Field: "reference_id", Message: "reference id is required with reference type"}
	}

	db := config.GetDB()
	var product Product
	err := db.WithContext(ctx).Where("vendor_id = ? AND id = ?", vendorId, input.ProductId).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "product", Id: input.ProductId}
		}
		return WrapStorageError("fetch product", err)
	}
	if product.TrackInventory != nil && !*product.TrackInventory {
		return &ValidationError{Field: "product_id", Message: "product's inventory has not been tracked"}
	}

	var locationCount int64
	err = db.WithContext(ctx).Model(&Location{}).
		Where("vendor_id = ? AND id = ?", vendorId, input.LocationId).
		Count(&locationCount).Error
	if err != nil {
		return WrapStorageError("fetch location", err)
	}
	if locationCount == 0 {
		return &NotFoundError{Resource: "location", Id: input.LocationId}
	}
	return nil
}

// ApplyAdjustment applies one signed quantity change to a (product, location)
// pair inside one transaction: lock the stock level row, reject a change that
// would drive on-hand below zero, apply the delta, append the audit row,
// fold the daily balance, recompute the product aggregate, enqueue the outbox
// event, commit. A concurrent reader never observes a half-applied change, and
// two concurrent calls against the same row apply in commit order.
//
// Calling twice with the same idempotency key mutates at most once; the second
// call returns the stored result with Replayed set.
func ApplyAdjustment(ctx context.Context, input *NewStockAdjustment) (*AdjustmentResult, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}
	return applyAdjustmentForVendor(ctx, vendorId, userId, input, nil)
}

func applyAdjustmentForVendor(ctx context.Context, vendorId string, userId int, input *NewStockAdjustment, batchId *string) (*AdjustmentResult, error) {
	db := config.GetDB()

	// validate adjustment
	if err := input.validate(ctx, vendorId); err != nil {
		return nil, err
	}

	// idempotent replay: answer from the stored audit row, no mutation
	prior, err := findAdjustmentByKey(db.WithContext(ctx), vendorId, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return replayedResult(ctx, db, prior)
	}

	now := time.Now().UTC()
	adjustment := StockAdjustment{
		VendorId:       vendorId,
		ProductId:      input.ProductId,
		LocationId:     input.LocationId,
		AdjustmentType: input.AdjustmentType,
		QuantityChange: input.QuantityChange,
		Reason:         input.Reason,
		Notes:          input.Notes,
		ReferenceType:  input.ReferenceType,
		ReferenceId:    input.ReferenceId,
		BatchId:        batchId,
		IdempotencyKey: input.IdempotencyKey,
		CreatedBy:      userId,
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, WrapStorageError("begin adjustment", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	productTotal, err := applyStockMutationTx(tx.WithContext(ctx), &adjustment, now)
	if err != nil {
		tx.Rollback()
		if IsDuplicateKeyError(err) {
			// A concurrent retry with the same key won the insert race past
			// our pre-read. Answer from its committed row.
			prior, readErr := findAdjustmentByKey(db.WithContext(ctx), vendorId, input.IdempotencyKey)
			if readErr == nil && prior != nil {
				return replayedResult(ctx, db, prior)
			}
		}
		return nil, err
	}

	err = PublishInventoryEvent(ctx, tx, vendorId, now, adjustment.ID, EventReferenceTypeStockAdjustment, &adjustment, nil, PubSubMessageActionCreate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, WrapStorageError("commit adjustment", err)
	}

	// aggregate changed; drop cached product reads
	_ = RemoveRedisBoth(Product{ID: adjustment.ProductId, VendorId: vendorId})

	return &AdjustmentResult{
		AdjustmentId:      adjustment.ID,
		ProductId:         adjustment.ProductId,
		LocationId:        adjustment.LocationId,
		QuantityBefore:    adjustment.QuantityBefore,
		QuantityAfter:     adjustment.QuantityAfter,
		QuantityChange:    adjustment.QuantityChange,
		ProductTotalStock: productTotal,
		Replayed:          false,
	}, nil
}

// applyStockMutationTx is the in-transaction primitive shared by the
// adjustment engine and purchase-order receiving. The caller owns the
// transaction; nothing here commits or rolls back. On success the adjustment's
// QuantityBefore/QuantityAfter and ID are filled in.
func applyStockMutationTx(tx *gorm.DB, adjustment *StockAdjustment, now time.Time) (decimal.Decimal, error) {
	stockLevel, _, err := FirstOrCreateStockLevel(tx, adjustment.VendorId, adjustment.ProductId, adjustment.LocationId)
	if err != nil {
		return decimal.Zero, err
	}

	before := stockLevel.QuantityOnHand
	after := before.Add(adjustment.QuantityChange)
	if after.IsNegative() {
		return decimal.Zero, &InvalidAdjustmentError{
			ProductId:       adjustment.ProductId,
			LocationId:      adjustment.LocationId,
			QuantityOnHand:  before,
			RequestedChange: adjustment.QuantityChange,
		}
	}

	if err := applyStockLevelDelta(tx, stockLevel.ID, adjustment.QuantityChange); err != nil {
		return decimal.Zero, err
	}

	adjustment.QuantityBefore = before
	adjustment.QuantityAfter = after
	if err := tx.Create(adjustment).Error; err != nil {
		if IsDuplicateKeyError(err) {
			return decimal.Zero, err
		}
		return decimal.Zero, WrapStorageError("insert audit row", err)
	}

	err = UpsertStockLevelDailyBalance(tx, adjustment.VendorId, adjustment.LocationId, adjustment.ProductId, now, adjustment.QuantityChange, after)
	if err != nil {
		return decimal.Zero, err
	}

	return recomputeProductTotalStock(tx, adjustment.VendorId, adjustment.ProductId)
}

func findAdjustmentByKey(db *gorm.DB, vendorId string, idempotencyKey string) (*StockAdjustment, error) {
	var adjustment StockAdjustment
	err := db.Where("vendor_id = ? AND idempotency_key = ?", vendorId, idempotencyKey).First(&adjustment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, WrapStorageError("replay lookup", err)
	}
	return &adjustment, nil
}

func replayedResult(ctx context.Context, db *gorm.DB, prior *StockAdjustment) (*AdjustmentResult, error) {
	var productTotal decimal.Decimal
	err := db.WithContext(ctx).Model(&Product{}).
		Select("total_stock").
		Where("vendor_id = ? AND id = ?", prior.VendorId, prior.ProductId).
		Scan(&productTotal).Error
	if err != nil {
		return nil, WrapStorageError("read product total stock", err)
	}
	return &AdjustmentResult{
		AdjustmentId:      prior.ID,
		ProductId:         prior.ProductId,
		LocationId:        prior.LocationId,
		QuantityBefore:    prior.QuantityBefore,
		QuantityAfter:     prior.QuantityAfter,
		QuantityChange:    prior.QuantityChange,
		ProductTotalStock: productTotal,
		Replayed:          true,
	}, nil
}

const bulkMaxItems = 500

// NewBulkAdjustment applies many adjustments in one request. BatchKey is the
// idempotency root: per-item keys are derived from it, so a retried batch
// reuses each line's key even when other lines of the retry differ. When the
// client omits it the server generates one, which makes that request
// non-retryable as a batch.
type NewBulkAdjustment struct {
	BatchKey    string                `json:"batch_key"`
	Adjustments []*NewStockAdjustment `json:"adjustments" binding:"required"`
}

type BulkItemResult struct {
	Index          int              `json:"index"`
	ProductId      int              `json:"product_id"`
	LocationId     int              `json:"location_id"`
	AdjustmentId   *int             `json:"adjustment_id,omitempty"`
	QuantityBefore *decimal.Decimal `json:"quantity_before,omitempty"`
	QuantityAfter  *decimal.Decimal `json:"quantity_after,omitempty"`
	Replayed       bool             `json:"replayed,omitempty"`
	ErrorKind      string           `json:"error_kind,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
}

// BulkAdjustmentResult is the per-item manifest. Partial success is a result
// shape, not an error: callers inspect Failed and the per-item entries.
type BulkAdjustmentResult struct {
	BatchId   string            `json:"batch_id"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []*BulkItemResult `json:"results"`
}

// ApplyBulkAdjustments processes each line independently with the same
// guarantees as ApplyAdjustment: its own transaction, its own audit row, its
// own derived idempotency key. There is deliberately no cross-item atomicity —
// one unknown product must not abort five hundred good count-correction lines.
// Two lines naming the same (product, location) share a derived key, so the
// second replays the first; callers merge such lines before submitting.
func ApplyBulkAdjustments(ctx context.Context, input *NewBulkAdjustment) (*BulkAdjustmentResult, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}

	if len(input.Adjustments) == 0 {
		return nil, &ValidationError{Field: "adjustments", Message: "at least one adjustment is required"}
	}
	if len(input.Adjustments) > bulkMaxItems {
		return nil, NewValidationError("bulk batch cannot exceed %d items", bulkMaxItems)
	}

	batchKey := strings.TrimSpace(input.BatchKey)
	if batchKey == "" {
		batchKey = utils.NewBatchId()
	}
	if len(batchKey) > 100 {
		return nil, &ValidationError{Field: "batch_key", Message: "batch key must be 100 characters or less"}
	}

	result := &BulkAdjustmentResult{
		BatchId: batchKey,
		Total:   len(input.Adjustments),
		Results: make([]*BulkItemResult, 0, len(input.Adjustments)),
	}

	for i, item := range input.Adjustments {
		itemResult := &BulkItemResult{
			Index:      i,
			ProductId:  item.ProductId,
			LocationId: item.LocationId,
		}

		itemInput := *item
		itemInput.IdempotencyKey = utils.DeriveItemKey(batchKey, item.ProductId, item.LocationId)

		applied, err := applyAdjustmentForVendor(ctx, vendorId, userId, &itemInput, &batchKey)
		if err != nil {
			itemResult.ErrorKind = ErrorKind(err)
			itemResult.ErrorMessage = err.Error()
			result.Failed++
		} else {
			itemResult.AdjustmentId = &applied.AdjustmentId
			itemResult.QuantityBefore = &applied.QuantityBefore
			itemResult.QuantityAfter = &applied.QuantityAfter
			itemResult.Replayed = applied.Replayed
			result.Succeeded++
		}
		result.Results = append(result.Results, itemResult)
	}

	return result, nil
}

const (
	auditQueryDefaultLimit = 50
	auditQueryMaxLimit     = 500
)

// StockAdjustmentFilter narrows the audit query. FromDate is inclusive,
// ToDate exclusive (pass the day after the last day wanted); both interpret
// dates in the vendor's timezone.
type StockAdjustmentFilter struct {
	ProductId      *int
	LocationId     *int
	AdjustmentType *AdjustmentType
	FromDate       *MyDateString
	ToDate         *MyDateString
	ReferenceType  *EventReferenceType
	ReferenceId    *int
	BatchId        *string
	Limit          int
	Offset         int
}

type StockAdjustmentPage struct {
	Total       int64              `json:"total"`
	Limit       int                `json:"limit"`
	Offset      int                `json:"offset"`
	Adjustments []*StockAdjustment `json:"adjustments"`
}

// ListStockAdjustments reads the audit trail newest-first with limit/offset
// pagination. Limit is clamped to [1, 500].
func ListStockAdjustments(ctx context.Context, filter *StockAdjustmentFilter) (*StockAdjustmentPage, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	if filter == nil {
		filter = &StockAdjustmentFilter{}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = auditQueryDefaultLimit
	}
	if limit > auditQueryMaxLimit {
		limit = auditQueryMaxLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	vendor, err := GetVendorById(ctx, vendorId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&StockAdjustment{}).Where("vendor_id = ?", vendorId)
	if filter.ProductId != nil && *filter.ProductId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *filter.ProductId)
	}
	if filter.LocationId != nil && *filter.LocationId > 0 {
		dbCtx = dbCtx.Where("location_id = ?", *filter.LocationId)
	}
	if filter.AdjustmentType != nil {
		if !filter.AdjustmentType.IsValid() {
			return nil, &ValidationError{Field: "adjustment_type", Message: "invalid adjustment type"}
		}
		dbCtx = dbCtx.Where("adjustment_type = ?", *filter.AdjustmentType)
	}
	if filter.FromDate != nil {
		if err := filter.FromDate.StartOfDayUTCTime(vendor.Timezone); err != nil {
			return nil, &ValidationError{Field: "from_date", Message: err.Error()}
		}
		dbCtx = dbCtx.Where("created_at >= ?", time.Time(*filter.FromDate))
	}
	if filter.ToDate != nil {
		if err := filter.ToDate.StartOfDayUTCTime(vendor.Timezone); err != nil {
			return nil, &ValidationError{Field: "to_date", Message: err.Error()}
		}
		dbCtx = dbCtx.Where("created_at < ?", time.Time(*filter.ToDate))
	}
	if filter.ReferenceType != nil {
		dbCtx = dbCtx.Where("reference_type = ?", *filter.ReferenceType)
	}
	if filter.ReferenceId != nil && *filter.ReferenceId > 0 {
		dbCtx = dbCtx.Where("reference_id = ?", *filter.ReferenceId)
	}
	if filter.BatchId != nil && *filter.BatchId != "" {
		dbCtx = dbCtx.Where("batch_id = ?", *filter.BatchId)
	}

	var total int64
	if err := dbCtx.Count(&total).Error; err != nil {
		return nil, err
	}

	var adjustments []*StockAdjustment
	err = dbCtx.Order("id DESC").Limit(limit).Offset(offset).Find(&adjustments).Error
	if err != nil {
		return nil, err
	}

	return &StockAdjustmentPage{
		Total:       total,
		Limit:       limit,
		Offset:      offset,
		Adjustments: adjustments,
	}, nil
}

// GetStockAdjustment returns one audit row by id.
func GetStockAdjustment(ctx context.Context, id int) (*StockAdjustment, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	var adjustment StockAdjustment
	err := db.WithContext(ctx).Where("vendor_id = ? AND id = ?", vendorId, id).First(&adjustment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "stock adjustment", Id: id}
		}
		return nil, err
	}
	return &adjustment, nil
}
