package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseOrder is the header of an inbound (supplier → vendor) or outbound
// (vendor → customer) stock movement order. Status advances only through the
// receiving state machine: draft → pending → {partially_received, received},
// any pre-received state → cancelled.
type PurchaseOrder struct {
	ID          int    `gorm:"primary_key" json:"id"`
	VendorId    string `gorm:"size:64;not null;uniqueIndex:uniq_po_number,priority:1" json:"vendor_id"`
	OrderNumber string `gorm:"size:30;not null;uniqueIndex:uniq_po_number,priority:2" json:"order_number"`
	// SequenceNo/SequenceDate back the per-vendor daily order-number counter.
	SequenceNo    int64               `gorm:"not null;default:0" json:"-"`
	SequenceDate  string              `gorm:"size:8;index" json:"-"`
	OrderType     OrderType           `gorm:"type:enum('inbound','outbound');default:'inbound'" json:"order_type"`
	CurrentStatus PurchaseOrderStatus `gorm:"type:enum('draft','pending','partially_received','received','cancelled');default:'draft';index" json:"current_status"`
	SupplierId    *int                `gorm:"index" json:"supplier_id"`
	CustomerName  *string             `gorm:"size:100" json:"customer_name"`
	LocationId    int                 `gorm:"not null;index" json:"location_id"`
	OrderDate     time.Time           `gorm:"not null;index" json:"order_date"`
	ExpectedDate  *time.Time          `gorm:"default:null" json:"expected_date"`
	Subtotal      decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	Tax           decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"tax"`
	Shipping      decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"shipping"`
	// subtotal + tax + shipping, recomputed server-side on every write
	Total       decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"total"`
	Notes       *string             `gorm:"type:text" json:"notes"`
	Items       []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderId" json:"items"`
	ReceivedAt  *time.Time          `gorm:"default:null" json:"received_at"`
	CancelledAt *time.Time          `gorm:"default:null" json:"cancelled_at"`
	CreatedBy   int                 `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// PurchaseOrderItem is one order line. ReceivedQty only ever grows and never
// exceeds OrderedQty; ReceiveItems enforces both under row locks.
type PurchaseOrderItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"not null;index" json:"purchase_order_id"`
	VendorId        string          `gorm:"size:64;not null;index" json:"vendor_id"`
	ProductId       int             `gorm:"not null;index" json:"product_id"`
	OrderedQty      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"ordered_qty"`
	ReceivedQty     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"received_qty"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	LineSubtotal    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"line_subtotal"`
	Condition       *ItemCondition  `gorm:"type:enum('good','damaged','expired','rejected');default:null" json:"condition"`
	QualityNotes    *string         `gorm:"type:text" json:"quality_notes"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPurchaseOrderItem struct {
	ProductId  int             `json:"product_id" binding:"required"`
	OrderedQty decimal.Decimal `json:"ordered_qty" binding:"required"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

type NewPurchaseOrder struct {
	OrderType    OrderType               `json:"order_type"`
	SupplierId   *int                    `json:"supplier_id"`
	CustomerName *string                 `json:"customer_name"`
	LocationId   int                     `json:"location_id" binding:"required"`
	OrderDate    *MyDateString           `json:"order_date"`
	ExpectedDate *MyDateString           `json:"expected_date"`
	Tax          decimal.Decimal         `json:"tax"`
	Shipping     decimal.Decimal         `json:"shipping"`
	Notes        *string                 `json:"notes"`
	Items        []*NewPurchaseOrderItem `json:"items" binding:"required"`
}

type PurchaseOrdersEdge Edge[PurchaseOrder]

type PurchaseOrdersConnection struct {
	PageInfo *PageInfo             `json:"pageInfo"`
	Edges    []*PurchaseOrdersEdge `json:"edges"`
}

// implements Node
func (po PurchaseOrder) GetCursor() string {
	return po.CreatedAt.String()
}

func (po *PurchaseOrder) AfterCreate(tx *gorm.DB) error {
	return SaveHistoryCreate(tx, po.ID, po, "Created purchase order "+po.OrderNumber)
}

func (po *PurchaseOrder) BeforeUpdate(tx *gorm.DB) error {
	return SaveHistoryUpdate(tx, po.ID, po, "Updated purchase order "+po.OrderNumber)
}

func (po *PurchaseOrder) AfterDelete(tx *gorm.DB) error {
	return SaveHistoryDelete(tx, po.ID, po, "Deleted purchase order "+po.OrderNumber)
}

// validate input for both create & update. (id = 0 for create)

func (input *NewPurchaseOrder) validate(ctx context.Context, vendorId string, id int) error {
	if input.OrderType == "" {
		input.OrderType = OrderTypeInbound
	}
	switch input.OrderType {
	case OrderTypeInbound:
		if input.SupplierId == nil || *input.SupplierId <= 0 {
			return &ValidationError{Field: "supplier_id", Message: "supplier is required for inbound orders"}
		}
	case OrderTypeOutbound:
		if input.CustomerName == nil || strings.TrimSpace(*input.CustomerName) == "" {
			return &ValidationError{Field: "customer_name", Message: "customer name is required for outbound orders"}
		}
	default:
		return &ValidationError{Field: "order_type", Message: "order type must be inbound or outbound"}
	}
	if input.Tax.IsNegative() {
		return &ValidationError{Field: "tax", Message: "tax cannot be negative"}
	}
	if input.Shipping.IsNegative() {
		return &ValidationError{Field: "shipping", Message: "shipping cannot be negative"}
	}
	if len(input.Items) == 0 {
		return &ValidationError{Field: "items", Message: "at least one item is required"}
	}

	db := config.GetDB()
	if input.SupplierId != nil && *input.SupplierId > 0 {
		var count int64
		err := db.WithContext(ctx).Model(&Supplier{}).
			Where("vendor_id = ? AND id = ?", vendorId, *input.SupplierId).
			Count(&count).Error
		if err != nil {
			return WrapStorageError("fetch supplier", err)
		}
		if count == 0 {
			return &NotFoundError{Resource: "supplier", Id: *input.SupplierId}
		}
	}
	var locationCount int64
	err := db.WithContext(ctx).Model(&Location{}).
		Where("vendor_id = ? AND id = ?", vendorId, input.LocationId).
		Count(&locationCount).Error
	if err != nil {
		return WrapStorageError("fetch location", err)
	}
	if locationCount == 0 {
		return &NotFoundError{Resource: "location", Id: input.LocationId}
	}

	for i, item := range input.Items {
		if item.OrderedQty.Sign() <= 0 {
			return NewValidationError("items[%d]: ordered quantity must be positive", i)
		}
		if item.UnitCost.IsNegative() {
			return NewValidationError("items[%d]: unit cost cannot be negative", i)
		}
		var product Product
		err := db.WithContext(ctx).Where("vendor_id = ? AND id = ?", vendorId, item.ProductId).First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "product", Id: item.ProductId}
			}
			return WrapStorageError("fetch product", err)
		}
	}
	return nil
}

// generatePurchaseOrderNumber formats PO-YYYYMMDD-NNNN from the per-vendor
// daily sequence. The date key uses the vendor's local day, so order numbers
// roll over at the store's midnight, not UTC's.
func generatePurchaseOrderNumber(ctx context.Context, vendorId string, timezone string, now time.Time) (orderNumber string, seqNo int64, dateKey string, err error) {
	dateKey = utils.ConvertToLocalTime(now, timezone).Format("20060102")
	seqNo, err = utils.GetDailySequence[PurchaseOrder](ctx, vendorId, dateKey)
	if err != nil {
		return "", 0, "", err
	}
	return fmt.Sprintf("PO-%s-%04d", dateKey, seqNo), seqNo, dateKey, nil
}

func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}

	// validate purchase order
	if err := input.validate(ctx, vendorId, 0); err != nil {
		return nil, err
	}

	vendor, err := GetVendorById(ctx, vendorId)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	orderDate := now
	if input.OrderDate != nil {
		if err := input.OrderDate.UTCTime(vendor.Timezone); err != nil {
			return nil, &ValidationError{Field: "order_date", Message: err.Error()}
		}
		orderDate = time.Time(*input.OrderDate)
	}
	var expectedDate *time.Time
	if input.ExpectedDate != nil {
		if err := input.ExpectedDate.UTCTime(vendor.Timezone); err != nil {
			return nil, &ValidationError{Field: "expected_date", Message: err.Error()}
		}
		t := time.Time(*input.ExpectedDate)
		expectedDate = &t
	}

	orderNumber, seqNo, dateKey, err := generatePurchaseOrderNumber(ctx, vendorId, vendor.Timezone, now)
	if err != nil {
		return nil, err
	}

	items, subtotal := buildPurchaseOrderItems(vendorId, input.Items)
	purchaseOrder := PurchaseOrder{
		VendorId:      vendorId,
		OrderNumber:   orderNumber,
		SequenceNo:    seqNo,
		SequenceDate:  dateKey,
		OrderType:     input.OrderType,
		CurrentStatus: PurchaseOrderStatusDraft,
		SupplierId:    input.SupplierId,
		CustomerName:  input.CustomerName,
		LocationId:    input.LocationId,
		OrderDate:     orderDate,
		ExpectedDate:  expectedDate,
		Subtotal:      subtotal,
		Tax:           input.Tax,
		Shipping:      input.Shipping,
		Total:         subtotal.Add(input.Tax).Add(input.Shipping),
		Notes:         input.Notes,
		Items:         items,
		CreatedBy:     userId,
	}

	db := config.GetDB()
	tx := db.Begin()
	if tx.Error != nil {
		return nil, WrapStorageError("begin purchase order", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := tx.WithContext(ctx).Create(&purchaseOrder).Error; err != nil {
		tx.Rollback()
		return nil, WrapStorageError("insert purchase order", err)
	}

	err = PublishInventoryEvent(ctx, tx, vendorId, now, purchaseOrder.ID, EventReferenceTypePurchaseOrder, &purchaseOrder, nil, PubSubMessageActionCreate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, WrapStorageError("commit purchase order", err)
	}

	return &purchaseOrder, nil
}

func buildPurchaseOrderItems(vendorId string, inputs []*NewPurchaseOrderItem) ([]PurchaseOrderItem, decimal.Decimal) {
	items := make([]PurchaseOrderItem, 0, len(inputs))
	subtotal := decimal.Zero
	for _, item := range inputs {
		lineSubtotal := item.OrderedQty.Mul(item.UnitCost)
		items = append(items, PurchaseOrderItem{
			VendorId:     vendorId,
			ProductId:    item.ProductId,
			OrderedQty:   item.OrderedQty,
			ReceivedQty:  decimal.Zero,
			UnitCost:     item.UnitCost,
			LineSubtotal: lineSubtotal,
		})
		subtotal = subtotal.Add(lineSubtotal)
	}
	return items, subtotal
}

// UpdatePurchaseOrder replaces the header fields and the full item list.
// Allowed while draft only; once confirmed an order changes exclusively
// through the receiving and cancel transitions.
func UpdatePurchaseOrder(ctx context.Context, id int, input *NewPurchaseOrder) (*PurchaseOrder, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	// validate purchase order
	if err := input.validate(ctx, vendorId, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var purchaseOrder PurchaseOrder
	err := db.WithContext(ctx).Preload("Items").
		Where("vendor_id = ? AND id = ?", vendorId, id).
		First(&purchaseOrder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "purchase order", Id: id}
		}
		return nil, WrapStorageError("fetch purchase order", err)
	}
	if purchaseOrder.CurrentStatus != PurchaseOrderStatusDraft {
		return nil, NewValidationError("only draft purchase orders can be edited (current status: %s)", purchaseOrder.CurrentStatus)
	}

	vendor, err := GetVendorById(ctx, vendorId)
	if err != nil {
		return nil, err
	}
	orderDate := purchaseOrder.OrderDate
	if input.OrderDate != nil {
		if err := input.OrderDate.UTCTime(vendor.Timezone); err != nil {
			return nil, &ValidationError{Field: "order_date", Message: err.Error()}
		}
		orderDate = time.Time(*input.OrderDate)
	}
	var expectedDate *time.Time
	if input.ExpectedDate != nil {
		if err := input.ExpectedDate.UTCTime(vendor.Timezone); err != nil {
			return nil, &ValidationError{Field: "expected_date", Message: err.Error()}
		}
		t := time.Time(*input.ExpectedDate)
		expectedDate = &t
	}

	items, subtotal := buildPurchaseOrderItems(vendorId, input.Items)
	oldOrder := purchaseOrder

	tx := db.Begin()
	if tx.Error != nil {
		return nil, WrapStorageError("begin purchase order update", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	// replace items wholesale; none have received stock while draft
	if err := tx.WithContext(ctx).Where("purchase_order_id = ?", purchaseOrder.ID).Delete(&PurchaseOrderItem{}).Error; err != nil {
		tx.Rollback()
		return nil, WrapStorageError("delete purchase order items", err)
	}
	for i := range items {
		items[i].PurchaseOrderId = purchaseOrder.ID
	}
	if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
		tx.Rollback()
		return nil, WrapStorageError("insert purchase order items", err)
	}

	err = tx.WithContext(ctx).Model(&purchaseOrder).Updates(map[string]interface{}{
		"OrderType":    input.OrderType,
		"SupplierId":   input.SupplierId,
		"CustomerName": input.CustomerName,
		"LocationId":   input.LocationId,
		"OrderDate":    orderDate,
		"ExpectedDate": expectedDate,
		"Subtotal":     subtotal,
		"Tax":          input.Tax,
		"Shipping":     input.Shipping,
		"Total":        subtotal.Add(input.Tax).Add(input.Shipping),
		"Notes":        input.Notes,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, WrapStorageError("update purchase order", err)
	}

	err = PublishInventoryEvent(ctx, tx, vendorId, time.Now().UTC(), purchaseOrder.ID, EventReferenceTypePurchaseOrder, &purchaseOrder, &oldOrder, PubSubMessageActionUpdate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, WrapStorageError("commit purchase order update", err)
	}

	if err := RemoveRedisBoth(purchaseOrder); err != nil {
		return nil, err
	}
	return GetPurchaseOrder(ctx, id)
}

// ConfirmPurchaseOrder advances draft → pending, opening the order for
// receiving.
func ConfirmPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	return transitionPurchaseOrderStatus(ctx, id, PurchaseOrderStatusPending,
		[]PurchaseOrderStatus{PurchaseOrderStatusDraft})
}

// CancelPurchaseOrder moves any pre-received order to the terminal cancelled
// state. Units already received on a partially received order stay on hand;
// cancelling stops further receiving, it does not reverse stock.
func CancelPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	return transitionPurchaseOrderStatus(ctx, id, PurchaseOrderStatusCancelled,
		[]PurchaseOrderStatus{PurchaseOrderStatusDraft, PurchaseOrderStatusPending, PurchaseOrderStatusPartiallyReceived})
}

func transitionPurchaseOrderStatus(ctx context.Context, id int, target PurchaseOrderStatus, allowedFrom []PurchaseOrderStatus) (*PurchaseOrder, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	tx := db.Begin()
	if tx.Error != nil {
		return nil, WrapStorageError("begin status transition", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var purchaseOrder PurchaseOrder
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vendor_id = ? AND id = ?", vendorId, id).
		First(&purchaseOrder).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "purchase order", Id: id}
		}
		return nil, WrapStorageError("lock purchase order", err)
	}

	allowed := false
	for _, status := range allowedFrom {
		if purchaseOrder.CurrentStatus == status {
			allowed = true
			break
		}
	}
	if !allowed {
		tx.Rollback()
		return nil, NewValidationError("cannot move purchase order %s from %s to %s",
			purchaseOrder.OrderNumber, purchaseOrder.CurrentStatus, target)
	}

	oldOrder := purchaseOrder
	now := time.Now().UTC()
	updates := map[string]interface{}{"CurrentStatus": target}
	if target == PurchaseOrderStatusCancelled {
		updates["CancelledAt"] = now
	}
	if err := tx.WithContext(ctx).Model(&purchaseOrder).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, WrapStorageError("update purchase order status", err)
	}

	err = PublishInventoryEvent(ctx, tx, vendorId, now, purchaseOrder.ID, EventReferenceTypePurchaseOrder, &purchaseOrder, &oldOrder, PubSubMessageActionUpdate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, WrapStorageError("commit status transition", err)
	}

	if err := RemoveRedisBoth(purchaseOrder); err != nil {
		return nil, err
	}
	return GetPurchaseOrder(ctx, id)
}

// DeletePurchaseOrder removes an order that never received stock (draft or
// pending only). Items cascade first.
func DeletePurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	var purchaseOrder PurchaseOrder
	err := db.WithContext(ctx).Preload("Items").
		Where("vendor_id = ? AND id = ?", vendorId, id).
		First(&purchaseOrder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "purchase order", Id: id}
		}
		return nil, WrapStorageError("fetch purchase order", err)
	}
	if purchaseOrder.CurrentStatus != PurchaseOrderStatusDraft && purchaseOrder.CurrentStatus != PurchaseOrderStatusPending {
		return nil, NewValidationError("cannot delete purchase order %s in status %s",
			purchaseOrder.OrderNumber, purchaseOrder.CurrentStatus)
	}
	for _, item := range purchaseOrder.Items {
		if item.ReceivedQty.IsPositive() {
			return nil, NewValidationError("cannot delete purchase order %s: items already received", purchaseOrder.OrderNumber)
		}
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, WrapStorageError("begin purchase order delete", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := tx.WithContext(ctx).Where("purchase_order_id = ?", purchaseOrder.ID).Delete(&PurchaseOrderItem{}).Error; err != nil {
		tx.Rollback()
		return nil, WrapStorageError("delete purchase order items", err)
	}
	if err := tx.WithContext(ctx).Delete(&purchaseOrder).Error; err != nil {
		tx.Rollback()
		return nil, WrapStorageError("delete purchase order", err)
	}

	err = PublishInventoryEvent(ctx, tx, vendorId, time.Now().UTC(), purchaseOrder.ID, EventReferenceTypePurchaseOrder, nil, &purchaseOrder, PubSubMessageActionDelete)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, WrapStorageError("commit purchase order delete", err)
	}

	if err := RemoveRedisBoth(purchaseOrder); err != nil {
		return nil, err
	}
	return &purchaseOrder, nil
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	return GetResource[PurchaseOrder](ctx, id, "Items")
}

func PaginatePurchaseOrder(ctx context.Context, limit *int, after *string,
	status *PurchaseOrderStatus, orderType *OrderType, supplierId *int,
	fromDate *MyDateString, toDate *MyDateString) (*PurchaseOrdersConnection, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	pageSize := config.SearchLimit
	if limit != nil && *limit > 0 {
		pageSize = *limit
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Items").Where("vendor_id = ?", vendorId)
	if status != nil && *status != "" {
		dbCtx.Where("current_status = ?", *status)
	}
	if orderType != nil && *orderType != "" {
		dbCtx.Where("order_type = ?", *orderType)
	}
	if supplierId != nil && *supplierId > 0 {
		dbCtx.Where("supplier_id = ?", *supplierId)
	}
	if fromDate != nil || toDate != nil {
		vendor, err := GetVendorById(ctx, vendorId)
		if err != nil {
			return nil, err
		}
		if fromDate != nil {
			if err := fromDate.StartOfDayUTCTime(vendor.Timezone); err != nil {
				return nil, &ValidationError{Field: "from_date", Message: err.Error()}
			}
			dbCtx.Where("order_date >= ?", time.Time(*fromDate))
		}
		if toDate != nil {
			if err := toDate.EndOfDayUTCTime(vendor.Timezone); err != nil {
				return nil, &ValidationError{Field: "to_date", Message: err.Error()}
			}
			dbCtx.Where("order_date <= ?", time.Time(*toDate))
		}
	}

	edges, pageInfo, err := FetchPageCompositeCursor[PurchaseOrder](dbCtx, pageSize, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var connection PurchaseOrdersConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		poEdge := PurchaseOrdersEdge(edge)
		connection.Edges = append(connection.Edges, &poEdge)
	}
	return &connection, nil
}

// ReceiveItemInput records physically arrived units against one order line.
// Condition defaults to good; only good units increase stock on hand.
type ReceiveItemInput struct {
	ItemId       int             `json:"item_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	Condition    ItemCondition   `json:"condition"`
	QualityNotes *string         `json:"quality_notes"`
}

// ReceiveItems processes one receiving event against a purchase order in a
// single transaction: line updates, stock postings, and the derived order
// status commit together or not at all. The redis vendor lock adds a second
// belt over the row locks for this multi-row mutation.
//
// Per line the candidate received quantity (current + requested) must not
// exceed the ordered quantity or the whole call fails with OverReceipt.
// Damaged, expired, and rejected units consume the line's ordered allowance
// but never post stock. Good units post a `received` adjustment at the
// receiving location through the same audited primitive as manual
// adjustments, keyed po:<order>:item:<line>:<cumulative> so a retried
// delivery of the same receipt state replays instead of double-counting.
func ReceiveItems(ctx context.Context, poId int, locationId int, items []ReceiveItemInput) (*PurchaseOrder, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}

	if len(items) == 0 {
		return nil, &ValidationError{Field: "items", Message: "at least one item is required"}
	}
	for i := range items {
		if items[i].Quantity.Sign() <= 0 {
			return nil, NewValidationError("items[%d]: quantity must be positive", i)
		}
		if items[i].Condition == "" {
			items[i].Condition = ItemConditionGood
		}
		if !items[i].Condition.IsValid() {
			return nil, NewValidationError("items[%d]: invalid condition %s", i, items[i].Condition)
		}
	}

	release, err := utils.VendorLock(ctx, vendorId, "receiving", "purchaseOrder", "ReceiveItems")
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	tx := db.Begin()
	if tx.Error != nil {
		return nil, WrapStorageError("begin receiving", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var purchaseOrder PurchaseOrder
	err = tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vendor_id = ? AND id = ?", vendorId, poId).
		First(&purchaseOrder).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "purchase order", Id: poId}
		}
		return nil, WrapStorageError("lock purchase order", err)
	}

	if purchaseOrder.OrderType != OrderTypeInbound {
		tx.Rollback()
		return nil, NewValidationError("cannot receive on outbound order %s", purchaseOrder.OrderNumber)
	}
	switch purchaseOrder.CurrentStatus {
	case PurchaseOrderStatusPending, PurchaseOrderStatusPartiallyReceived:
		// receivable
	case PurchaseOrderStatusDraft:
		tx.Rollback()
		return nil, NewValidationError("purchase order %s must be confirmed before receiving", purchaseOrder.OrderNumber)
	default:
		tx.Rollback()
		return nil, NewValidationError("cannot receive on %s order %s", purchaseOrder.CurrentStatus, purchaseOrder.OrderNumber)
	}

	if locationId == 0 {
		locationId = purchaseOrder.LocationId
	}
	var locationCount int64
	err = tx.WithContext(ctx).Model(&Location{}).
		Where("vendor_id = ? AND id = ?", vendorId, locationId).
		Count(&locationCount).Error
	if err != nil {
		tx.Rollback()
		return nil, WrapStorageError("fetch location", err)
	}
	if locationCount == 0 {
		tx.Rollback()
		return nil, &NotFoundError{Resource: "location", Id: locationId}
	}

	var lines []*PurchaseOrderItem
	err = tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("purchase_order_id = ?", purchaseOrder.ID).
		Order("id").
		Find(&lines).Error
	if err != nil {
		tx.Rollback()
		return nil, WrapStorageError("lock purchase order items", err)
	}
	lineById := make(map[int]*PurchaseOrderItem, len(lines))
	productIds := make([]int, 0, len(lines))
	for _, line := range lines {
		lineById[line.ID] = line
		productIds = append(productIds, line.ProductId)
	}
	productNames, err := mapProductNames(tx.WithContext(ctx), vendorId, productIds)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	oldOrder := purchaseOrder
	now := time.Now().UTC()
	refType := EventReferenceTypePurchaseOrder

	for _, in := range items {
		line, found := lineById[in.ItemId]
		if !found {
			tx.Rollback()
			return nil, &NotFoundError{Resource: "purchase order item", Id: in.ItemId}
		}

		newReceived := line.ReceivedQty.Add(in.Quantity)
		if newReceived.Cmp(line.OrderedQty) > 0 {
			tx.Rollback()
			return nil, &OverReceiptError{
				ItemId:          line.ID,
				ProductName:     productNames[line.ProductId],
				OrderedQty:      line.OrderedQty,
				AlreadyReceived: line.ReceivedQty,
				RequestedQty:    in.Quantity,
			}
		}

		condition := in.Condition
		updates := map[string]interface{}{
			"ReceivedQty": newReceived,
			"Condition":   condition,
		}
		if in.QualityNotes != nil {
			updates["QualityNotes"] = in.QualityNotes
		}
		if err := tx.WithContext(ctx).Model(line).Updates(updates).Error; err != nil {
			tx.Rollback()
			return nil, WrapStorageError("update purchase order item", err)
		}
		line.ReceivedQty = newReceived
		line.Condition = &condition

		// only good units reach the shelf; the rest stay tracked on the line
		if condition == ItemConditionGood {
			adjustment := StockAdjustment{
				VendorId:       vendorId,
				ProductId:      line.ProductId,
				LocationId:     locationId,
				AdjustmentType: AdjustmentTypeReceived,
				QuantityChange: in.Quantity,
				Reason:         "received against " + purchaseOrder.OrderNumber,
				ReferenceType:  &refType,
				ReferenceId:    &purchaseOrder.ID,
				IdempotencyKey: fmt.Sprintf("po:%d:item:%d:%s", purchaseOrder.ID, line.ID, newReceived.String()),
				CreatedBy:      userId,
			}
			if _, err := applyStockMutationTx(tx.WithContext(ctx), &adjustment, now); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	// status derives from all lines, not just the ones touched here
	newStatus := DerivePurchaseOrderStatus(lines)
	statusUpdates := map[string]interface{}{"CurrentStatus": newStatus}
	if newStatus == PurchaseOrderStatusReceived {
		statusUpdates["ReceivedAt"] = now
	}
	if err := tx.WithContext(ctx).Model(&purchaseOrder).Updates(statusUpdates).Error; err != nil {
		tx.Rollback()
		return nil, WrapStorageError("update purchase order status", err)
	}

	// the receipt filing downstream reads lines from the event payload
	purchaseOrder.Items = make([]PurchaseOrderItem, 0, len(lines))
	for _, line := range lines {
		purchaseOrder.Items = append(purchaseOrder.Items, *line)
	}

	err = PublishInventoryEvent(ctx, tx, vendorId, now, purchaseOrder.ID, EventReferenceTypePurchaseOrder, &purchaseOrder, &oldOrder, PubSubMessageActionUpdate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, WrapStorageError("commit receiving", err)
	}

	if err := RemoveRedisBoth(purchaseOrder); err != nil {
		return nil, err
	}
	for _, productId := range utils.UniqueSlice(productIds) {
		_ = RemoveRedisBoth(Product{ID: productId, VendorId: vendorId})
	}

	return GetPurchaseOrder(ctx, poId)
}

// DerivePurchaseOrderStatus recomputes an order's status from the aggregate
// receipt state of its lines: received when every line has reached its
// ordered quantity, partially_received when at least one line sits strictly
// between zero and its ordered quantity, pending otherwise.
func DerivePurchaseOrderStatus(lines []*PurchaseOrderItem) PurchaseOrderStatus {
	allReceived := len(lines) > 0
	anyPartial := false
	for _, line := range lines {
		if line.ReceivedQty.Cmp(line.OrderedQty) < 0 {
			allReceived = false
			if line.ReceivedQty.IsPositive() {
				anyPartial = true
			}
		}
	}
	if allReceived {
		return PurchaseOrderStatusReceived
	}
	if anyPartial {
		return PurchaseOrderStatusPartiallyReceived
	}
	return PurchaseOrderStatusPending
}

func mapProductNames(tx *gorm.DB, vendorId string, productIds []int) (map[int]string, error) {
	type productName struct {
		ID   int
		Name string
	}
	var rows []productName
	err := tx.Model(&Product{}).
		Select("id, name").
		Where("vendor_id = ? AND id IN ?", vendorId, utils.UniqueSlice(productIds)).
		Scan(&rows).Error
	if err != nil {
		return nil, WrapStorageError("fetch product names", err)
	}
	names := make(map[int]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}
