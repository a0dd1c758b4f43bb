package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
	"github.com/shopspring/decimal"
)

func createConfirmedOrder(t *testing.T, ctx context.Context, env *testEnv, lines []*models.NewPurchaseOrderItem) *models.PurchaseOrder {
	t.Helper()
	order, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		SupplierId: &env.SupplierId,
		LocationId: env.LocationId,
		Items:      lines,
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	if order.CurrentStatus != models.PurchaseOrderStatusDraft {
		t.Fatalf("new order should be draft, got %s", order.CurrentStatus)
	}
	confirmed, err := models.ConfirmPurchaseOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ConfirmPurchaseOrder: %v", err)
	}
	if confirmed.CurrentStatus != models.PurchaseOrderStatusPending {
		t.Fatalf("confirmed order should be pending, got %s", confirmed.CurrentStatus)
	}
	return confirmed
}

func TestOverReceiptRejectsWholeReceive(t *testing.T) {
	ctx, env := setupInventoryTestEnv(t)

	second, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:           "Live Resin 1g",
		Sku:            "CN-LR-10",
		Unit:           models.ProductUnitEach,
		Price:          decimal.NewFromInt(45),
		Cost:           decimal.NewFromInt(22),
		TrackInventory: utils.NewTrue(),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	order := createConfirmedOrder(t, ctx, env, []*models.NewPurchaseOrderItem{
		{ProductId: env.ProductId, OrderedQty: decimal.NewFromInt(7), UnitCost: decimal.NewFromInt(18)},
		{ProductId: second.ID, OrderedQty: decimal.NewFromInt(5), UnitCost: decimal.NewFromInt(22)},
	})

	// Line 0 is fine, line 1 over-receives. The whole call must fail and
	// neither line may move.
	_, err = models.ReceiveItems(ctx, order.ID, env.LocationId, []models.ReceiveItemInput{
		{ItemId: order.Items[0].ID, Quantity: decimal.NewFromInt(5)},
		{ItemId: order.Items[1].ID, Quantity: decimal.NewFromInt(9)},
	})
	if err == nil {
		t.Fatalf("expected over-receipt to be rejected")
	}
	var over *models.OverReceiptError
	if !errors.As(err, &over) {
		t.Fatalf("expected OverReceiptError, got %T: %v", err, err)
	}
	if !over.OrderedQty.Equal(decimal.NewFromInt(5)) || !over.RequestedQty.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("error should carry ordered=5 requested=9, got ordered=%s requested=%s",
			over.OrderedQty, over.RequestedQty)
	}

	reloaded, err := models.GetPurchaseOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrder: %v", err)
	}
	if reloaded.CurrentStatus != models.PurchaseOrderStatusPending {
		t.Fatalf("order status changed on rejected receive: %s", reloaded.CurrentStatus)
	}
	for _, line := range reloaded.Items {
		if !line.ReceivedQty.IsZero() {
			t.Fatalf("line %d received qty changed on rejected receive: %s", line.ID, line.ReceivedQty)
		}
	}
	if got := onHand(t, ctx, env); !got.IsZero() {
		t.Fatalf("stock posted despite rejected receive: %s", got)
	}
}

func TestReceivingLifecycleTransitions(t *testing.T) {
	ctx, env := setupInventoryTestEnv(t)

	order := createConfirmedOrder(t, ctx, env, []*models.NewPurchaseOrderItem{
		{ProductId: env.ProductId, OrderedQty: decimal.NewFromInt(10), UnitCost: decimal.NewFromInt(18)},
	})
	itemId := order.Items[0].ID

	// First delivery: 4 of 10.
	partial, err := models.ReceiveItems(ctx, order.ID, env.LocationId, []models.ReceiveItemInput{
		{ItemId: itemId, Quantity: decimal.NewFromInt(4)},
	})
	if err != nil {
		t.Fatalf("first receive: %v", err)
	}
	if partial.CurrentStatus != models.PurchaseOrderStatusPartiallyReceived {
		t.Fatalf("expected partially_received, got %s", partial.CurrentStatus)
	}
	if partial.ReceivedAt != nil {
		t.Fatalf("received_at must stay unset while partially received")
	}
	if got := onHand(t, ctx, env); !got.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected 4 on hand after first delivery, got %s", got)
	}

	// Receiving posts through the same audited primitive as manual
	// adjustments, tagged with the order reference.
	db := config.GetDB()
	var posting models.StockAdjustment
	if err := db.WithContext(ctx).
		Where("vendor_id = ? AND reference_type = ? AND reference_id = ?",
			env.VendorId, models.EventReferenceTypePurchaseOrder, order.ID).
		First(&posting).Error; err != nil {
		t.Fatalf("expected a received audit row: %v", err)
	}
	if posting.AdjustmentType != models.AdjustmentTypeReceived {
		t.Fatalf("posting type should be received, got %s", posting.AdjustmentType)
	}
	if !posting.QuantityChange.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("posting quantity should be 4, got %s", posting.QuantityChange)
	}

	// Second delivery completes the line.
	full, err := models.ReceiveItems(ctx, order.ID, env.LocationId, []models.ReceiveItemInput{
		{ItemId: itemId, Quantity: decimal.NewFromInt(6)},
	})
	if err != nil {
		t.Fatalf("second receive: %v", err)
	}
	if full.CurrentStatus != models.PurchaseOrderStatusReceived {
		t.Fatalf("expected received, got %s", full.CurrentStatus)
	}
	if full.ReceivedAt == nil {
		t.Fatalf("received_at must be set on full receipt")
	}
	if got := onHand(t, ctx, env); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10 on hand after full receipt, got %s", got)
	}

	// A received order is closed to further receiving.
	_, err = models.ReceiveItems(ctx, order.ID, env.LocationId, []models.ReceiveItemInput{
		{ItemId: itemId, Quantity: decimal.NewFromInt(1)},
	})
	var validation *models.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError on received order, got %T: %v", err, err)
	}
}

func TestDamagedUnitsNeverReachShelf(t *testing.T) {
	ctx, env := setupInventoryTestEnv(t)

	order := createConfirmedOrder(t, ctx, env, []*models.NewPurchaseOrderItem{
		{ProductId: env.ProductId, OrderedQty: decimal.NewFromInt(7), UnitCost: decimal.NewFromInt(18)},
	})
	itemId := order.Items[0].ID

	notes := "crushed in transit"
	received, err := models.ReceiveItems(ctx, order.ID, env.LocationId, []models.ReceiveItemInput{
		{ItemId: itemId, Quantity: decimal.NewFromInt(5), Condition: models.ItemConditionGood},
		{ItemId: itemId, Quantity: decimal.NewFromInt(2), Condition: models.ItemConditionDamaged, QualityNotes: &notes},
	})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}

	// Damaged units consume the line's allowance, so the order completes, but
	// only the good 5 reach on-hand.
	if received.CurrentStatus != models.PurchaseOrderStatusReceived {
		t.Fatalf("expected received (5 good + 2 damaged = 7 ordered), got %s", received.CurrentStatus)
	}
	if !received.Items[0].ReceivedQty.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("line should show 7 received, got %s", received.Items[0].ReceivedQty)
	}
	if got := onHand(t, ctx, env); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected only good units (5) on hand, got %s", got)
	}

	db := config.GetDB()
	var postings int64
	if err := db.WithContext(ctx).Model(&models.StockAdjustment{}).
		Where("vendor_id = ? AND reference_type = ? AND reference_id = ?",
			env.VendorId, models.EventReferenceTypePurchaseOrder, order.ID).
		Count(&postings).Error; err != nil {
		t.Fatalf("count postings: %v", err)
	}
	if postings != 1 {
		t.Fatalf("expected one stock posting (good units only), got %d", postings)
	}
}

func TestCancelStopsReceivingButKeepsStock(t *testing.T) {
	ctx, env := setupInventoryTestEnv(t)

	order := createConfirmedOrder(t, ctx, env, []*models.NewPurchaseOrderItem{
		{ProductId: env.ProductId, OrderedQty: decimal.NewFromInt(10), UnitCost: decimal.NewFromInt(18)},
	})
	itemId := order.Items[0].ID

	if _, err := models.ReceiveItems(ctx, order.ID, env.LocationId, []models.ReceiveItemInput{
		{ItemId: itemId, Quantity: decimal.NewFromInt(4)},
	}); err != nil {
		t.Fatalf("partial receive: %v", err)
	}

	cancelled, err := models.CancelPurchaseOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("CancelPurchaseOrder: %v", err)
	}
	if cancelled.CurrentStatus != models.PurchaseOrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.CurrentStatus)
	}
	if cancelled.CancelledAt == nil {
		t.Fatalf("cancelled_at must be set")
	}

	// Cancelling closes the order but does not reverse received stock.
	if got := onHand(t, ctx, env); !got.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("cancel must not reverse received stock, got %s", got)
	}
	_, err = models.ReceiveItems(ctx, order.ID, env.LocationId, []models.ReceiveItemInput{
		{ItemId: itemId, Quantity: decimal.NewFromInt(1)},
	})
	var validation *models.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError receiving on cancelled order, got %T: %v", err, err)
	}
}
