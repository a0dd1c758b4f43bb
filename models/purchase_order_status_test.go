package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func poLine(ordered, received string) *PurchaseOrderItem {
	return &PurchaseOrderItem{
		OrderedQty:  decimal.RequireFromString(ordered),
		ReceivedQty: decimal.RequireFromString(received),
	}
}

func TestDerivePurchaseOrderStatus_FromLineProgress(t *testing.T) {
	cases := []struct {
		name     string
		lines    []*PurchaseOrderItem
		expected PurchaseOrderStatus
	}{
		{"no lines", nil, PurchaseOrderStatusPending},
		{"nothing received", []*PurchaseOrderItem{poLine("10", "0")}, PurchaseOrderStatusPending},
		{"one line partial", []*PurchaseOrderItem{poLine("10", "4")}, PurchaseOrderStatusPartiallyReceived},
		{"one line full", []*PurchaseOrderItem{poLine("10", "10")}, PurchaseOrderStatusReceived},
		{"fractional remainder counts as partial", []*PurchaseOrderItem{poLine("2.5", "2.4999")}, PurchaseOrderStatusPartiallyReceived},
		{"full plus untouched stays pending", []*PurchaseOrderItem{poLine("10", "10"), poLine("5", "0")}, PurchaseOrderStatusPending},
		{"full plus partial", []*PurchaseOrderItem{poLine("10", "10"), poLine("5", "2")}, PurchaseOrderStatusPartiallyReceived},
		{"every line full", []*PurchaseOrderItem{poLine("10", "10"), poLine("5", "5"), poLine("1", "1")}, PurchaseOrderStatusReceived},
	}
	for _, tc := range cases {
		if got := DerivePurchaseOrderStatus(tc.lines); got != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, got)
		}
	}
}
