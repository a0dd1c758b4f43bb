package tracksync

import "time"

// AdjustmentSubmission reports one stock adjustment to the state
// track-and-trace API. Quantity keeps the sign of the ledger row: negative
// for shrinkage, damage and theft, positive for count corrections upward.
type AdjustmentSubmission struct {
	License        string    `json:"license"`
	Sku            string    `json:"sku"`
	ProductName    string    `json:"product_name"`
	Quantity       string    `json:"quantity"`
	UnitOfMeasure  string    `json:"unit_of_measure"`
	AdjustmentType string    `json:"adjustment_type"`
	Reason         string    `json:"reason"`
	AdjustedAt     time.Time `json:"adjusted_at"`
}

type ReceiptLine struct {
	Sku         string `json:"sku"`
	ProductName string `json:"product_name"`
	Quantity    string `json:"quantity"`
	Condition   string `json:"condition"`
}

// ReceiptSubmission reports a received delivery against a purchase order.
type ReceiptSubmission struct {
	License     string        `json:"license"`
	OrderNumber string        `json:"order_number"`
	ReceivedAt  time.Time     `json:"received_at"`
	Lines       []ReceiptLine `json:"lines"`
}

type submissionResponse struct {
	Id         string `json:"id"`
	ExternalId string `json:"external_id"`
}
