package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentIntent is built fresh for every gateway attempt and never reused.
type PaymentIntent struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReferenceID string
	CreatedAt   time.Time
}

type ShippingDetails struct {
	RecipientName string `json:"recipient_name"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Note          string `json:"note"`
	UseProfile    bool   `json:"use_profile"`
}

// PendingCheckout is what a gateway attempt leaves in the session between initiate and finalize.
type PendingCheckout struct {
	ReferenceID    string          `json:"reference_id"`
	Method         PaymentMethod   `json:"method"`
	CustomerID     string          `json:"customer_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Lines          []CartLine      `json:"lines"`
	Shipping       ShippingDetails `json:"shipping"`
	ExternalHandle string          `json:"external_handle,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`

	// CaptureStatus and Capture are set once the gateway has taken the money, so a
	// commit that failed afterwards can be retried without capturing again.
	CaptureStatus string          `json:"capture_status,omitempty"`
	Capture       json.RawMessage `json:"capture,omitempty"`
}
