package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCOD             PaymentMethod = "COD"
	PaymentMethodRedirectGateway PaymentMethod = "REDIRECT_GATEWAY"
	PaymentMethodHostedGateway   PaymentMethod = "HOSTED_GATEWAY"
)

// ParsePaymentMethod maps a caller-selected method string onto the closed set of methods.
// Anything unrecognised is cash on delivery.
func ParsePaymentMethod(s string) PaymentMethod {
	switch PaymentMethod(s) {
	case PaymentMethodRedirectGateway:
		return PaymentMethodRedirectGateway
	case PaymentMethodHostedGateway:
		return PaymentMethodHostedGateway
	default:
		return PaymentMethodCOD
	}
}

func (m PaymentMethod) String() string {
	return string(m)
}

const (
	// StatusConfirmed is the only status an order is created with: paid or confirmed for delivery.
	StatusConfirmed = 1

	DefaultShippingMethod = "GRAB"
	DefaultCurrency       = "USD"
)

type CatalogItem struct {
	ID        int64
	Name      string
	UnitPrice decimal.Decimal
	ImageRef  string
}

type CustomerProfile struct {
	ID      string
	Name    string
	Address string
	Phone   string
}

type OrderHeader struct {
	ID               int64         `json:"id"`
	CustomerID       string        `json:"customer_id"`
	RecipientName    string        `json:"recipient_name"`
	Address          string        `json:"address"`
	Phone            string        `json:"phone"`
	PlacedAt         time.Time     `json:"placed_at"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	ShippingMethod   string        `json:"shipping_method"`
	StatusCode       int           `json:"status_code"`
	Note             string        `json:"note"`
	PaymentReference string        `json:"payment_reference"`
}

type OrderLine struct {
	OrderID   int64           `json:"order_id"`
	ItemID    int64           `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

func (l OrderLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Sub(l.Discount)
}

type Order struct {
	Header OrderHeader `json:"header"`
	Lines  []OrderLine `json:"lines"`
}

func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.Total())
	}
	return total
}

// LinesFromCart snapshots cart lines into order lines. OrderID is filled in by the persister.
func LinesFromCart(lines []CartLine) []OrderLine {
	out := make([]OrderLine, len(lines))
	for i, line := range lines {
		out[i] = OrderLine{
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  decimal.Zero,
		}
	}
	return out
}
