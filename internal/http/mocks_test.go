package http

import (
	"context"
	"errors"
	"net/url"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/shopspring/decimal"
)

type MockCatalog struct {
	Items []*domain.CatalogItem
	Err   error
}

func (m *MockCatalog) ListItems(context.Context) ([]*domain.CatalogItem, error) {
	return m.Items, m.Err
}

type MockCart struct {
	Lines     map[string][]domain.CartLine
	AddErr    error
	AddedSID  string
	AddedItem int64
	AddedQty  int
	Removed   []int64
}

func (m *MockCart) AddItem(_ context.Context, sessionID string, itemID int64, quantity int) (*domain.Cart, error) {
	m.AddedSID, m.AddedItem, m.AddedQty = sessionID, itemID, quantity
	if m.AddErr != nil {
		return nil, m.AddErr
	}
	if quantity <= 0 {
		return nil, cart.ErrInvalidQuantity
	}
	return &domain.Cart{SessionID: sessionID}, nil
}

func (m *MockCart) RemoveItem(_ context.Context, sessionID string, itemID int64) (*domain.Cart, error) {
	m.Removed = append(m.Removed, itemID)
	return &domain.Cart{SessionID: sessionID}, nil
}

func (m *MockCart) Contents(_ context.Context, sessionID string) ([]domain.CartLine, error) {
	return m.Lines[sessionID], nil
}

type MockCheckout struct {
	Summary  *checkout.Summary
	BeginErr error

	PlaceResult *checkout.Result
	PlaceErr    error
	LastPlace   checkout.PlaceOrderRequest

	FinalizeResult *checkout.Result
	FinalizeErr    error
	LastQuery      url.Values

	Hosted    *checkout.HostedOrder
	HostedErr error

	Capture      *checkout.CaptureResult
	CaptureErr   error
	CapturedID   string
	CapturedNote string
	CaptureIdent checkout.Identity
}

func (m *MockCheckout) Begin(context.Context, string) (*checkout.Summary, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	if m.Summary == nil {
		return nil, checkout.ErrEmptyCart
	}
	return m.Summary, nil
}

func (m *MockCheckout) PlaceOrder(_ context.Context, req checkout.PlaceOrderRequest) (*checkout.Result, error) {
	m.LastPlace = req
	return m.PlaceResult, m.PlaceErr
}

func (m *MockCheckout) FinalizeRedirect(_ context.Context, _ string, _ checkout.Identity, query url.Values) (*checkout.Result, error) {
	m.LastQuery = query
	return m.FinalizeResult, m.FinalizeErr
}

func (m *MockCheckout) CreateHostedOrder(_ context.Context, _ string, id checkout.Identity) (*checkout.HostedOrder, error) {
	if m.HostedErr != nil {
		return nil, m.HostedErr
	}
	if !id.Authenticated() {
		return nil, checkout.ErrUnauthenticated
	}
	return m.Hosted, nil
}

func (m *MockCheckout) CaptureHostedOrder(_ context.Context, _ string, id checkout.Identity, orderID, note string) (*checkout.CaptureResult, error) {
	m.CapturedID, m.CapturedNote, m.CaptureIdent = orderID, note, id
	return m.Capture, m.CaptureErr
}

type MockOrders struct {
	Orders map[int64]*domain.Order
}

func (m *MockOrders) GetOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	o, ok := m.Orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

type MockHealth struct {
	Err error
}

func (m *MockHealth) Ping(context.Context) error {
	return m.Err
}

var errDown = errors.New("connection refused")

func teaLine(qty int) domain.CartLine {
	return domain.CartLine{ItemID: 5, DisplayName: "Green tea", UnitPrice: decimal.RequireFromString("10.00"), Quantity: qty}
}

func committedOrder(id int64, customerID string) *domain.Order {
	return &domain.Order{
		Header: domain.OrderHeader{
			ID:               id,
			CustomerID:       customerID,
			RecipientName:    "Demo Customer",
			Address:          "12 Demo Street",
			PaymentMethod:    domain.PaymentMethodCOD,
			PaymentReference: "ref-1",
		},
		Lines: []domain.OrderLine{{OrderID: id, ItemID: 5, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")}},
	}
}
