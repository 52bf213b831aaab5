package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway/hosted"
	"github.com/fjod/go_cart/storefront/internal/gateway/redirect"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/shopspring/decimal"
)

// MockCart implements CartStore for testing
type MockCart struct {
	mu          sync.Mutex
	lines       []domain.CartLine
	ContentsErr error
	RemoveErr   error
	Removals    int
}

func (m *MockCart) Contents(context.Context, string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ContentsErr != nil {
		return nil, m.ContentsErr
	}
	out := make([]domain.CartLine, len(m.lines))
	copy(out, m.lines)
	return out, nil
}

func (m *MockCart) RemoveLines(_ context.Context, _ string, lines []domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Removals++
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	c := domain.Cart{Lines: m.lines}
	c.Subtract(lines)
	m.lines = c.Lines
	return nil
}

func (m *MockCart) Add(line domain.CartLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := domain.Cart{Lines: m.lines}
	c.Add(line)
	m.lines = c.Lines
}

func (m *MockCart) Lines() []domain.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines
}

// MockPending implements PendingStore for testing
type MockPending struct {
	mu      sync.Mutex
	items   map[string]*domain.PendingCheckout
	SetErr  error
	Deletes int
}

func (m *MockPending) GetPendingCheckout(_ context.Context, sessionID string) (*domain.PendingCheckout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[sessionID]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPending) SetPendingCheckout(_ context.Context, sessionID string, pending *domain.PendingCheckout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.items[sessionID] = pending
	return nil
}

func (m *MockPending) DeletePendingCheckout(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes++
	delete(m.items, sessionID)
	return nil
}

// MockCustomers implements CustomerLookup for testing
type MockCustomers struct {
	Profiles map[string]*domain.CustomerProfile
	Err      error
	Calls    int
}

func (m *MockCustomers) FindCustomer(_ context.Context, customerID string) (*domain.CustomerProfile, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Profiles[customerID]
	if !ok {
		return nil, repository.ErrCustomerNotFound
	}
	return p, nil
}

// MockOrders implements OrderPersister for testing, deduplicating by payment reference
type MockOrders struct {
	mu        sync.Mutex
	Orders    []*domain.Order
	byRef     map[string]*domain.Order
	CreateErr error
	nextID    int64
}

func (m *MockOrders) CreateOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if existing, ok := m.byRef[order.Header.PaymentReference]; ok {
		return nil, &repository.DuplicatePaymentError{
			Reference: order.Header.PaymentReference,
			OrderID:   existing.Header.ID,
		}
	}
	m.nextID++
	created := &domain.Order{Header: order.Header, Lines: make([]domain.OrderLine, len(order.Lines))}
	created.Header.ID = m.nextID
	for i, line := range order.Lines {
		line.OrderID = m.nextID
		created.Lines[i] = line
	}
	m.Orders = append(m.Orders, created)
	m.byRef[order.Header.PaymentReference] = created
	return created, nil
}

func (m *MockOrders) FindOrderByPaymentReference(_ context.Context, reference string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byRef[reference]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrders) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders)
}

// MockRedirect implements RedirectGateway for testing. Callbacks are read from plain
// "ref", "code" and "amount" params; "sig=bad" fails verification.
type MockRedirect struct {
	BuildErr   error
	LastIntent domain.PaymentIntent
}

func (m *MockRedirect) BuildRedirectURL(intent domain.PaymentIntent, _ string) (string, error) {
	if m.BuildErr != nil {
		return "", m.BuildErr
	}
	m.LastIntent = intent
	return "https://gateway.test/pay?ref=" + url.QueryEscape(intent.ReferenceID), nil
}

func (m *MockRedirect) ParseCallback(query url.Values) (*redirect.CallbackResult, error) {
	if query.Get("sig") == "bad" {
		return nil, redirect.ErrInvalidSignature
	}
	amount, err := decimal.NewFromString(query.Get("amount"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", redirect.ErrMalformedCallback, err)
	}
	return &redirect.CallbackResult{
		ResponseCode: query.Get("code"),
		ReferenceID:  query.Get("ref"),
		Amount:       amount,
	}, nil
}

func callback(ref, code, amount string) url.Values {
	return url.Values{"ref": {ref}, "code": {code}, "amount": {amount}}
}

// MockHosted implements HostedGateway for testing
type MockHosted struct {
	CreateErr     error
	CaptureStatus string
	CaptureErr    error
	CreateCalls   int
	CaptureCalls  int
}

func (m *MockHosted) CreateOrder(_ context.Context, _ decimal.Decimal, _, _ string) (*hosted.Order, error) {
	m.CreateCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	return &hosted.Order{
		ID:     "GW-ORDER-1",
		Status: "CREATED",
		Links:  []hosted.Link{{Href: "https://gateway.test/approve", Rel: "approve"}},
	}, nil
}

func (m *MockHosted) CaptureOrder(_ context.Context, orderID string) (*hosted.Capture, error) {
	m.CaptureCalls++
	if m.CaptureErr != nil {
		return nil, m.CaptureErr
	}
	raw := fmt.Sprintf(`{"id":%q,"status":%q}`, orderID, m.CaptureStatus)
	return &hosted.Capture{ID: orderID, Status: m.CaptureStatus, Raw: []byte(raw)}, nil
}

type fixture struct {
	svc       *Service
	cart      *MockCart
	pending   *MockPending
	customers *MockCustomers
	orders    *MockOrders
	redirect  *MockRedirect
	hosted    *MockHosted
	metrics   *metrics.Metrics
}

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newFixture(lines ...domain.CartLine) *fixture {
	f := &fixture{
		cart:    &MockCart{lines: lines},
		pending: &MockPending{items: map[string]*domain.PendingCheckout{}},
		customers: &MockCustomers{Profiles: map[string]*domain.CustomerProfile{
			"C-1": {ID: "C-1", Name: "Profile Name", Address: "1 Profile Road", Phone: "0911111111"},
		}},
		orders:   &MockOrders{byRef: map[string]*domain.Order{}},
		redirect: &MockRedirect{},
		hosted:   &MockHosted{CaptureStatus: hosted.StatusCompleted},
		metrics:  metrics.NewNop(),
	}
	f.svc = NewService(Deps{
		Cart:      f.cart,
		Pending:   f.pending,
		Customers: f.customers,
		Orders:    f.orders,
		Redirect:  f.redirect,
		Hosted:    f.hosted,
		Metrics:   f.metrics,
	})
	f.svc.now = func() time.Time { return fixedNow }
	seq := 0
	f.svc.newReference = func() string {
		seq++
		return fmt.Sprintf("ref-%d", seq)
	}
	return f
}

func teaLine(qty int) domain.CartLine {
	return domain.CartLine{ItemID: 5, DisplayName: "Green tea", UnitPrice: decimal.RequireFromString("10.00"), Quantity: qty}
}

func potLine(qty int) domain.CartLine {
	return domain.CartLine{ItemID: 7, DisplayName: "Teapot", UnitPrice: decimal.RequireFromString("35.50"), Quantity: qty}
}

var (
	customer  = Identity{CustomerID: "C-1"}
	anonymous = Identity{}
	errBoom   = errors.New("boom")
)

func formShipping() domain.ShippingDetails {
	return domain.ShippingDetails{
		RecipientName: "Form Name",
		Address:       "2 Form Street",
		Phone:         "0922222222",
		Note:          "ring twice",
	}
}
