// Package checkout turns a session cart into a persisted order through one of three
// payment methods. Every path ends in the same commit: the order header and lines are
// written in one transaction, and the cart is cleared only after that transaction commits.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway/hosted"
	"github.com/fjod/go_cart/storefront/internal/gateway/redirect"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type CartStore interface {
	Contents(ctx context.Context, sessionID string) ([]domain.CartLine, error)
	RemoveLines(ctx context.Context, sessionID string, lines []domain.CartLine) error
}

type PendingStore interface {
	GetPendingCheckout(ctx context.Context, sessionID string) (*domain.PendingCheckout, error)
	SetPendingCheckout(ctx context.Context, sessionID string, pending *domain.PendingCheckout) error
	DeletePendingCheckout(ctx context.Context, sessionID string) error
}

type CustomerLookup interface {
	FindCustomer(ctx context.Context, customerID string) (*domain.CustomerProfile, error)
}

type OrderPersister interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	FindOrderByPaymentReference(ctx context.Context, reference string) (*domain.Order, error)
}

type RedirectGateway interface {
	BuildRedirectURL(intent domain.PaymentIntent, clientIP string) (string, error)
	ParseCallback(query url.Values) (*redirect.CallbackResult, error)
}

type HostedGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, reference string) (*hosted.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*hosted.Capture, error)
}

// Identity is the already-resolved caller. An empty CustomerID is an anonymous caller.
type Identity struct {
	CustomerID string
}

func (i Identity) Authenticated() bool {
	return i.CustomerID != ""
}

type Deps struct {
	Cart      CartStore
	Pending   PendingStore
	Customers CustomerLookup
	Orders    OrderPersister
	Redirect  RedirectGateway
	Hosted    HostedGateway
	Metrics   *metrics.Metrics
	Currency  string
}

type Service struct {
	cart      CartStore
	pending   PendingStore
	customers CustomerLookup
	orders    OrderPersister
	redirect  RedirectGateway
	hosted    HostedGateway
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	currency  string

	now          func() time.Time
	newReference func() string
}

func NewService(d Deps) *Service {
	currency := d.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	m := d.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		cart:         d.Cart,
		pending:      d.Pending,
		customers:    d.Customers,
		orders:       d.Orders,
		redirect:     d.Redirect,
		hosted:       d.Hosted,
		metrics:      m,
		tracer:       otel.Tracer("github.com/fjod/go_cart/storefront/internal/checkout"),
		currency:     currency,
		now:          time.Now,
		newReference: uuid.NewString,
	}
}

// Summary is what the checkout form shows.
type Summary struct {
	Lines []domain.CartLine
	Total decimal.Decimal
}

// Result is a checkout that either committed or handed the buyer to a gateway.
type Result struct {
	Status      domain.CheckoutStatus
	Method      domain.PaymentMethod
	Order       *domain.Order
	RedirectURL string
	// Duplicate is set when the payment reference had already been committed.
	Duplicate bool
}

// Begin is the entry guard for the checkout form.
func (s *Service) Begin(ctx context.Context, sessionID string) (*Summary, error) {
	lines, err := s.cart.Contents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	return &Summary{Lines: lines, Total: domain.TotalOf(lines)}, nil
}

// ready loads the cart and moves a fresh attempt to READY_TO_CHECKOUT.
func (s *Service) ready(ctx context.Context, sessionID string, id Identity) (*attempt, []domain.CartLine, error) {
	a := newAttempt()
	lines, err := s.cart.Contents(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, nil, ErrEmptyCart
	}
	if !id.Authenticated() {
		return nil, nil, ErrUnauthenticated
	}
	if err := a.to(domain.CheckoutStatusReadyToCheckout); err != nil {
		return nil, nil, err
	}
	return a, lines, nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// countFailure records an attempt that ended without an order.
func (s *Service) countFailure(method domain.PaymentMethod, err error) {
	var validation *ValidationError
	outcome := metrics.OutcomeFailed
	switch {
	case errors.Is(err, ErrPaymentDeclined), errors.Is(err, ErrPaymentMismatch):
		outcome = metrics.OutcomeDeclined
	case errors.As(err, &validation), errors.Is(err, ErrEmptyCart), errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrProfileNotFound):
		outcome = metrics.OutcomeRejected
	}
	s.metrics.CheckoutOrders.WithLabelValues(string(method), outcome).Inc()
}
