package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway/hosted"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

const hostedPaidNote = "Paid via hosted checkout"

// HostedOrder is the gateway order handed back to a programmatic client.
type HostedOrder struct {
	OrderID     string          `json:"order_id"`
	Status      string          `json:"status"`
	ApproveURL  string          `json:"approve_url,omitempty"`
	ReferenceID string          `json:"reference_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// CaptureResult is a committed hosted payment. Capture is the gateway's own payload.
type CaptureResult struct {
	Result
	Capture json.RawMessage
}

// CreateHostedOrder opens a gateway order for the cart total. Nothing is persisted locally.
func (s *Service) CreateHostedOrder(ctx context.Context, sessionID string, id Identity) (order *HostedOrder, err error) {
	ctx, span := s.startSpan(ctx, "checkout.CreateHostedOrder")
	defer func() {
		if err != nil {
			s.countFailure(domain.PaymentMethodHostedGateway, err)
		}
		endSpan(span, err)
	}()

	a, lines, err := s.ready(ctx, sessionID, id)
	if err != nil {
		return nil, err
	}
	a.method = domain.PaymentMethodHostedGateway
	if err := a.to(domain.CheckoutStatusPaymentChosen); err != nil {
		return nil, err
	}

	amount := domain.TotalOf(lines)
	reference := s.newReference()
	gwOrder, err := s.hosted.CreateOrder(ctx, amount, s.currency, reference)
	if err != nil {
		a.fail()
		s.metrics.GatewayCalls.WithLabelValues("hosted", "create", "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrGatewayTransport, err)
	}
	s.metrics.GatewayCalls.WithLabelValues("hosted", "create", "ok").Inc()

	pending := &domain.PendingCheckout{
		ReferenceID:    reference,
		Method:         domain.PaymentMethodHostedGateway,
		CustomerID:     id.CustomerID,
		Amount:         amount,
		Currency:       s.currency,
		Lines:          lines,
		ExternalHandle: gwOrder.ID,
		CreatedAt:      s.now(),
	}
	if err := s.pending.SetPendingCheckout(ctx, sessionID, pending); err != nil {
		a.fail()
		return nil, fmt.Errorf("failed to save pending checkout: %w", err)
	}

	logger.FromContext(ctx).InfoContext(ctx, "hosted order created",
		"gateway_order_id", gwOrder.ID, "payment_reference", reference, "amount", amount.StringFixed(2))

	return &HostedOrder{
		OrderID:     gwOrder.ID,
		Status:      gwOrder.Status,
		ApproveURL:  gwOrder.ApproveURL(),
		ReferenceID: reference,
		Amount:      amount,
		Currency:    s.currency,
	}, nil
}

// CaptureHostedOrder captures an approved gateway order and commits it. The shipping
// details come from the customer's profile, which is checked before any money moves.
// The gateway order id is the payment reference, so a repeated capture returns the
// order committed the first time.
func (s *Service) CaptureHostedOrder(ctx context.Context, sessionID string, id Identity, orderID, note string) (res *CaptureResult, err error) {
	ctx, span := s.startSpan(ctx, "checkout.CaptureHostedOrder")
	defer func() {
		if err != nil {
			s.countFailure(domain.PaymentMethodHostedGateway, err)
		}
		endSpan(span, err)
	}()

	if !id.Authenticated() {
		return nil, ErrUnauthenticated
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, &ValidationError{Fields: map[string]string{"order_id": "required"}}
	}

	pending, err := s.pending.GetPendingCheckout(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return s.replayedCapture(ctx, id, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending checkout: %w", err)
	}
	if pending.Method != domain.PaymentMethodHostedGateway || pending.ExternalHandle != orderID {
		return s.replayedCapture(ctx, id, orderID)
	}
	if pending.CustomerID != id.CustomerID {
		return nil, ErrUnauthenticated
	}

	a := newAttempt()
	a.method = domain.PaymentMethodHostedGateway
	if err := a.to(domain.CheckoutStatusReadyToCheckout); err != nil {
		return nil, err
	}

	shipping, err := s.resolveShipping(ctx, id.CustomerID, domain.ShippingDetails{UseProfile: true})
	if err != nil {
		a.fail()
		return nil, err
	}
	if err := a.to(domain.CheckoutStatusPaymentChosen); err != nil {
		return nil, err
	}

	capture, err := s.capture(ctx, sessionID, pending)
	if err != nil {
		a.fail()
		return nil, err
	}

	note = strings.TrimSpace(note)
	if note == "" {
		note = hostedPaidNote
	}
	draft := orderDraft{
		customerID: id.CustomerID,
		method:     domain.PaymentMethodHostedGateway,
		shipping:   shipping,
		note:       note,
		reference:  orderID,
		lines:      pending.Lines,
	}
	committed, err := s.commit(ctx, a, sessionID, draft)
	if err != nil {
		return nil, err
	}
	return &CaptureResult{Result: *committed, Capture: capture.Raw}, nil
}

// capture takes the money for the pending hosted order, or reuses a capture recorded by
// an earlier attempt whose commit failed.
func (s *Service) capture(ctx context.Context, sessionID string, pending *domain.PendingCheckout) (*hosted.Capture, error) {
	log := logger.FromContext(ctx)
	orderID := pending.ExternalHandle

	if pending.CaptureStatus == hosted.StatusCompleted {
		log.InfoContext(ctx, "hosted order already captured, retrying commit", "gateway_order_id", orderID)
		return &hosted.Capture{ID: orderID, Status: pending.CaptureStatus, Raw: pending.Capture}, nil
	}

	capture, err := s.hosted.CaptureOrder(ctx, orderID)
	if err != nil {
		s.metrics.GatewayCalls.WithLabelValues("hosted", "capture", "error").Inc()
		log.ErrorContext(ctx, "hosted capture failed", "gateway_order_id", orderID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGatewayTransport, err)
	}
	s.metrics.GatewayCalls.WithLabelValues("hosted", "capture", "ok").Inc()

	if !capture.Completed() {
		log.InfoContext(ctx, "hosted capture not completed",
			"gateway_order_id", orderID, "status", capture.Status)
		return nil, &PaymentDeclinedError{Method: domain.PaymentMethodHostedGateway, Code: capture.Status}
	}

	pending.CaptureStatus = capture.Status
	pending.Capture = capture.Raw
	if err := s.pending.SetPendingCheckout(ctx, sessionID, pending); err != nil {
		log.WarnContext(ctx, "failed to record hosted capture", "gateway_order_id", orderID, "error", err)
	}
	return capture, nil
}

func (s *Service) replayedCapture(ctx context.Context, id Identity, orderID string) (*CaptureResult, error) {
	res, err := s.replayed(ctx, domain.PaymentMethodHostedGateway, id, orderID)
	if err != nil {
		return nil, err
	}
	return &CaptureResult{Result: *res}, nil
}
