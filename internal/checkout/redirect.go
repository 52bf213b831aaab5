package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

const redirectPaidNote = "Paid via redirect gateway"

// InitiateRedirect starts a redirect-gateway payment for the session's cart. Nothing is
// persisted; the cart snapshot and shipping details wait in the session for the callback.
func (s *Service) InitiateRedirect(ctx context.Context, req PlaceOrderRequest) (*Result, error) {
	req.Method = string(domain.PaymentMethodRedirectGateway)
	return s.PlaceOrder(ctx, req)
}

func (s *Service) initiateRedirect(ctx context.Context, a *attempt, req PlaceOrderRequest,
	lines []domain.CartLine, shipping domain.ShippingDetails) (*Result, error) {

	intent := domain.PaymentIntent{
		Amount:      domain.TotalOf(lines),
		Currency:    s.currency,
		ReferenceID: s.newReference(),
		CreatedAt:   s.now(),
	}
	intent.Description = "Storefront order " + intent.ReferenceID

	target, err := s.redirect.BuildRedirectURL(intent, req.ClientIP)
	if err != nil {
		a.fail()
		s.metrics.GatewayCalls.WithLabelValues("redirect", "initiate", "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrGatewayTransport, err)
	}
	s.metrics.GatewayCalls.WithLabelValues("redirect", "initiate", "ok").Inc()

	pending := &domain.PendingCheckout{
		ReferenceID: intent.ReferenceID,
		Method:      domain.PaymentMethodRedirectGateway,
		CustomerID:  req.Identity.CustomerID,
		Amount:      intent.Amount,
		Currency:    intent.Currency,
		Lines:       lines,
		Shipping:    shipping,
		CreatedAt:   intent.CreatedAt,
	}
	if err := s.pending.SetPendingCheckout(ctx, req.SessionID, pending); err != nil {
		a.fail()
		return nil, fmt.Errorf("failed to save pending checkout: %w", err)
	}

	logger.FromContext(ctx).InfoContext(ctx, "redirect payment initiated",
		"payment_reference", intent.ReferenceID, "amount", intent.Amount.StringFixed(2))

	return &Result{
		Status:      a.status,
		Method:      domain.PaymentMethodRedirectGateway,
		RedirectURL: target,
	}, nil
}

// FinalizeRedirect handles the gateway's return. Only a correctly signed success callback
// that matches the session's pending checkout reaches the commit. A replayed callback for
// an already committed reference returns that order.
func (s *Service) FinalizeRedirect(ctx context.Context, sessionID string, id Identity, query url.Values) (res *Result, err error) {
	ctx, span := s.startSpan(ctx, "checkout.FinalizeRedirect")
	defer func() {
		if err != nil {
			s.countFailure(domain.PaymentMethodRedirectGateway, err)
		}
		endSpan(span, err)
	}()

	cb, err := s.redirect.ParseCallback(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentMismatch, err)
	}
	if !cb.Succeeded() {
		logger.FromContext(ctx).InfoContext(ctx, "redirect payment declined",
			"payment_reference", cb.ReferenceID, "response_code", cb.ResponseCode)
		return nil, &PaymentDeclinedError{Method: domain.PaymentMethodRedirectGateway, Code: cb.ResponseCode}
	}
	if !id.Authenticated() {
		return nil, ErrUnauthenticated
	}

	pending, err := s.pending.GetPendingCheckout(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return s.replayed(ctx, domain.PaymentMethodRedirectGateway, id, cb.ReferenceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending checkout: %w", err)
	}

	switch {
	case pending.Method != domain.PaymentMethodRedirectGateway, pending.ReferenceID != cb.ReferenceID:
		return s.replayed(ctx, domain.PaymentMethodRedirectGateway, id, cb.ReferenceID)
	case !pending.Amount.Round(2).Equal(cb.Amount):
		return nil, fmt.Errorf("%w: amount %s, expected %s", ErrPaymentMismatch, cb.Amount, pending.Amount.StringFixed(2))
	case pending.CustomerID != id.CustomerID:
		return nil, ErrUnauthenticated
	}

	a := newAttempt()
	a.method = domain.PaymentMethodRedirectGateway
	for _, next := range []domain.CheckoutStatus{domain.CheckoutStatusReadyToCheckout, domain.CheckoutStatusPaymentChosen} {
		if err := a.to(next); err != nil {
			return nil, err
		}
	}

	draft := orderDraft{
		customerID: pending.CustomerID,
		method:     domain.PaymentMethodRedirectGateway,
		shipping:   pending.Shipping,
		note:       redirectPaidNote,
		reference:  cb.ReferenceID,
		lines:      pending.Lines,
	}
	return s.commit(ctx, a, sessionID, draft)
}

// replayed resolves a callback that has no pending checkout to match against. Only the
// customer who placed the order gets it back.
func (s *Service) replayed(ctx context.Context, method domain.PaymentMethod, id Identity, reference string) (*Result, error) {
	existing, err := s.orders.FindOrderByPaymentReference(ctx, reference)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, fmt.Errorf("%w: no pending checkout for reference %s", ErrPaymentMismatch, reference)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if existing.Header.CustomerID != id.CustomerID {
		logger.FromContext(ctx).WarnContext(ctx, "replayed payment reference belongs to another customer",
			"payment_reference", reference, "customer_id", id.CustomerID)
		return nil, fmt.Errorf("%w: no pending checkout for reference %s", ErrPaymentMismatch, reference)
	}
	s.metrics.CheckoutOrders.WithLabelValues(string(method), metrics.OutcomeDuplicate).Inc()
	logger.FromContext(ctx).InfoContext(ctx, "replayed payment callback",
		"payment_reference", reference, "order_id", existing.Header.ID)
	return &Result{
		Status:    domain.CheckoutStatusCommitted,
		Method:    method,
		Order:     existing,
		Duplicate: true,
	}, nil
}
