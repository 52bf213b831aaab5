package checkout

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// PlaceOrderRequest is a submitted checkout form.
type PlaceOrderRequest struct {
	SessionID string
	Identity  Identity
	Method    string
	Shipping  domain.ShippingDetails
	ClientIP  string
}

// PlaceOrder handles the checkout form. Cash on delivery commits right away; the redirect
// gateway returns a Result carrying the URL to send the buyer to.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (res *Result, err error) {
	method := domain.ParsePaymentMethod(req.Method)
	ctx, span := s.startSpan(ctx, "checkout.PlaceOrder")
	defer func() {
		if err != nil {
			s.countFailure(method, err)
		}
		endSpan(span, err)
	}()

	if method == domain.PaymentMethodHostedGateway {
		return nil, &ValidationError{Fields: map[string]string{
			"payment_method": "hosted checkout is started through the checkout API",
		}}
	}

	a, lines, err := s.ready(ctx, req.SessionID, req.Identity)
	if err != nil {
		return nil, err
	}

	shipping, err := s.resolveShipping(ctx, req.Identity.CustomerID, req.Shipping)
	if err != nil {
		a.fail()
		return nil, err
	}

	a.method = method
	if err := a.to(domain.CheckoutStatusPaymentChosen); err != nil {
		return nil, err
	}

	if method == domain.PaymentMethodRedirectGateway {
		return s.initiateRedirect(ctx, a, req, lines, shipping)
	}

	draft := orderDraft{
		customerID: req.Identity.CustomerID,
		method:     domain.PaymentMethodCOD,
		shipping:   shipping,
		note:       shipping.Note,
		reference:  s.newReference(),
		lines:      lines,
	}
	return s.commit(ctx, a, req.SessionID, draft)
}
