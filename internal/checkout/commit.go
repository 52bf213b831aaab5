package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
)

type orderDraft struct {
	customerID string
	method     domain.PaymentMethod
	shipping   domain.ShippingDetails
	note       string
	reference  string
	lines      []domain.CartLine
}

// buildOrder produces the same header and line shape for every payment method.
func (s *Service) buildOrder(d orderDraft) *domain.Order {
	return &domain.Order{
		Header: domain.OrderHeader{
			CustomerID:       d.customerID,
			RecipientName:    d.shipping.RecipientName,
			Address:          d.shipping.Address,
			Phone:            d.shipping.Phone,
			PlacedAt:         s.now().UTC(),
			PaymentMethod:    d.method,
			ShippingMethod:   domain.DefaultShippingMethod,
			StatusCode:       domain.StatusConfirmed,
			Note:             d.note,
			PaymentReference: d.reference,
		},
		Lines: domain.LinesFromCart(d.lines),
	}
}

// commit persists the drafted order and, only once that succeeded, takes the ordered lines
// out of the session's cart and drops the pending checkout. Items added to the cart while a
// gateway payment was in flight stay in the cart. A reference that is already committed
// counts as committed.
func (s *Service) commit(ctx context.Context, a *attempt, sessionID string, d orderDraft) (*Result, error) {
	if err := a.to(domain.CheckoutStatusCommitting); err != nil {
		return nil, err
	}
	order := s.buildOrder(d)

	ctx, span := s.startSpan(ctx, "checkout.commit")
	span.SetAttributes(
		attribute.String("payment.method", string(order.Header.PaymentMethod)),
		attribute.String("payment.reference", order.Header.PaymentReference),
	)
	log := logger.FromContext(ctx)

	started := s.now()
	created, err := s.orders.CreateOrder(ctx, order)
	s.metrics.CommitMS.Observe(float64(s.now().Sub(started).Milliseconds()))

	duplicate := false
	var dup *repository.DuplicatePaymentError
	switch {
	case errors.As(err, &dup):
		duplicate = true
		created = &domain.Order{Header: order.Header, Lines: order.Lines}
		created.Header.ID = dup.OrderID
		log.InfoContext(ctx, "payment reference already committed",
			"payment_reference", dup.Reference, "order_id", dup.OrderID)
	case err != nil:
		a.fail()
		endSpan(span, err)
		log.ErrorContext(ctx, "order commit failed", "payment_reference", order.Header.PaymentReference, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if err := a.to(domain.CheckoutStatusCommitted); err != nil {
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", created.Header.ID))
	endSpan(span, nil)

	// the order is durable from here on; cleanup errors are logged, not returned.
	// A duplicate leaves the cart to the request that committed first.
	if !duplicate {
		if err := s.cart.RemoveLines(ctx, sessionID, d.lines); err != nil {
			log.WarnContext(ctx, "failed to clear cart after commit", "session_id", sessionID, "error", err)
		}
	}
	if err := s.pending.DeletePendingCheckout(ctx, sessionID); err != nil {
		log.WarnContext(ctx, "failed to drop pending checkout", "session_id", sessionID, "error", err)
	}

	outcome := metrics.OutcomeCommitted
	if duplicate {
		outcome = metrics.OutcomeDuplicate
	}
	s.metrics.CheckoutOrders.WithLabelValues(string(order.Header.PaymentMethod), outcome).Inc()
	log.InfoContext(ctx, "order committed",
		"order_id", created.Header.ID,
		"payment_method", order.Header.PaymentMethod,
		"total", created.Total().StringFixed(2),
		"duplicate", duplicate)

	return &Result{
		Status:    a.status,
		Method:    order.Header.PaymentMethod,
		Order:     created,
		Duplicate: duplicate,
	}, nil
}
