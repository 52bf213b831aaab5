package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrUnauthenticated     = errors.New("checkout requires an authenticated customer")
	ErrProfileNotFound     = errors.New("customer profile not found")
	ErrPaymentDeclined     = errors.New("payment was not completed")
	ErrPaymentMismatch     = errors.New("payment callback does not match the pending checkout")
	ErrGatewayTransport    = errors.New("payment gateway call failed")
	ErrPersistence         = errors.New("failed to persist order")
	IllegalTransitionError = errors.New("illegal transition of checkout status")
)

// ValidationError lists the checkout form fields that were rejected, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid checkout form: " + strings.Join(names, ", ")
}

// PaymentDeclinedError is a gateway answering that the money did not move.
type PaymentDeclinedError struct {
	Method domain.PaymentMethod
	Code   string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("%s payment declined with code %q", e.Method, e.Code)
}

func (e *PaymentDeclinedError) Is(target error) bool {
	return target == ErrPaymentDeclined
}
