package checkout

import (
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// attempt tracks one checkout request through the status machine.
type attempt struct {
	status domain.CheckoutStatus
	method domain.PaymentMethod
}

func newAttempt() *attempt {
	return &attempt{status: domain.CheckoutStatusEmpty}
}

func (a *attempt) to(next domain.CheckoutStatus) error {
	if !domain.CanTransitionTo(a.status, next) {
		return fmt.Errorf("%w: %s -> %s", IllegalTransitionError, a.status, next)
	}
	a.status = next
	return nil
}

// fail moves the attempt to FAILED when the current status allows it.
func (a *attempt) fail() {
	if domain.CanTransitionTo(a.status, domain.CheckoutStatusFailed) {
		a.status = domain.CheckoutStatusFailed
	}
}
