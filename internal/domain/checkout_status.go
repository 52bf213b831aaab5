package domain

type CheckoutStatus string

const (
	CheckoutStatusEmpty           CheckoutStatus = "EMPTY"
	CheckoutStatusReadyToCheckout CheckoutStatus = "READY_TO_CHECKOUT"
	CheckoutStatusPaymentChosen   CheckoutStatus = "PAYMENT_CHOSEN"
	CheckoutStatusCommitting      CheckoutStatus = "COMMITTING"
	CheckoutStatusCommitted       CheckoutStatus = "COMMITTED"
	CheckoutStatusFailed          CheckoutStatus = "FAILED"
)

var transitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusEmpty:           {CheckoutStatusReadyToCheckout},
	CheckoutStatusReadyToCheckout: {CheckoutStatusPaymentChosen, CheckoutStatusFailed},
	CheckoutStatusPaymentChosen:   {CheckoutStatusCommitting, CheckoutStatusFailed},
	CheckoutStatusCommitting:      {CheckoutStatusCommitted, CheckoutStatusFailed},
}

func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCommitted || s == CheckoutStatusFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
