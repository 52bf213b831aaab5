package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// failure is how one checkout error shows up on the wire.
type failure struct {
	status  int
	code    string
	message string
	fields  map[string]string
	// declineCode is the gateway's own response code, when it sent one.
	declineCode string
}

// classify maps every error the cart and checkout services return onto an HTTP status.
func classify(err error) failure {
	var (
		validation *checkout.ValidationError
		declined   *checkout.PaymentDeclinedError
	)
	switch {
	case errors.As(err, &validation):
		return failure{status: http.StatusUnprocessableEntity, code: "validation_failed",
			message: "some checkout fields are missing or invalid", fields: validation.Fields}
	case errors.As(err, &declined):
		return failure{status: http.StatusPaymentRequired, code: "payment_declined",
			message: "the payment was not completed", declineCode: declined.Code}
	case errors.Is(err, cart.ErrItemNotFound):
		return failure{status: http.StatusNotFound, code: "item_not_found", message: "item not found"}
	case errors.Is(err, cart.ErrInvalidQuantity):
		return failure{status: http.StatusBadRequest, code: "invalid_quantity", message: "quantity must be greater than 0"}
	case errors.Is(err, checkout.ErrEmptyCart):
		return failure{status: http.StatusConflict, code: "empty_cart", message: "cart is empty"}
	case errors.Is(err, checkout.ErrUnauthenticated):
		return failure{status: http.StatusUnauthorized, code: "unauthenticated", message: "sign in to check out"}
	case errors.Is(err, checkout.ErrProfileNotFound):
		return failure{status: http.StatusConflict, code: "profile_not_found", message: "no saved customer profile to ship to"}
	case errors.Is(err, checkout.ErrPaymentMismatch):
		return failure{status: http.StatusPaymentRequired, code: "payment_mismatch",
			message: "the payment response did not match this checkout"}
	case errors.Is(err, checkout.ErrGatewayTransport):
		return failure{status: http.StatusBadGateway, code: "gateway_unavailable",
			message: "the payment provider could not be reached"}
	case errors.Is(err, context.DeadlineExceeded):
		return failure{status: http.StatusGatewayTimeout, code: "timeout", message: "request timed out"}
	default:
		return failure{status: http.StatusInternalServerError, code: "internal_error", message: "internal server error"}
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	f := classify(err)
	logFailure(r, f, err)
	respondJSON(w, f.status, ErrorResponse{
		Error:   f.message,
		Code:    f.code,
		Details: f.declineCode,
		Fields:  f.fields,
	})
}

func logFailure(r *http.Request, f failure, err error) {
	log := requestLogger(r)
	if f.status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "status", f.status, "error", err)
		return
	}
	log.InfoContext(r.Context(), "request rejected", "status", f.status, "code", f.code, "error", err)
}
