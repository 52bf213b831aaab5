package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HostedHandler is the JSON API a browser-side hosted checkout button talks to.
type HostedHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewHostedHandler(svc CheckoutService, timeout time.Duration) *HostedHandler {
	return &HostedHandler{
		checkout: svc,
		timeout:  timeout,
	}
}

type CaptureRequestDTO struct {
	Note string `json:"note"`
}

type CaptureResponseDTO struct {
	OrderID          int64           `json:"order_id"`
	PaymentReference string          `json:"payment_reference"`
	Status           string          `json:"status"`
	Total            string          `json:"total"`
	Duplicate        bool            `json:"duplicate"`
	Capture          json.RawMessage `json:"capture,omitempty"`
}

func (h *HostedHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.checkout.CreateHostedOrder(ctx, sessionID(r.Context()), identity(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (h *HostedHandler) CaptureOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// the body is optional; an empty one means the default note
	var req CaptureRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res, err := h.checkout.CaptureHostedOrder(ctx, sessionID(r.Context()), identity(r), chi.URLParam(r, "order_id"), req.Note)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := CaptureResponseDTO{
		Status:    string(res.Status),
		Duplicate: res.Duplicate,
		Capture:   res.Capture,
	}
	if res.Order != nil {
		resp.OrderID = res.Order.Header.ID
		resp.PaymentReference = res.Order.Header.PaymentReference
		resp.Total = res.Order.Total().StringFixed(2)
	}
	respondJSON(w, http.StatusOK, resp)
}
