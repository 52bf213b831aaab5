package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type CheckoutService interface {
	Begin(ctx context.Context, sessionID string) (*checkout.Summary, error)
	PlaceOrder(ctx context.Context, req checkout.PlaceOrderRequest) (*checkout.Result, error)
	FinalizeRedirect(ctx context.Context, sessionID string, id checkout.Identity, query url.Values) (*checkout.Result, error)
	CreateHostedOrder(ctx context.Context, sessionID string, id checkout.Identity) (*checkout.HostedOrder, error)
	CaptureHostedOrder(ctx context.Context, sessionID string, id checkout.Identity, orderID, note string) (*checkout.CaptureResult, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
}

// CheckoutHandler serves the checkout form, the redirect gateway return URL and the
// result pages.
type CheckoutHandler struct {
	checkout CheckoutService
	orders   OrderReader
	views    *views
	timeout  time.Duration
}

func NewCheckoutHandler(svc CheckoutService, orders OrderReader, v *views, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		orders:   orders,
		views:    v,
		timeout:  timeout,
	}
}

func (h *CheckoutHandler) ShowCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.checkout.Begin(ctx, sessionID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !identity(r).Authenticated() {
		h.fail(w, r, checkout.ErrUnauthenticated)
		return
	}

	h.views.render(w, r, http.StatusOK, "checkout", checkoutPage{
		Lines: summary.Lines,
		Total: summary.Total,
		Form:  checkoutForm{UseProfile: true, PaymentMethod: string(domain.PaymentMethodCOD)},
	})
}

func (h *CheckoutHandler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := r.ParseForm(); err != nil {
		h.views.renderError(w, r, http.StatusBadRequest, "invalid form")
		return
	}
	form := checkoutForm{
		RecipientName: r.PostFormValue("recipient_name"),
		Address:       r.PostFormValue("address"),
		Phone:         r.PostFormValue("phone"),
		Note:          r.PostFormValue("note"),
		UseProfile:    formBool(r.PostFormValue("use_profile")),
		PaymentMethod: r.PostFormValue("payment_method"),
	}

	res, err := h.checkout.PlaceOrder(ctx, checkout.PlaceOrderRequest{
		SessionID: sessionID(r.Context()),
		Identity:  identity(r),
		Method:    form.PaymentMethod,
		Shipping: domain.ShippingDetails{
			RecipientName: form.RecipientName,
			Address:       form.Address,
			Phone:         form.Phone,
			Note:          form.Note,
			UseProfile:    form.UseProfile,
		},
		ClientIP: clientIP(r),
	})

	var validation *checkout.ValidationError
	if errors.As(err, &validation) {
		h.redisplay(ctx, w, r, form, validation)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if res.RedirectURL != "" {
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return
	}
	http.Redirect(w, r, successURL(res.Order), http.StatusSeeOther)
}

// redisplay shows the form again with what the buyer typed. The cart is untouched.
func (h *CheckoutHandler) redisplay(ctx context.Context, w http.ResponseWriter, r *http.Request,
	form checkoutForm, validation *checkout.ValidationError) {

	summary, err := h.checkout.Begin(ctx, sessionID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logFailure(r, classify(validation), validation)
	h.views.render(w, r, http.StatusUnprocessableEntity, "checkout", checkoutPage{
		Lines:  summary.Lines,
		Total:  summary.Total,
		Form:   form,
		Errors: validation.Fields,
	})
}

// Callback is the redirect gateway's return URL.
func (h *CheckoutHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.checkout.FinalizeRedirect(ctx, sessionID(r.Context()), identity(r), r.URL.Query())

	var declined *checkout.PaymentDeclinedError
	if errors.As(err, &declined) {
		logFailure(r, classify(err), err)
		http.Redirect(w, r, "/checkout/failure?code="+url.QueryEscape(declined.Code), http.StatusSeeOther)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, successURL(res.Order), http.StatusSeeOther)
}

// Success shows the committed order when it belongs to the caller, and a plain
// confirmation otherwise.
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page := successPage{}
	id := identity(r)
	if orderID, err := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64); err == nil && id.Authenticated() {
		order, err := h.orders.GetOrder(ctx, orderID)
		switch {
		case err != nil:
			requestLogger(r).InfoContext(r.Context(), "order for success page not loaded", "order_id", orderID, "error", err)
		case order.Header.CustomerID == id.CustomerID:
			page.Order = order
		}
	}
	h.views.render(w, r, http.StatusOK, "success", page)
}

func (h *CheckoutHandler) Failure(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	message := "The payment was not completed."
	if code != "" {
		message = fmt.Sprintf("The payment gateway declined the payment (code %s).", code)
	}
	h.views.render(w, r, http.StatusOK, "failure", failurePage{Code: code, Message: message})
}

func (h *CheckoutHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	f := classify(err)
	logFailure(r, f, err)

	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		http.Redirect(w, r, "/", http.StatusFound)
	case errors.Is(err, checkout.ErrPaymentDeclined), errors.Is(err, checkout.ErrPaymentMismatch),
		errors.Is(err, checkout.ErrGatewayTransport):
		h.views.render(w, r, f.status, "failure", failurePage{Code: f.declineCode, Message: f.message})
	default:
		h.views.renderError(w, r, f.status, f.message)
	}
}

func successURL(order *domain.Order) string {
	if order == nil {
		return "/checkout/success"
	}
	return "/checkout/success?order_id=" + strconv.FormatInt(order.Header.ID, 10)
}

func identity(r *http.Request) checkout.Identity {
	customerID, _ := auth.CustomerID(r.Context())
	return checkout.Identity{CustomerID: customerID}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}
