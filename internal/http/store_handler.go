package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type Catalog interface {
	ListItems(ctx context.Context) ([]*domain.CatalogItem, error)
}

type CartService interface {
	AddItem(ctx context.Context, sessionID string, itemID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, sessionID string, itemID int64) (*domain.Cart, error)
	Contents(ctx context.Context, sessionID string) ([]domain.CartLine, error)
}

// StoreHandler serves the catalog and the session cart.
type StoreHandler struct {
	catalog Catalog
	cart    CartService
	views   *views
	timeout time.Duration
}

func NewStoreHandler(catalog Catalog, cart CartService, v *views, timeout time.Duration) *StoreHandler {
	return &StoreHandler{
		catalog: catalog,
		cart:    cart,
		views:   v,
		timeout: timeout,
	}
}

func (h *StoreHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	items, err := h.catalog.ListItems(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.views.render(w, r, http.StatusOK, "catalog", catalogPage{Items: items})
}

func (h *StoreHandler) ShowCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lines, err := h.cart.Contents(ctx, sessionID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.views.render(w, r, http.StatusOK, "cart", cartPage{Lines: lines, Total: domain.TotalOf(lines)})
}

func (h *StoreHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := r.ParseForm(); err != nil {
		h.views.renderError(w, r, http.StatusBadRequest, "invalid form")
		return
	}
	itemID, err := strconv.ParseInt(r.PostFormValue("item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		h.views.renderError(w, r, http.StatusBadRequest, "item_id must be a positive integer")
		return
	}
	quantity := 1
	if q := r.PostFormValue("quantity"); q != "" {
		if quantity, err = strconv.Atoi(q); err != nil {
			h.views.renderError(w, r, http.StatusBadRequest, "quantity must be a number")
			return
		}
	}

	if _, err := h.cart.AddItem(ctx, sessionID(r.Context()), itemID, quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func (h *StoreHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		h.views.renderError(w, r, http.StatusBadRequest, "item_id must be a positive integer")
		return
	}

	if _, err := h.cart.RemoveItem(ctx, sessionID(r.Context()), itemID); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func (h *StoreHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	f := classify(err)
	logFailure(r, f, err)
	h.views.renderError(w, r, f.status, f.message)
}
