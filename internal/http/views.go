package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"catalog", "cart", "checkout", "success", "failure", "error"}

type views struct {
	pages map[string]*template.Template
}

func newViews() (*views, error) {
	funcs := template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	}

	v := &views{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

// render writes the page only once it executed cleanly, so a template error never
// leaves a half-written body behind a 200.
func (v *views) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, ok := v.pages[name]
	if !ok {
		requestLogger(r).ErrorContext(r.Context(), "unknown view", "view", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		requestLogger(r).ErrorContext(r.Context(), "failed to render view", "view", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (v *views) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	v.render(w, r, status, "error", errorPage{Status: status, Message: message})
}

type catalogPage struct {
	Items []*domain.CatalogItem
}

type cartPage struct {
	Lines []domain.CartLine
	Total decimal.Decimal
}

type checkoutForm struct {
	RecipientName string
	Address       string
	Phone         string
	Note          string
	UseProfile    bool
	PaymentMethod string
}

type checkoutPage struct {
	Lines  []domain.CartLine
	Total  decimal.Decimal
	Form   checkoutForm
	Errors map[string]string
}

type successPage struct {
	Order *domain.Order
}

type failurePage struct {
	Code    string
	Message string
}

type errorPage struct {
	Status  int
	Message string
}
