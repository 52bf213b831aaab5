// Package hosted is a client for a two-call hosted-checkout gateway: create an order,
// let the buyer approve it on the gateway's side, then capture it.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const StatusCompleted = "COMPLETED"

// ErrTransport covers everything that stopped a call from getting a gateway answer.
var ErrTransport = errors.New("hosted gateway unreachable")

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hosted gateway returned %d: %s", e.StatusCode, e.Body)
}

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	now     func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[[]byte](circuitbreaker.Settings{
			Name: "hosted-gateway",
			IsSuccessful: func(err error) bool {
				// 4xx is the gateway answering, not the gateway being down
				var apiErr *APIError
				return err == nil || (errors.As(err, &apiErr) && apiErr.StatusCode < 500)
			},
		}),
		now: time.Now,
	}
}

type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type PurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Amount      Amount `json:"amount"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// ApproveURL is where the buyer approves the order, if the gateway returned one.
func (o *Order) ApproveURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// Capture is a capture answer. Raw keeps the gateway's full payload.
type Capture struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Raw    json.RawMessage `json:"-"`
}

func (c *Capture) Completed() bool {
	return c.Status == StatusCompleted
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, reference string) (*Order, error) {
	body, err := json.Marshal(createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []PurchaseUnit{{
			ReferenceID: reference,
			Amount:      Amount{CurrencyCode: currency, Value: amount.StringFixed(2)},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal create order: %w", err)
	}

	resp, err := c.call(ctx, http.MethodPost, "/v2/checkout/orders", body)
	if err != nil {
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(resp, &order); err != nil {
		return nil, fmt.Errorf("%w: decode create order: %v", ErrTransport, err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: create order returned no id", ErrTransport)
	}
	return &order, nil
}

func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	resp, err := c.call(ctx, http.MethodPost, path, []byte("{}"))
	if err != nil {
		return nil, err
	}

	var capture Capture
	if err := json.Unmarshal(resp, &capture); err != nil {
		return nil, fmt.Errorf("%w: decode capture: %v", ErrTransport, err)
	}
	capture.Raw = json.RawMessage(resp)
	return &capture, nil
}

func (c *Client) call(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	resp, err := c.breaker.Execute(func() ([]byte, error) {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		return c.do(ctx, method, path, body, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")
		})
	})
	if circuitbreaker.IsOpen(err) {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return resp, err
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a cached client-credentials token, fetching a new one a minute before expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	resp, err := c.do(ctx, http.MethodPost, "/v1/oauth2/token", []byte(form.Encode()), func(req *http.Request) {
		req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	})
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp, &tr); err != nil || tr.AccessToken == "" {
		return "", fmt.Errorf("%w: bad token response", ErrTransport)
	}

	c.token = tr.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, decorate func(*http.Request)) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
