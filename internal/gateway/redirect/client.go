// Package redirect talks to a browser-redirect payment gateway: it signs the outbound
// payment URL and verifies the signed query string the gateway sends back.
package redirect

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// SuccessCode is the only response code that means the payment went through.
const SuccessCode = "00"

const (
	paramVersion       = "vnp_Version"
	paramCommand       = "vnp_Command"
	paramTmnCode       = "vnp_TmnCode"
	paramAmount        = "vnp_Amount"
	paramCreateDate    = "vnp_CreateDate"
	paramCurrCode      = "vnp_CurrCode"
	paramIPAddr        = "vnp_IpAddr"
	paramLocale        = "vnp_Locale"
	paramOrderInfo     = "vnp_OrderInfo"
	paramOrderType     = "vnp_OrderType"
	paramReturnURL     = "vnp_ReturnUrl"
	paramTxnRef        = "vnp_TxnRef"
	paramResponseCode  = "vnp_ResponseCode"
	paramTransactionNo = "vnp_TransactionNo"
	paramBankCode      = "vnp_BankCode"
	paramSecureHash    = "vnp_SecureHash"
	paramHashType      = "vnp_SecureHashType"

	protocolVersion = "2.1.0"
	dateLayout      = "20060102150405"
)

var (
	ErrInvalidSignature  = errors.New("callback signature mismatch")
	ErrMalformedCallback = errors.New("malformed gateway callback")
)

type Config struct {
	BaseURL    string
	TmnCode    string
	HashSecret string
	ReturnURL  string
	Locale     string
}

type Client struct {
	cfg Config
	now func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.Locale == "" {
		cfg.Locale = "vn"
	}
	return &Client{cfg: cfg, now: time.Now}
}

// CallbackResult is the verified content of a gateway return.
type CallbackResult struct {
	ResponseCode  string
	ReferenceID   string
	Amount        decimal.Decimal
	TransactionNo string
	BankCode      string
}

func (r *CallbackResult) Succeeded() bool {
	return r.ResponseCode == SuccessCode
}

// BuildRedirectURL returns the signed gateway URL for intent. Amounts are sent in minor units.
func (c *Client) BuildRedirectURL(intent domain.PaymentIntent, clientIP string) (string, error) {
	if intent.ReferenceID == "" {
		return "", fmt.Errorf("payment intent has no reference id")
	}
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}

	created := intent.CreatedAt
	if created.IsZero() {
		created = c.now()
	}

	q := url.Values{}
	q.Set(paramVersion, protocolVersion)
	q.Set(paramCommand, "pay")
	q.Set(paramTmnCode, c.cfg.TmnCode)
	q.Set(paramAmount, toMinorUnits(intent.Amount))
	q.Set(paramCreateDate, created.Format(dateLayout))
	q.Set(paramCurrCode, intent.Currency)
	q.Set(paramIPAddr, clientIP)
	q.Set(paramLocale, c.cfg.Locale)
	q.Set(paramOrderInfo, intent.Description)
	q.Set(paramOrderType, "other")
	q.Set(paramReturnURL, c.cfg.ReturnURL)
	q.Set(paramTxnRef, intent.ReferenceID)

	signData := q.Encode()
	base.RawQuery = signData + "&" + paramSecureHash + "=" + c.sign(signData)
	return base.String(), nil
}

// ParseCallback verifies the signature on the gateway's return query and extracts the result.
// A bad signature is reported before anything in the query is trusted.
func (c *Client) ParseCallback(query url.Values) (*CallbackResult, error) {
	got := query.Get(paramSecureHash)
	if got == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedCallback, paramSecureHash)
	}

	signed := url.Values{}
	for k, v := range query {
		if !strings.HasPrefix(k, "vnp_") || k == paramSecureHash || k == paramHashType {
			continue
		}
		signed[k] = v
	}
	want := c.sign(signed.Encode())
	if !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return nil, ErrInvalidSignature
	}

	ref := query.Get(paramTxnRef)
	if ref == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedCallback, paramTxnRef)
	}
	amount, err := fromMinorUnits(query.Get(paramAmount))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	return &CallbackResult{
		ResponseCode:  query.Get(paramResponseCode),
		ReferenceID:   ref,
		Amount:        amount,
		TransactionNo: query.Get(paramTransactionNo),
		BankCode:      query.Get(paramBankCode),
	}, nil
}

func (c *Client) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(c.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func toMinorUnits(amount decimal.Decimal) string {
	return amount.Shift(2).Round(0).String()
}

func fromMinorUnits(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", s, err)
	}
	return v.Shift(-2), nil
}
