// Package auth resolves the caller's customer identity from a signed JWT.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie the storefront views read the token from when no
// Authorization header is present.
const CookieName = "storefront_token"

var (
	ErrNoSecret       = errors.New("jwt secret is not configured")
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingSubject = errors.New("token has no customer_id")
)

type Claims struct {
	jwt.RegisteredClaims
	CustomerID string `json:"customer_id"`
}

// Validator checks HS256 tokens signed with a shared secret.
type Validator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewValidator(secret, issuer string) *Validator {
	return &Validator{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (v *Validator) Validate(tokenStr string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrNoSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.CustomerID == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// Issue signs a token for customerID. Used by the token command for local runs.
func (v *Validator) Issue(customerID string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrNoSecret
	}
	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customerID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		CustomerID: customerID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type ctxKey struct{}

func WithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, customerID)
}

// CustomerID returns the authenticated customer, if any.
func CustomerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// NewMiddleware attaches the customer id of a valid token to the request context.
// Requests without a token, or with a bad one, continue anonymously: the checkout
// operations decide whether an identity is required.
func NewMiddleware(validator *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" || validator == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.Validate(tokenStr)
			if err != nil {
				logger.FromContext(r.Context()).DebugContext(r.Context(), "ignoring token", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCustomerID(r.Context(), claims.CustomerID)))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
