package session

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Store keeps per-session state. Writes for the same session are last-write-wins.
type Store interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	SetCart(ctx context.Context, sessionID string, cart *domain.Cart) error
	DeleteCart(ctx context.Context, sessionID string) error

	GetPendingCheckout(ctx context.Context, sessionID string) (*domain.PendingCheckout, error)
	SetPendingCheckout(ctx context.Context, sessionID string, pending *domain.PendingCheckout) error
	DeletePendingCheckout(ctx context.Context, sessionID string) error
}

var ErrNotFound = errors.New("session key not found")
