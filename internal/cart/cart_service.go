package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"golang.org/x/sync/singleflight"
)

var (
	ErrItemNotFound    = errors.New("item not found in catalog")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// CatalogLookup resolves an item reference into its current price and display data.
type CatalogLookup interface {
	FindItem(ctx context.Context, itemID int64) (*domain.CatalogItem, error)
}

type Service struct {
	catalog  CatalogLookup
	sessions session.Store
	sfg      singleflight.Group // collapses concurrent reads of the same session
}

func NewService(catalog CatalogLookup, sessions session.Store) *Service {
	return &Service{
		catalog:  catalog,
		sessions: sessions,
	}
}

func (s *Service) AddItem(ctx context.Context, sessionID string, itemID int64, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	item, err := s.catalog.FindItem(ctx, itemID)
	if errors.Is(err, repository.ErrItemNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up item %d: %w", itemID, err)
	}

	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cart.Add(domain.CartLine{
		ItemID:      item.ID,
		DisplayName: item.Name,
		UnitPrice:   item.UnitPrice,
		ImageRef:    item.ImageRef,
		Quantity:    quantity,
	})

	if err := s.sessions.SetCart(ctx, sessionID, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	return cart, nil
}

func (s *Service) RemoveItem(ctx context.Context, sessionID string, itemID int64) (*domain.Cart, error) {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !cart.Remove(itemID) {
		return cart, nil
	}

	if err := s.sessions.SetCart(ctx, sessionID, cart); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	return cart, nil
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteCart(ctx, sessionID); err != nil {
		logger.FromContext(ctx).ErrorContext(ctx, "failed to clear cart", "session_id", sessionID, "error", err)
		return err
	}
	return nil
}

// RemoveLines takes an ordered snapshot out of the session's cart. Anything added after
// the snapshot was taken stays; a cart left empty is deleted.
func (s *Service) RemoveLines(ctx context.Context, sessionID string, lines []domain.CartLine) error {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	cart.Subtract(lines)
	if cart.IsEmpty() {
		return s.Clear(ctx, sessionID)
	}

	if err := s.sessions.SetCart(ctx, sessionID, cart); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (s *Service) Contents(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		return s.load(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	// the cart may be shared with other callers of Do
	return v.(*domain.Cart).Snapshot(), nil
}

func (s *Service) load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, err := s.sessions.GetCart(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return domain.NewCart(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return cart, nil
}
