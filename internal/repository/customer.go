package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (r *Repository) FindCustomer(ctx context.Context, customerID string) (*domain.CustomerProfile, error) {
	query := `SELECT id, name, address, phone FROM customers WHERE id = $1`

	var p domain.CustomerProfile
	err := r.db.QueryRowContext(ctx, query, customerID).Scan(&p.ID, &p.Name, &p.Address, &p.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query customer by id: %w", err)
	}
	return &p, nil
}
