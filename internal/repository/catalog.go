package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (r *Repository) FindItem(ctx context.Context, itemID int64) (*domain.CatalogItem, error) {
	query := `SELECT id, name, unit_price, image_ref FROM products WHERE id = $1`

	var item domain.CatalogItem
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(
		&item.ID,
		&item.Name,
		&item.UnitPrice,
		&item.ImageRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item by id: %w", err)
	}
	return &item, nil
}

func (r *Repository) ListItems(ctx context.Context) ([]*domain.CatalogItem, error) {
	query := `SELECT id, name, unit_price, image_ref FROM products ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []*domain.CatalogItem
	for rows.Next() {
		var item domain.CatalogItem
		if err := rows.Scan(&item.ID, &item.Name, &item.UnitPrice, &item.ImageRef); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}
