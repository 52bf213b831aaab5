package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const EventTypeOrderPlaced = "order.placed"

// OrderPlacedEvent is the outbox payload written in the same transaction as the order.
type OrderPlacedEvent struct {
	OrderID          int64                `json:"order_id"`
	CustomerID       string               `json:"customer_id"`
	PaymentMethod    domain.PaymentMethod `json:"payment_method"`
	PaymentReference string               `json:"payment_reference"`
	Total            decimal.Decimal      `json:"total"`
	Lines            []domain.OrderLine   `json:"lines"`
	PlacedAt         time.Time            `json:"placed_at"`
}

// CreateOrder writes the header, every line and the order.placed outbox row in one
// transaction. The returned order carries the assigned id; the argument is not modified.
// A payment reference that already owns an order yields *DuplicatePaymentError.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	h := order.Header
	var existingID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE payment_reference = $1`, h.PaymentReference).Scan(&existingID)
	if err == nil {
		return nil, &DuplicatePaymentError{Reference: h.PaymentReference, OrderID: existingID}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query order by payment reference: %w", err)
	}

	var orderID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (customer_id, recipient_name, address, phone, placed_at, payment_method,
		                     shipping_method, status_code, note, payment_reference)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		h.CustomerID,
		h.RecipientName,
		h.Address,
		h.Phone,
		h.PlacedAt.UTC(),
		string(h.PaymentMethod),
		h.ShippingMethod,
		h.StatusCode,
		h.Note,
		h.PaymentReference,
	).Scan(&orderID)
	if err != nil {
		if isUniqueViolation(err) {
			// release the connection before looking up the winner
			_ = tx.Rollback()
			return nil, r.duplicateOf(ctx, h.PaymentReference)
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	lines := make([]domain.OrderLine, len(order.Lines))
	for i, line := range order.Lines {
		line.OrderID = orderID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_lines (order_id, item_id, quantity, unit_price, discount)
			 VALUES ($1, $2, $3, $4, $5)`,
			line.OrderID,
			line.ItemID,
			line.Quantity,
			line.UnitPrice,
			line.Discount,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order line %d: %w", line.ItemID, err)
		}
		lines[i] = line
	}

	created := &domain.Order{Header: h, Lines: lines}
	created.Header.ID = orderID

	payload, err := json.Marshal(OrderPlacedEvent{
		OrderID:          orderID,
		CustomerID:       h.CustomerID,
		PaymentMethod:    h.PaymentMethod,
		PaymentReference: h.PaymentReference,
		Total:            created.Total(),
		Lines:            lines,
		PlacedAt:         h.PlacedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order event: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4)`,
		strconv.FormatInt(orderID, 10),
		EventTypeOrderPlaced,
		string(payload),
		time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, r.duplicateOf(ctx, h.PaymentReference)
		}
		return nil, fmt.Errorf("commit order: %w", err)
	}
	return created, nil
}

// duplicateOf is used after a concurrent writer won the unique index race.
func (r *Repository) duplicateOf(ctx context.Context, reference string) error {
	existing, err := r.FindOrderByPaymentReference(ctx, reference)
	if err != nil {
		return &DuplicatePaymentError{Reference: reference}
	}
	return &DuplicatePaymentError{Reference: reference, OrderID: existing.Header.ID}
}

func (r *Repository) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return r.getOrder(ctx, `WHERE id = $1`, orderID)
}

func (r *Repository) FindOrderByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	return r.getOrder(ctx, `WHERE payment_reference = $1`, reference)
}

func (r *Repository) getOrder(ctx context.Context, where string, arg any) (*domain.Order, error) {
	query := `SELECT id, customer_id, recipient_name, address, phone, placed_at, payment_method,
	                 shipping_method, status_code, note, payment_reference
	          FROM orders ` + where

	var (
		order  domain.Order
		method string
	)
	h := &order.Header
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&h.ID,
		&h.CustomerID,
		&h.RecipientName,
		&h.Address,
		&h.Phone,
		&h.PlacedAt,
		&method,
		&h.ShippingMethod,
		&h.StatusCode,
		&h.Note,
		&h.PaymentReference,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	h.PaymentMethod = domain.PaymentMethod(method)

	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, item_id, quantity, unit_price, discount
		 FROM order_lines WHERE order_id = $1 ORDER BY item_id`, h.ID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.OrderID, &line.ItemID, &line.Quantity, &line.UnitPrice, &line.Discount); err != nil {
			return nil, fmt.Errorf("scan order line row: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return &order, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var liteErr *sqlitedrv.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
