package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists an order and its items in one transaction. The frozen
// discount and prices are written exactly as resolved by the service.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO orders (id, customer_id, created, updated, paid, discount)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, o.CustomerID, o.Created, o.Updated, o.Paid, o.Discount,
		)
		if err != nil {
			return err
		}

		for _, item := range o.Items {
			_, err := tx.Exec(ctx,
				`INSERT INTO order_items (id, order_id, product_id, price, quantity, discount)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				item.ID, item.OrderID, item.ProductID, item.Price, item.Quantity, item.Discount,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order with its items. It returns order.ErrNotFound when
// no matching order exists.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	err := r.pool.QueryRow(ctx,
		`SELECT id, customer_id, created, updated, paid, discount
		 FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.CustomerID, &o.Created, &o.Updated, &o.Paid, &o.Discount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, price, quantity, discount
		 FROM order_items WHERE order_id = $1 ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting order %q items: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item order.Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Price, &item.Quantity, &item.Discount); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading order items: %w", err)
	}
	return &o, nil
}

// SetPaid updates only the paid flag and the updated timestamp. Frozen
// discount and prices stay untouched.
func (r *OrderRepository) SetPaid(ctx context.Context, id string, paid bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET paid = $2, updated = now() WHERE id = $1`,
		id, paid,
	)
	if err != nil {
		return fmt.Errorf("updating order %q paid flag: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// UpdatePricing overwrites the frozen order discount and per-item
// price/discount in one transaction. Used only by the explicit reprice path.
func (r *OrderRepository) UpdatePricing(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE orders SET discount = $2, updated = $3 WHERE id = $1`,
			o.ID, o.Discount, o.Updated,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return order.ErrNotFound
		}

		for _, item := range o.Items {
			_, err := tx.Exec(ctx,
				`UPDATE order_items SET price = $2, discount = $3 WHERE id = $1`,
				item.ID, item.Price, item.Discount,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return order.ErrNotFound
		}
		return fmt.Errorf("updating order %q pricing: %w", o.ID, err)
	}
	return nil
}
