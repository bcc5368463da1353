package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-api/internal/domain"
	outboxrepo "storefront-api/internal/repository/outbox"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const orderColumns = `o.id::text, o.buyer_id, o.shipping_address, o.payment_summary, o.subtotal_cents, o.delivery_fee_cents, o.discount_cents, o.status, o.payment_intent_id, o.created_at`

func (r *postgresRepo) Place(ctx context.Context, in PlaceInput) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// A retry of the same checkout reuses the payment intent. Give back the
	// stock the earlier attempt took before re-checking, so retries are
	// stock-neutral.
	var existingID string
	err = tx.QueryRow(ctx, `
SELECT id::text
FROM orders
WHERE payment_intent_id = $1
FOR UPDATE
`, in.Order.PaymentIntentID).Scan(&existingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existingID != "" {
		if err := restoreOrderStock(ctx, tx, existingID); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, existingID); err != nil {
			return nil, err
		}
	}

	// Lock product rows in a stable order, verify every line has enough
	// stock before mutating anything, then decrement.
	items := make([]domain.OrderItem, len(in.Order.Items))
	copy(items, in.Order.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	for _, item := range items {
		var inStock int
		err := tx.QueryRow(ctx, `
SELECT quantity_in_stock
FROM products
WHERE id = $1
FOR UPDATE
`, item.ProductID).Scan(&inStock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("product %s: %w", item.ProductID, domain.ErrNotFound)
			}
			return nil, err
		}
		if inStock < item.Quantity {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, domain.ErrInsufficientStock)
		}
	}
	for _, item := range items {
		if _, err := tx.Exec(ctx, `
UPDATE products
SET quantity_in_stock = quantity_in_stock - $2
WHERE id = $1
`, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	shippingJSON, err := json.Marshal(in.Order.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("encode shipping address: %w", err)
	}
	summaryJSON, err := json.Marshal(in.Order.PaymentSummary)
	if err != nil {
		return nil, fmt.Errorf("encode payment summary: %w", err)
	}

	result := in.Order
	err = tx.QueryRow(ctx, `
INSERT INTO orders (buyer_id, shipping_address, payment_summary, subtotal_cents, delivery_fee_cents, discount_cents, status, payment_intent_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (payment_intent_id) DO UPDATE SET
    subtotal_cents = EXCLUDED.subtotal_cents,
    delivery_fee_cents = EXCLUDED.delivery_fee_cents,
    discount_cents = EXCLUDED.discount_cents,
    created_at = now()
RETURNING id::text, status, created_at
`,
		in.Order.BuyerID,
		shippingJSON,
		summaryJSON,
		in.Order.SubtotalCents,
		in.Order.DeliveryFeeCents,
		in.Order.DiscountCents,
		string(domain.OrderStatusPending),
		in.Order.PaymentIntentID,
	).Scan(&result.ID, &result.Status, &result.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, item := range in.Order.Items {
		if _, err := tx.Exec(ctx, `
INSERT INTO order_items (order_id, product_id, name, picture_url, price_cents, quantity)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
`, result.ID, item.ProductID, item.Name, item.PictureURL, item.PriceCents, item.Quantity); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `
UPDATE baskets
SET active = FALSE,
    coupon = NULL,
    payment_intent_id = NULL,
    client_secret = NULL
WHERE id = $1
`, in.BasketID); err != nil {
		return nil, err
	}

	if in.Event != nil {
		if err := outboxrepo.Insert(ctx, tx, *in.Event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, buyerID, id string) (*domain.Order, error) {
	q := `
SELECT ` + orderColumns + `
FROM orders o
WHERE o.buyer_id = $1 AND o.id = $2
`
	o, err := scanOrder(r.pool.QueryRow(ctx, q, buyerID, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	q := `
SELECT ` + orderColumns + `
FROM orders o
WHERE o.payment_intent_id = $1
`
	o, err := scanOrder(r.pool.QueryRow(ctx, q, intentID))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	q := `
SELECT ` + orderColumns + `
FROM orders o
WHERE o.buyer_id = $1
ORDER BY o.created_at DESC
`
	rows, err := r.pool.Query(ctx, q, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *postgresRepo) MarkPaymentReceived(ctx context.Context, intentID string, event *outboxrepo.Message) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var id string
	var status domain.OrderStatus
	err = tx.QueryRow(ctx, `
SELECT id::text, status
FROM orders
WHERE payment_intent_id = $1
FOR UPDATE
`, intentID).Scan(&id, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if status != domain.OrderStatusPaymentReceived {
		if _, err := tx.Exec(ctx, `
UPDATE orders
SET status = $2
WHERE id = $1
`, id, string(domain.OrderStatusPaymentReceived)); err != nil {
			return nil, err
		}
		if event != nil {
			if err := outboxrepo.Insert(ctx, tx, *event); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetByPaymentIntent(ctx, intentID)
}

func (r *postgresRepo) RestockPaymentFailed(ctx context.Context, intentID string, event *outboxrepo.Message) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var id string
	var status domain.OrderStatus
	err = tx.QueryRow(ctx, `
SELECT id::text, status
FROM orders
WHERE payment_intent_id = $1
FOR UPDATE
`, intentID).Scan(&id, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderMissing
		}
		return nil, err
	}

	// At-least-once webhook delivery: a replayed failure notification must
	// not credit stock twice.
	if status != domain.OrderStatusPaymentFailed {
		if err := restoreOrderStock(ctx, tx, id); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
UPDATE orders
SET status = $2
WHERE id = $1
`, id, string(domain.OrderStatusPaymentFailed)); err != nil {
			return nil, err
		}
		if event != nil {
			if err := outboxrepo.Insert(ctx, tx, *event); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetByPaymentIntent(ctx, intentID)
}

func restoreOrderStock(ctx context.Context, tx pgx.Tx, orderID string) error {
	_, err := tx.Exec(ctx, `
UPDATE products p
SET quantity_in_stock = p.quantity_in_stock + i.quantity
FROM order_items i
WHERE i.order_id = $1 AND p.id = i.product_id
`, orderID)
	return err
}

func (r *postgresRepo) loadItems(ctx context.Context, o *domain.Order) error {
	const q = `
SELECT product_id::text, name, COALESCE(picture_url, ''), price_cents, quantity
FROM order_items
WHERE order_id = $1
ORDER BY name ASC
`
	rows, err := r.pool.Query(ctx, q, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.PictureURL, &item.PriceCents, &item.Quantity); err != nil {
			return err
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var shippingJSON, summaryJSON []byte
	if err := row.Scan(
		&o.ID,
		&o.BuyerID,
		&shippingJSON,
		&summaryJSON,
		&o.SubtotalCents,
		&o.DeliveryFeeCents,
		&o.DiscountCents,
		&o.Status,
		&o.PaymentIntentID,
		&o.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(shippingJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	if err := json.Unmarshal(summaryJSON, &o.PaymentSummary); err != nil {
		return nil, fmt.Errorf("decode payment summary: %w", err)
	}
	return &o, nil
}
