package basket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-api/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const basketColumns = `b.id::text, b.user_id, b.active, b.coupon, COALESCE(b.payment_intent_id, ''), COALESCE(b.client_secret, ''), b.created_at`

func (r *postgresRepo) Create(ctx context.Context, userID string) (*domain.Basket, error) {
	const q = `
INSERT INTO baskets (user_id, active)
VALUES ($1, TRUE)
RETURNING id::text, user_id, active, coupon, COALESCE(payment_intent_id, ''), COALESCE(client_secret, ''), created_at
`
	row := r.pool.QueryRow(ctx, q, userID)
	return scanBasket(row)
}

func (r *postgresRepo) GetActiveByUser(ctx context.Context, userID string) (*domain.Basket, error) {
	q := `
SELECT ` + basketColumns + `
FROM baskets b
WHERE b.user_id = $1 AND b.active
ORDER BY b.created_at DESC
LIMIT 1
`
	return r.fetchBasket(ctx, q, userID)
}

func (r *postgresRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Basket, error) {
	q := `
SELECT ` + basketColumns + `
FROM baskets b
WHERE b.payment_intent_id = $1
ORDER BY b.created_at DESC
LIMIT 1
`
	return r.fetchBasket(ctx, q, intentID)
}

func (r *postgresRepo) AddItem(ctx context.Context, basketID, productID string, quantity int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var itemID string
	var existingQty int
	err = tx.QueryRow(ctx, `
SELECT id::text, quantity
FROM basket_items
WHERE basket_id = $1 AND product_id = $2
`, basketID, productID).Scan(&itemID, &existingQty)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if err == nil {
		if _, err := tx.Exec(ctx, `
UPDATE basket_items
SET quantity = $1
WHERE id = $2
`, existingQty+quantity, itemID); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(ctx, `
INSERT INTO basket_items (basket_id, product_id, quantity)
VALUES ($1, $2, $3)
`, basketID, productID, quantity); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *postgresRepo) RemoveItem(ctx context.Context, basketID, productID string, quantity int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var itemID string
	var existingQty int
	err = tx.QueryRow(ctx, `
SELECT id::text, quantity
FROM basket_items
WHERE basket_id = $1 AND product_id = $2
`, basketID, productID).Scan(&itemID, &existingQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	if remaining := existingQty - quantity; remaining > 0 {
		if _, err := tx.Exec(ctx, `
UPDATE basket_items
SET quantity = $1
WHERE id = $2
`, remaining, itemID); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(ctx, `
DELETE FROM basket_items
WHERE id = $1
`, itemID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *postgresRepo) SetPaymentState(ctx context.Context, in SetPaymentStateInput) error {
	if in.CouponChanged {
		couponJSON, err := marshalCoupon(in.Coupon)
		if err != nil {
			return err
		}
		cmd, err := r.pool.Exec(ctx, `
UPDATE baskets
SET payment_intent_id = NULLIF($2, ''),
    client_secret = NULLIF($3, ''),
    coupon = $4
WHERE id = $1
`, in.BasketID, in.PaymentIntentID, in.ClientSecret, couponJSON)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	}

	cmd, err := r.pool.Exec(ctx, `
UPDATE baskets
SET payment_intent_id = NULLIF($2, ''),
    client_secret = NULLIF($3, '')
WHERE id = $1
`, in.BasketID, in.PaymentIntentID, in.ClientSecret)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) fetchBasket(ctx context.Context, query string, args ...interface{}) (*domain.Basket, error) {
	basket, err := scanBasket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	const itemsQuery = `
SELECT i.id::text, i.basket_id::text, i.product_id::text, i.quantity, i.created_at,
       p.id::text, p.name, COALESCE(p.description, ''), COALESCE(p.picture_url, ''),
       COALESCE(p.brand, ''), COALESCE(p.type, ''), p.price_cents, p.quantity_in_stock, p.created_at
FROM basket_items i
JOIN products p ON p.id = i.product_id
WHERE i.basket_id = $1
ORDER BY i.created_at ASC
`
	rows, err := r.pool.Query(ctx, itemsQuery, basket.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.BasketItem
		var product domain.Product
		if err := rows.Scan(
			&item.ID,
			&item.BasketID,
			&item.ProductID,
			&item.Quantity,
			&item.CreatedAt,
			&product.ID,
			&product.Name,
			&product.Description,
			&product.PictureURL,
			&product.Brand,
			&product.Type,
			&product.PriceCents,
			&product.QuantityInStock,
			&product.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.Product = &product
		basket.Items = append(basket.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return basket, nil
}

func scanBasket(row pgx.Row) (*domain.Basket, error) {
	var basket domain.Basket
	var couponJSON []byte
	if err := row.Scan(
		&basket.ID,
		&basket.UserID,
		&basket.Active,
		&couponJSON,
		&basket.PaymentIntentID,
		&basket.ClientSecret,
		&basket.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(couponJSON) > 0 {
		var coupon domain.Coupon
		if err := json.Unmarshal(couponJSON, &coupon); err != nil {
			return nil, fmt.Errorf("decode basket coupon: %w", err)
		}
		basket.Coupon = &coupon
	}
	return &basket, nil
}

func marshalCoupon(coupon *domain.Coupon) ([]byte, error) {
	if coupon == nil {
		return nil, nil
	}
	data, err := json.Marshal(coupon)
	if err != nil {
		return nil, fmt.Errorf("encode basket coupon: %w", err)
	}
	return data, nil
}
