package basket

import (
	"context"

	"storefront-api/internal/domain"
)

// SetPaymentStateInput persists the processor-side handle on a basket. When
// CouponChanged is set the coupon column is written in the same statement, so
// a coupon change and its intent update are never observable separately.
type SetPaymentStateInput struct {
	BasketID        string
	PaymentIntentID string
	ClientSecret    string
	Coupon          *domain.Coupon
	CouponChanged   bool
}

type Repository interface {
	Create(ctx context.Context, userID string) (*domain.Basket, error)
	GetActiveByUser(ctx context.Context, userID string) (*domain.Basket, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Basket, error)
	AddItem(ctx context.Context, basketID, productID string, quantity int) error
	RemoveItem(ctx context.Context, basketID, productID string, quantity int) error
	SetPaymentState(ctx context.Context, in SetPaymentStateInput) error
}
