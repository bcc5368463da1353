// Package pricing derives subtotal, delivery fee and discount for a set of
// basket lines. The discount is resolved fresh from the payment processor on
// every pass; the external coupon record is the source of truth.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront-api/internal/domain"
	"storefront-api/internal/payments"
)

const (
	DefaultFreeShippingThresholdCents int64 = 1000
	DefaultDeliveryFeeCents           int64 = 500
)

type couponSource interface {
	GetCoupon(ctx context.Context, id string) (*payments.Coupon, error)
}

type Calculator struct {
	coupons                    couponSource
	freeShippingThresholdCents int64
	deliveryFeeCents           int64
}

func New(coupons couponSource, freeShippingThresholdCents, deliveryFeeCents int64) *Calculator {
	if freeShippingThresholdCents <= 0 {
		freeShippingThresholdCents = DefaultFreeShippingThresholdCents
	}
	if deliveryFeeCents <= 0 {
		deliveryFeeCents = DefaultDeliveryFeeCents
	}
	return &Calculator{
		coupons:                    coupons,
		freeShippingThresholdCents: freeShippingThresholdCents,
		deliveryFeeCents:           deliveryFeeCents,
	}
}

// Line is one priced basket or order line.
type Line struct {
	UnitPriceCents int64
	Quantity       int
}

type Quote struct {
	SubtotalCents    int64
	DeliveryFeeCents int64
	DiscountCents    int64
}

func (q Quote) TotalCents() int64 {
	return q.SubtotalCents + q.DeliveryFeeCents - q.DiscountCents
}

// LinesFromBasket prices basket items off their live product rows. Every item
// must carry a joined product.
func LinesFromBasket(basket *domain.Basket) ([]Line, error) {
	lines := make([]Line, 0, len(basket.Items))
	for _, item := range basket.Items {
		if item.Product == nil {
			return nil, fmt.Errorf("basket item %s has no product loaded", item.ID)
		}
		lines = append(lines, Line{UnitPriceCents: item.Product.PriceCents, Quantity: item.Quantity})
	}
	return lines, nil
}

// LinesFromOrderItems prices snapshotted order items, decoupled from any later
// product edits.
func LinesFromOrderItems(items []domain.OrderItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{UnitPriceCents: item.PriceCents, Quantity: item.Quantity})
	}
	return lines
}

// Quote computes the price breakdown. removeCoupon forces the discount to
// zero while the coupon reference is still set, so a caller can push the
// un-discounted amount to the processor before clearing the coupon.
func (c *Calculator) Quote(ctx context.Context, lines []Line, coupon *domain.Coupon, removeCoupon bool) (Quote, error) {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}

	var fee int64
	if subtotal <= c.freeShippingThresholdCents {
		fee = c.deliveryFeeCents
	}

	quote := Quote{SubtotalCents: subtotal, DeliveryFeeCents: fee}
	if coupon == nil || removeCoupon {
		return quote, nil
	}

	discount, err := c.discountFor(ctx, coupon, subtotal)
	if err != nil {
		return Quote{}, err
	}
	quote.DiscountCents = discount
	return quote, nil
}

func (c *Calculator) discountFor(ctx context.Context, coupon *domain.Coupon, subtotalCents int64) (int64, error) {
	if c.coupons == nil {
		return 0, errors.New("coupon source unavailable")
	}
	live, err := c.coupons.GetCoupon(ctx, coupon.CouponID)
	if err != nil {
		return 0, fmt.Errorf("resolve coupon %s: %w", coupon.CouponID, err)
	}

	switch {
	case live.AmountOff != nil:
		return *live.AmountOff, nil
	case live.PercentOff != nil:
		return percentOf(subtotalCents, *live.PercentOff), nil
	default:
		return 0, nil
	}
}

// percentOf rounds half away from zero to whole currency units, e.g. 10% of
// 333 is 33 and 50% of 335 is 168.
func percentOf(amountCents int64, percent float64) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
