// Package payment keeps the processor-side payment intent in step with the
// basket's computed total.
package payment

import (
	"context"
	"errors"
	"fmt"

	"storefront-api/internal/domain"
	"storefront-api/internal/payments"
	"storefront-api/internal/pricing"
	basketrepo "storefront-api/internal/repository/basket"
)

type intentClient interface {
	CreateIntent(ctx context.Context, p payments.IntentParams) (*payments.Intent, error)
	UpdateIntent(ctx context.Context, id string, p payments.IntentParams) (*payments.Intent, error)
}

type quoter interface {
	Quote(ctx context.Context, lines []pricing.Line, coupon *domain.Coupon, removeCoupon bool) (pricing.Quote, error)
}

type basketStore interface {
	SetPaymentState(ctx context.Context, in basketrepo.SetPaymentStateInput) error
}

type Service struct {
	client   intentClient
	pricing  quoter
	baskets  basketStore
	currency string
}

func New(client intentClient, calc quoter, baskets basketStore, currency string) *Service {
	if currency == "" {
		currency = "usd"
	}
	return &Service{client: client, pricing: calc, baskets: baskets, currency: currency}
}

// SyncInput carries an optional coupon change so the coupon and the intent
// fields land in the same basket update.
type SyncInput struct {
	// SetCoupon applies a newly resolved coupon; nil keeps the basket's
	// current one.
	SetCoupon *domain.Coupon
	// RemoveCoupon quotes with the discount forced to zero and clears the
	// stored coupon. The processor sees the un-discounted amount before the
	// reference goes away.
	RemoveCoupon bool
}

// Sync pushes the basket's current total to the processor, creating an intent
// on first use and updating it in place afterwards. Nothing is persisted, and
// the in-memory basket is untouched, unless the processor call succeeds.
func (s *Service) Sync(ctx context.Context, basket *domain.Basket, in SyncInput) (*payments.Intent, error) {
	coupon := basket.Coupon
	if in.SetCoupon != nil {
		coupon = in.SetCoupon
	}

	lines, err := pricing.LinesFromBasket(basket)
	if err != nil {
		return nil, err
	}
	quote, err := s.pricing.Quote(ctx, lines, coupon, in.RemoveCoupon)
	if err != nil {
		return nil, fmt.Errorf("quote basket %s: %w", basket.ID, err)
	}

	params := payments.IntentParams{
		AmountCents: quote.TotalCents(),
		Currency:    s.currency,
		Metadata: map[string]string{
			"basketId": basket.ID,
			"userId":   basket.UserID,
		},
	}

	var intent *payments.Intent
	if basket.PaymentIntentID == "" {
		intent, err = s.client.CreateIntent(ctx, params)
	} else {
		intent, err = s.client.UpdateIntent(ctx, basket.PaymentIntentID, params)
	}
	if err != nil {
		return nil, fmt.Errorf("sync payment intent: %w", err)
	}
	if intent == nil || intent.ID == "" {
		return nil, errors.New("payment processor returned no intent")
	}

	// The processor may omit the client secret on update responses.
	clientSecret := intent.ClientSecret
	if clientSecret == "" {
		clientSecret = basket.ClientSecret
	}

	var storedCoupon *domain.Coupon
	switch {
	case in.RemoveCoupon:
		storedCoupon = nil
	case in.SetCoupon != nil:
		storedCoupon = in.SetCoupon
	default:
		storedCoupon = basket.Coupon
	}

	if err := s.baskets.SetPaymentState(ctx, basketrepo.SetPaymentStateInput{
		BasketID:        basket.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    clientSecret,
		Coupon:          storedCoupon,
		CouponChanged:   in.RemoveCoupon || in.SetCoupon != nil,
	}); err != nil {
		return nil, fmt.Errorf("persist payment state: %w", err)
	}

	basket.PaymentIntentID = intent.ID
	basket.ClientSecret = clientSecret
	basket.Coupon = storedCoupon
	return intent, nil
}
