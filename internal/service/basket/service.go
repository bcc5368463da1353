package basket

import (
	"context"
	"errors"
	"strings"

	"storefront-api/internal/domain"
	"storefront-api/internal/payments"
	paymentsvc "storefront-api/internal/service/payment"
)

type basketRepo interface {
	Create(ctx context.Context, userID string) (*domain.Basket, error)
	GetActiveByUser(ctx context.Context, userID string) (*domain.Basket, error)
	AddItem(ctx context.Context, basketID, productID string, quantity int) error
	RemoveItem(ctx context.Context, basketID, productID string, quantity int) error
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type intentSyncer interface {
	Sync(ctx context.Context, basket *domain.Basket, in paymentsvc.SyncInput) (*payments.Intent, error)
}

type promoFinder interface {
	FindPromotionCode(ctx context.Context, code string) (*payments.PromotionCode, error)
}

type Service struct {
	repo        basketRepo
	productRepo productRepo
	payments    intentSyncer
	promos      promoFinder
}

func New(repo basketRepo, productRepo productRepo, payments intentSyncer, promos promoFinder) *Service {
	return &Service{repo: repo, productRepo: productRepo, payments: payments, promos: promos}
}

// Get returns the user's active basket, or domain.ErrNotFound when none
// exists yet.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Basket, error) {
	return s.repo.GetActiveByUser(ctx, userID)
}

// AddItem puts quantity units of a product into the user's active basket,
// creating the basket on first use.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Basket, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, errors.New("productId required")
	}
	if quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}

	basket, err := s.repo.GetActiveByUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		basket, err = s.repo.Create(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errors.New("product not found")
		}
		return nil, err
	}

	if err := s.repo.AddItem(ctx, basket.ID, productID, quantity); err != nil {
		return nil, err
	}
	return s.repo.GetActiveByUser(ctx, userID)
}

// RemoveItem takes quantity units of a product out of the basket; a line
// dropping to zero or below is deleted.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string, quantity int) (*domain.Basket, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, errors.New("productId required")
	}
	if quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}

	basket, err := s.repo.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RemoveItem(ctx, basket.ID, productID, quantity); err != nil {
		return nil, err
	}
	return s.repo.GetActiveByUser(ctx, userID)
}

// ApplyCoupon resolves a promo code against the processor, re-syncs the
// payment intent with the discounted total, and stores the coupon snapshot in
// the same update as the intent fields.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*domain.Basket, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("coupon code required")
	}

	basket, err := s.repo.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if basket.ClientSecret == "" {
		return nil, errors.New("basket has no payment intent")
	}

	promo, err := s.promos.FindPromotionCode(ctx, code)
	if err != nil {
		if errors.Is(err, payments.ErrPromoCodeNotFound) {
			return nil, errors.New("invalid coupon")
		}
		return nil, err
	}

	coupon := &domain.Coupon{
		Name:          promo.Coupon.Name,
		AmountOff:     promo.Coupon.AmountOff,
		PercentOff:    promo.Coupon.PercentOff,
		CouponID:      promo.Coupon.ID,
		PromotionCode: promo.Code,
	}

	if _, err := s.payments.Sync(ctx, basket, paymentsvc.SyncInput{SetCoupon: coupon}); err != nil {
		return nil, err
	}
	return s.repo.GetActiveByUser(ctx, userID)
}

// RemoveCoupon re-syncs the intent with the discount forced to zero before
// the stored coupon is cleared, so the processor never holds a discounted
// amount for a coupon-less basket.
func (s *Service) RemoveCoupon(ctx context.Context, userID string) (*domain.Basket, error) {
	basket, err := s.repo.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if basket.Coupon == nil || basket.ClientSecret == "" {
		return nil, errors.New("basket has no coupon to remove")
	}

	if _, err := s.payments.Sync(ctx, basket, paymentsvc.SyncInput{RemoveCoupon: true}); err != nil {
		return nil, err
	}
	return s.repo.GetActiveByUser(ctx, userID)
}
