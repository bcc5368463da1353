// Package order materializes paid-for baskets into orders and reconciles
// them against payment processor notifications.
package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"storefront-api/internal/domain"
	"storefront-api/internal/pricing"
	orderrepo "storefront-api/internal/repository/order"
	outboxrepo "storefront-api/internal/repository/outbox"
)

type orderRepo interface {
	Place(ctx context.Context, in orderrepo.PlaceInput) (*domain.Order, error)
	GetByID(ctx context.Context, buyerID, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error)
	MarkPaymentReceived(ctx context.Context, intentID string, event *outboxrepo.Message) (*domain.Order, error)
	RestockPaymentFailed(ctx context.Context, intentID string, event *outboxrepo.Message) (*domain.Order, error)
}

type basketRepo interface {
	GetActiveByUser(ctx context.Context, userID string) (*domain.Basket, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Basket, error)
}

type quoter interface {
	Quote(ctx context.Context, lines []pricing.Line, coupon *domain.Coupon, removeCoupon bool) (pricing.Quote, error)
}

type Service struct {
	orders  orderRepo
	baskets basketRepo
	pricing quoter
	topic   string
	logger  *log.Logger
}

func New(orders orderRepo, baskets basketRepo, calc quoter, eventTopic string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{orders: orders, baskets: baskets, pricing: calc, topic: eventTopic, logger: logger}
}

type CreateInput struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentSummary  domain.PaymentSummary  `json:"paymentSummary"`
}

// Create turns the user's active basket into an order. The payment intent id
// is the idempotency key: retrying the same checkout updates the existing
// order instead of creating a second one.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*domain.Order, error) {
	if err := validateShipping(in.ShippingAddress); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.PaymentSummary.Last4) == "" {
		return nil, errors.New("payment summary required")
	}

	basket, err := s.baskets.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errors.New("no active basket for user")
		}
		return nil, err
	}
	if len(basket.Items) == 0 {
		return nil, errors.New("basket has no items")
	}
	if basket.PaymentIntentID == "" {
		return nil, errors.New("basket has no payment intent")
	}

	items, err := snapshotItems(basket.Items)
	if err != nil {
		return nil, err
	}

	// Price off the snapshot, not the live basket, so a concurrent catalog
	// edit between check and commit cannot skew the totals.
	quote, err := s.pricing.Quote(ctx, pricing.LinesFromOrderItems(items), basket.Coupon, false)
	if err != nil {
		return nil, err
	}

	order := domain.Order{
		BuyerID:          userID,
		ShippingAddress:  in.ShippingAddress,
		PaymentSummary:   in.PaymentSummary,
		Items:            items,
		SubtotalCents:    quote.SubtotalCents,
		DeliveryFeeCents: quote.DeliveryFeeCents,
		DiscountCents:    quote.DiscountCents,
		Status:           domain.OrderStatusPending,
		PaymentIntentID:  basket.PaymentIntentID,
	}

	event, err := s.orderEvent(eventOrderCreated, &order)
	if err != nil {
		return nil, err
	}

	placed, err := s.orders.Place(ctx, orderrepo.PlaceInput{
		BasketID: basket.ID,
		Order:    order,
		Event:    event,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Printf("order service: placed order=%s intent=%s total=%d", placed.ID, placed.PaymentIntentID, placed.TotalCents())
	return placed, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListByBuyer(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, userID, orderID)
}

func (s *Service) GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	return s.orders.GetByPaymentIntent(ctx, intentID)
}

// HandlePaymentSucceeded finalizes the order for a confirmed charge. The
// notification can arrive before the order is materialized; that case is a
// no-op and the eventual checkout lands with the money already collected.
func (s *Service) HandlePaymentSucceeded(ctx context.Context, intentID string) error {
	order, err := s.orders.GetByPaymentIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Printf("order service: success notification for intent=%s with no order yet", intentID)
			return nil
		}
		return err
	}

	finalized := *order
	finalized.Status = domain.OrderStatusPaymentReceived
	event, err := s.orderEvent(eventOrderPaymentReceived, &finalized)
	if err != nil {
		return err
	}
	if _, err := s.orders.MarkPaymentReceived(ctx, intentID, event); err != nil {
		return err
	}
	s.logger.Printf("order service: payment received intent=%s order=%s", intentID, order.ID)
	return nil
}

// HandlePaymentFailed compensates the stock decrement done at order creation
// and moves the order to PaymentFailed. A failure notification without a
// persisted order means a checkout step went missing; that is surfaced, not
// swallowed.
func (s *Service) HandlePaymentFailed(ctx context.Context, intentID string) error {
	order, err := s.orders.GetByPaymentIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Printf("order service: INVARIANT VIOLATION: failure notification for intent=%s but no order exists", intentID)
			return fmt.Errorf("intent %s: %w", intentID, domain.ErrOrderMissing)
		}
		return err
	}

	failed := *order
	failed.Status = domain.OrderStatusPaymentFailed
	event, err := s.orderEvent(eventOrderPaymentFailed, &failed)
	if err != nil {
		return err
	}
	if _, err := s.orders.RestockPaymentFailed(ctx, intentID, event); err != nil {
		return err
	}
	s.logger.Printf("order service: payment failed intent=%s order=%s, stock restored", intentID, order.ID)
	return nil
}

func snapshotItems(items []domain.BasketItem) ([]domain.OrderItem, error) {
	snapshot := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		if item.Product == nil {
			return nil, fmt.Errorf("basket item %s has no product loaded", item.ID)
		}
		snapshot = append(snapshot, domain.OrderItem{
			ProductID:  item.ProductID,
			Name:       item.Product.Name,
			PictureURL: item.Product.PictureURL,
			PriceCents: item.Product.PriceCents,
			Quantity:   item.Quantity,
		})
	}
	return snapshot, nil
}

func validateShipping(addr domain.ShippingAddress) error {
	switch {
	case strings.TrimSpace(addr.Name) == "",
		strings.TrimSpace(addr.Line1) == "",
		strings.TrimSpace(addr.City) == "",
		strings.TrimSpace(addr.PostalCode) == "",
		strings.TrimSpace(addr.Country) == "":
		return errors.New("shipping address incomplete")
	}
	return nil
}
