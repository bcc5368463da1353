package order

import (
	"context"

	"storefront-api/internal/domain"
	outboxrepo "storefront-api/internal/repository/outbox"
)

// PlaceInput materializes a basket into an order. Everything in it is
// persisted in one transaction: stock checks and decrements, the order upsert
// keyed by payment intent, basket deactivation and the outbox event.
type PlaceInput struct {
	BasketID string
	Order    domain.Order
	Event    *outboxrepo.Message
}

type Repository interface {
	Place(ctx context.Context, in PlaceInput) (*domain.Order, error)
	GetByID(ctx context.Context, buyerID, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error)
	MarkPaymentReceived(ctx context.Context, intentID string, event *outboxrepo.Message) (*domain.Order, error)
	RestockPaymentFailed(ctx context.Context, intentID string, event *outboxrepo.Message) (*domain.Order, error)
}
