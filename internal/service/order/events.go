package order

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"storefront-api/internal/domain"
	outboxrepo "storefront-api/internal/repository/outbox"
)

const (
	eventOrderCreated         = "order.created"
	eventOrderPaymentReceived = "order.payment_received"
	eventOrderPaymentFailed   = "order.payment_failed"
)

// orderEventPayload is the fact published for downstream consumers. Keyed by
// payment intent id so every lifecycle event for a checkout lands in the same
// partition.
type orderEventPayload struct {
	EventID          string             `json:"eventId"`
	OrderID          string             `json:"orderId,omitempty"`
	PaymentIntentID  string             `json:"paymentIntentId"`
	BuyerID          string             `json:"buyerId"`
	Status           domain.OrderStatus `json:"status"`
	SubtotalCents    int64              `json:"subtotalCents"`
	DeliveryFeeCents int64              `json:"deliveryFeeCents"`
	DiscountCents    int64              `json:"discountCents"`
	TotalCents       int64              `json:"totalCents"`
}

func (s *Service) orderEvent(eventType string, order *domain.Order) (*outboxrepo.Message, error) {
	if s.topic == "" {
		return nil, nil
	}

	eventID := uuid.New()
	payload, err := json.Marshal(orderEventPayload{
		EventID:          eventID.String(),
		OrderID:          order.ID,
		PaymentIntentID:  order.PaymentIntentID,
		BuyerID:          order.BuyerID,
		Status:           order.Status,
		SubtotalCents:    order.SubtotalCents,
		DeliveryFeeCents: order.DeliveryFeeCents,
		DiscountCents:    order.DiscountCents,
		TotalCents:       order.TotalCents(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", eventType, err)
	}

	return &outboxrepo.Message{
		EventID:   eventID,
		Topic:     s.topic,
		Key:       order.PaymentIntentID,
		EventType: eventType,
		Payload:   payload,
	}, nil
}
