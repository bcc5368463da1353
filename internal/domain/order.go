package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "Pending"
	OrderStatusPaymentReceived OrderStatus = "PaymentReceived"
	OrderStatusPaymentFailed   OrderStatus = "PaymentFailed"
)

// Order is an immutable record of a completed checkout. Only Status moves
// after creation, and only in reaction to payment processor notifications.
type Order struct {
	ID               string          `json:"id"`
	BuyerID          string          `json:"buyerId"`
	ShippingAddress  ShippingAddress `json:"shippingAddress"`
	PaymentSummary   PaymentSummary  `json:"paymentSummary"`
	Items            []OrderItem     `json:"items"`
	SubtotalCents    int64           `json:"subtotalCents"`
	DeliveryFeeCents int64           `json:"deliveryFeeCents"`
	DiscountCents    int64           `json:"discountCents"`
	Status           OrderStatus     `json:"status"`
	PaymentIntentID  string          `json:"paymentIntentId"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// OrderItem freezes the product at checkout time so later catalog edits do not
// rewrite history.
type OrderItem struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	PictureURL string `json:"pictureUrl,omitempty"`
	PriceCents int64  `json:"priceCents"`
	Quantity   int    `json:"quantity"`
}

type ShippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type PaymentSummary struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"expMonth"`
	ExpYear  int    `json:"expYear"`
}

// TotalCents is always derived so the parts can never disagree with the sum.
func (o *Order) TotalCents() int64 {
	return o.SubtotalCents + o.DeliveryFeeCents - o.DiscountCents
}
