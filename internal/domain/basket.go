package domain

import "time"

// Basket is a shopper's in-progress cart. At most one active basket exists per
// user; baskets are deactivated, never deleted, once an order is materialized.
type Basket struct {
	ID              string       `json:"id"`
	UserID          string       `json:"-"`
	Active          bool         `json:"-"`
	Coupon          *Coupon      `json:"coupon,omitempty"`
	PaymentIntentID string       `json:"paymentIntentId,omitempty"`
	ClientSecret    string       `json:"clientSecret,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	Items           []BasketItem `json:"items"`
}

type BasketItem struct {
	ID        string    `json:"id"`
	BasketID  string    `json:"basketId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SubtotalCents sums live unit price times quantity over the basket lines.
// Lines without a joined product row contribute nothing.
func (b *Basket) SubtotalCents() int64 {
	var subtotal int64
	for _, item := range b.Items {
		if item.Product == nil {
			continue
		}
		subtotal += item.Product.PriceCents * int64(item.Quantity)
	}
	return subtotal
}
