package domain

import "time"

type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	PictureURL      string    `json:"pictureUrl,omitempty"`
	Brand           string    `json:"brand,omitempty"`
	Type            string    `json:"type,omitempty"`
	PriceCents      int64     `json:"priceCents"`
	QuantityInStock int       `json:"quantityInStock"`
	CreatedAt       time.Time `json:"createdAt"`
}
