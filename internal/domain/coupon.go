package domain

// Coupon is a snapshot of an external promotion. Exactly one of AmountOff and
// PercentOff is meaningful; which one is decided by the external record, not
// by this system.
type Coupon struct {
	Name          string   `json:"name"`
	AmountOff     *int64   `json:"amountOff,omitempty"`
	PercentOff    *float64 `json:"percentOff,omitempty"`
	CouponID      string   `json:"couponId"`
	PromotionCode string   `json:"promotionCode"`
}
