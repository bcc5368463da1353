// Package payments talks to the external payment processor over its
// form-encoded HTTPS API: payment intents for charging, promotion codes and
// coupons for discounts.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrPromoCodeNotFound = errors.New("promotion code not found")

// Intent is the processor's handle for an in-progress charge attempt.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// Coupon is the processor-side discount record. Exactly one of AmountOff and
// PercentOff is set.
type Coupon struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AmountOff  *int64   `json:"amount_off"`
	PercentOff *float64 `json:"percent_off"`
	Valid      bool     `json:"valid"`
}

type PromotionCode struct {
	ID     string  `json:"id"`
	Code   string  `json:"code"`
	Active bool    `json:"active"`
	Coupon *Coupon `json:"coupon"`
}

type promotionCodeList struct {
	Data []PromotionCode `json:"data"`
}

// APIError is a non-2xx response from the processor.
type APIError struct {
	StatusCode int
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment api: %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// Client holds its credentials explicitly; nothing here mutates process-wide
// state.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type IntentParams struct {
	AmountCents int64
	Currency    string
	Metadata    map[string]string
}

// CreateIntent creates a card payment intent for the given amount in minor
// currency units.
func (c *Client) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.AmountCents, 10))
	form.Set("currency", p.Currency)
	form.Set("payment_method_types[]", "card")
	encodeMetadata(form, p.Metadata)

	var intent Intent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// UpdateIntent changes an existing intent's amount and metadata in place.
func (c *Client) UpdateIntent(ctx context.Context, id string, p IntentParams) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.AmountCents, 10))
	encodeMetadata(form, p.Metadata)

	var intent Intent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(id), form, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetCoupon fetches the live coupon record; discounts are always recomputed
// from it rather than from any local snapshot.
func (c *Client) GetCoupon(ctx context.Context, id string) (*Coupon, error) {
	var coupon Coupon
	if err := c.do(ctx, http.MethodGet, "/v1/coupons/"+url.PathEscape(id), nil, &coupon); err != nil {
		return nil, err
	}
	return &coupon, nil
}

// FindPromotionCode resolves a shopper-entered promo code, matching
// case-insensitively the way the processor's dashboard displays them.
func (c *Client) FindPromotionCode(ctx context.Context, code string) (*PromotionCode, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("active", "true")

	var list promotionCodeList
	if err := c.do(ctx, http.MethodGet, "/v1/promotion_codes?"+form.Encode(), nil, &list); err != nil {
		return nil, err
	}
	for i := range list.Data {
		pc := &list.Data[i]
		if strings.EqualFold(pc.Code, code) && pc.Coupon != nil {
			return pc, nil
		}
	}
	return nil, ErrPromoCodeNotFound
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call payment api: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read payment api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wrapper struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(data, &wrapper) == nil && wrapper.Error != nil {
			apiErr.Type = wrapper.Error.Type
			apiErr.Message = wrapper.Error.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode payment api response: %w", err)
		}
	}
	return nil
}

func encodeMetadata(form url.Values, metadata map[string]string) {
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}
}
