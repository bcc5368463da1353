package httpserver

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/domain"
	"storefront-api/internal/payments"
	ordersvc "storefront-api/internal/service/order"
	paymentsvc "storefront-api/internal/service/payment"
)

const testWebhookSecret = "whsec_test"

type stubProductService struct {
	products []domain.Product
}

func (s *stubProductService) List(_ context.Context) ([]domain.Product, error) {
	return s.products, nil
}

func (s *stubProductService) Get(_ context.Context, id string) (*domain.Product, error) {
	for i := range s.products {
		if s.products[i].ID == id {
			return &s.products[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

type stubBasketService struct {
	basket *domain.Basket
}

func (s *stubBasketService) Get(_ context.Context, _ string) (*domain.Basket, error) {
	if s.basket == nil {
		return nil, domain.ErrNotFound
	}
	return s.basket, nil
}

func (s *stubBasketService) AddItem(_ context.Context, _, _ string, _ int) (*domain.Basket, error) {
	return s.basket, nil
}

func (s *stubBasketService) RemoveItem(_ context.Context, _, _ string, _ int) (*domain.Basket, error) {
	return s.basket, nil
}

func (s *stubBasketService) ApplyCoupon(_ context.Context, _, _ string) (*domain.Basket, error) {
	return s.basket, nil
}

func (s *stubBasketService) RemoveCoupon(_ context.Context, _ string) (*domain.Basket, error) {
	return s.basket, nil
}

type stubOrderService struct {
	createErr error
	succeeded []string
	failed    []string
}

func (s *stubOrderService) Create(_ context.Context, userID string, _ ordersvc.CreateInput) (*domain.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &domain.Order{ID: "o_1", BuyerID: userID, Status: domain.OrderStatusPending}, nil
}

func (s *stubOrderService) List(_ context.Context, _ string) ([]domain.Order, error) {
	return nil, nil
}

func (s *stubOrderService) Get(_ context.Context, _, _ string) (*domain.Order, error) {
	return nil, domain.ErrNotFound
}

func (s *stubOrderService) GetByPaymentIntent(_ context.Context, _ string) (*domain.Order, error) {
	return nil, domain.ErrNotFound
}

func (s *stubOrderService) HandlePaymentSucceeded(_ context.Context, intentID string) error {
	s.succeeded = append(s.succeeded, intentID)
	return nil
}

func (s *stubOrderService) HandlePaymentFailed(_ context.Context, intentID string) error {
	s.failed = append(s.failed, intentID)
	return nil
}

type stubPaymentService struct{}

func (s *stubPaymentService) Sync(_ context.Context, _ *domain.Basket, _ paymentsvc.SyncInput) (*payments.Intent, error) {
	return &payments.Intent{ID: "pi_1"}, nil
}

func testRouter(t *testing.T, deps Deps) *gin.Engine {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	router, err := buildRouter(logger, nil, deps, nil)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return router
}

func TestRequireUser(t *testing.T) {
	router := testRouter(t, Deps{BasketSvc: &stubBasketService{}})

	req := httptest.NewRequest(http.MethodGet, "/basket", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user header, got %d", rec.Code)
	}
}

func TestGetBasket_NoBasketIsNoContent(t *testing.T) {
	router := testRouter(t, Deps{BasketSvc: &stubBasketService{}})

	req := httptest.NewRequest(http.MethodGet, "/basket", nil)
	req.Header.Set(userIDHeader, "u_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for missing basket, got %d", rec.Code)
	}
}

func TestAddBasketItem_RejectsBadPayload(t *testing.T) {
	router := testRouter(t, Deps{BasketSvc: &stubBasketService{basket: &domain.Basket{ID: "b_1"}}})

	req := httptest.NewRequest(http.MethodPost, "/basket/items", strings.NewReader(`{"productId":"p_1","quantity":0}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userIDHeader, "u_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rec.Code)
	}
}

func TestCreateOrder_OutOfStockConflicts(t *testing.T) {
	orders := &stubOrderService{createErr: domain.ErrInsufficientStock}
	router := testRouter(t, Deps{OrderSvc: orders})

	body := `{"shippingAddress":{"name":"Jo","line1":"1 Main St","city":"X","postalCode":"1","country":"US"},"paymentSummary":{"brand":"visa","last4":"4242","expMonth":12,"expYear":2030}}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userIDHeader, "u_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for out of stock, got %d", rec.Code)
	}
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	orders := &stubOrderService{}
	router := testRouter(t, Deps{OrderSvc: orders, WebhookSecret: testWebhookSecret})

	payload := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","status":"succeeded"}}}`
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(payload))
	req.Header.Set(signatureHeader, "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", rec.Code)
	}
	if len(orders.succeeded)+len(orders.failed) != 0 {
		t.Fatal("no handler should run for an unverified event")
	}
}

func TestWebhook_DispatchesOnIntentStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantFailed int
		wantOK     int
	}{
		{name: "succeeded goes to success handler", status: "succeeded", wantOK: 1},
		{name: "anything else goes to failure handler", status: "requires_payment_method", wantFailed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &stubOrderService{}
			router := testRouter(t, Deps{OrderSvc: orders, WebhookSecret: testWebhookSecret})

			payload := `{"id":"evt_1","type":"payment_intent.event","data":{"object":{"id":"pi_1","status":"` + tt.status + `"}}}`
			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(payload))
			req.Header.Set(signatureHeader, payments.SignatureHeader(time.Now().Unix(), []byte(payload), testWebhookSecret))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if len(orders.succeeded) != tt.wantOK || len(orders.failed) != tt.wantFailed {
				t.Fatalf("unexpected dispatch: succeeded=%v failed=%v", orders.succeeded, orders.failed)
			}
		})
	}
}

func TestListProducts(t *testing.T) {
	products := &stubProductService{products: []domain.Product{{ID: "p_1", Name: "Board", PriceCents: 1500}}}
	router := testRouter(t, Deps{ProductSvc: products})

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Board") {
		t.Fatalf("expected product in response, got %s", rec.Body.String())
	}
}
