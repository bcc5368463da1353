package httpserver

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-api/internal/domain"
	"storefront-api/internal/payments"
	ordersvc "storefront-api/internal/service/order"
	paymentsvc "storefront-api/internal/service/payment"
)

// userIDHeader carries the authenticated user id, set by the auth gateway in
// front of this service. Identity itself lives outside this system.
const userIDHeader = "X-User-ID"

type ProductService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type BasketService interface {
	Get(ctx context.Context, userID string) (*domain.Basket, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Basket, error)
	RemoveItem(ctx context.Context, userID, productID string, quantity int) (*domain.Basket, error)
	ApplyCoupon(ctx context.Context, userID, code string) (*domain.Basket, error)
	RemoveCoupon(ctx context.Context, userID string) (*domain.Basket, error)
}

type OrderService interface {
	Create(ctx context.Context, userID string, in ordersvc.CreateInput) (*domain.Order, error)
	List(ctx context.Context, userID string) ([]domain.Order, error)
	Get(ctx context.Context, userID, orderID string) (*domain.Order, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error)
	HandlePaymentSucceeded(ctx context.Context, intentID string) error
	HandlePaymentFailed(ctx context.Context, intentID string) error
}

type PaymentService interface {
	Sync(ctx context.Context, basket *domain.Basket, in paymentsvc.SyncInput) (*payments.Intent, error)
}

type Deps struct {
	ProductSvc    ProductService
	BasketSvc     BasketService
	OrderSvc      OrderService
	PaymentSvc    PaymentService
	WebhookSecret string
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps, corsOrigins []string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	if len(corsOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = corsOrigins
		corsCfg.AllowCredentials = true
		corsCfg.AddAllowHeaders(userIDHeader)
		router.Use(cors.New(corsCfg))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	router.GET("/products", listProductsHandler(deps.ProductSvc))
	router.GET("/products/:id", getProductHandler(deps.ProductSvc))

	basket := router.Group("/basket", requireUser())
	{
		basket.GET("", getBasketHandler(deps.BasketSvc))
		basket.POST("/items", addBasketItemHandler(deps.BasketSvc))
		basket.DELETE("/items", removeBasketItemHandler(deps.BasketSvc))
		basket.POST("/coupons/:code", applyCouponHandler(deps.BasketSvc))
		basket.DELETE("/coupons", removeCouponHandler(deps.BasketSvc))
	}

	router.POST("/payments", requireUser(), syncPaymentIntentHandler(deps.BasketSvc, deps.PaymentSvc))
	router.POST("/payments/webhook", webhookHandler(logger, deps.OrderSvc, deps.WebhookSecret))

	orders := router.Group("/orders", requireUser())
	{
		orders.GET("", listOrdersHandler(deps.OrderSvc))
		orders.GET("/:id", getOrderHandler(deps.OrderSvc))
		orders.GET("/by-intent/:intentId", getOrderByIntentHandler(deps.OrderSvc))
		orders.POST("", createOrderHandler(deps.OrderSvc))
	}

	return router, nil
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString("userID")
}
