package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/domain"
	ordersvc "storefront-api/internal/service/order"
)

func listOrdersHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.List(c.Request.Context(), currentUser(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list orders"})
			return
		}
		if orders == nil {
			orders = []domain.Order{}
		}
		c.JSON(http.StatusOK, orders)
	}
}

func getOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.Get(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load order"})
			return
		}
		c.JSON(http.StatusOK, orderResponse(order))
	}
}

func getOrderByIntentHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.GetByPaymentIntent(c.Request.Context(), c.Param("intentId"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load order"})
			return
		}
		if order.BuyerID != currentUser(c) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusOK, orderResponse(order))
	}
}

func createOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in ordersvc.CreateInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order payload"})
			return
		}
		order, err := svc.Create(c.Request.Context(), currentUser(c), in)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				c.JSON(http.StatusConflict, gin.H{"error": "some items are out of stock"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, orderResponse(order))
	}
}

// orderResponse adds the derived total alongside the stored parts.
func orderResponse(order *domain.Order) gin.H {
	return gin.H{
		"id":               order.ID,
		"buyerId":          order.BuyerID,
		"shippingAddress":  order.ShippingAddress,
		"paymentSummary":   order.PaymentSummary,
		"items":            order.Items,
		"subtotalCents":    order.SubtotalCents,
		"deliveryFeeCents": order.DeliveryFeeCents,
		"discountCents":    order.DiscountCents,
		"totalCents":       order.TotalCents(),
		"status":           order.Status,
		"paymentIntentId":  order.PaymentIntentID,
		"createdAt":        order.CreatedAt,
	}
}
