package httpserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/domain"
	"storefront-api/internal/payments"
	paymentsvc "storefront-api/internal/service/payment"
)

const signatureHeader = "Stripe-Signature"

func syncPaymentIntentHandler(baskets BasketService, paymentsSvc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		basket, err := baskets.Get(c.Request.Context(), currentUser(c))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "no active basket"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
			return
		}
		if len(basket.Items) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "basket has no items"})
			return
		}

		if _, err := paymentsSvc.Sync(c.Request.Context(), basket, paymentsvc.SyncInput{}); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "problem creating payment intent"})
			return
		}
		c.JSON(http.StatusOK, basket)
	}
}

// webhookHandler verifies the processor's signature before touching any
// state, then dispatches on the intent status the way the processor reports
// it: anything that is not a success is treated as a failed charge.
func webhookHandler(logger *log.Logger, orders OrderService, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
			return
		}

		event, err := payments.ConstructEvent(payload, c.GetHeader(signatureHeader), secret)
		if err != nil {
			logger.Printf("webhook: signature verification failed: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}

		intent, err := event.Intent()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event data"})
			return
		}

		if intent.Status == "succeeded" {
			err = orders.HandlePaymentSucceeded(c.Request.Context(), intent.ID)
		} else {
			err = orders.HandlePaymentFailed(c.Request.Context(), intent.ID)
		}
		if err != nil {
			logger.Printf("webhook: processing intent=%s status=%s failed: %v", intent.ID, intent.Status, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	val := c.Query(key)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
