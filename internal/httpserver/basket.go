package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/domain"
)

type basketItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

func getBasketHandler(svc BasketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		basket, err := svc.Get(c.Request.Context(), currentUser(c))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.Status(http.StatusNoContent)
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
			return
		}
		c.JSON(http.StatusOK, basket)
	}
}

func addBasketItemHandler(svc BasketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req basketItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "productId and positive quantity required"})
			return
		}
		basket, err := svc.AddItem(c.Request.Context(), currentUser(c), req.ProductID, req.Quantity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, basket)
	}
}

func removeBasketItemHandler(svc BasketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Query("productId")
		quantity := queryInt(c, "quantity", 1)
		basket, err := svc.RemoveItem(c.Request.Context(), currentUser(c), productID, quantity)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "basket or item not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, basket)
	}
}

func applyCouponHandler(svc BasketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		basket, err := svc.ApplyCoupon(c.Request.Context(), currentUser(c), c.Param("code"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no active basket"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, basket)
	}
}

func removeCouponHandler(svc BasketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		basket, err := svc.RemoveCoupon(c.Request.Context(), currentUser(c))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no active basket"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, basket)
	}
}
