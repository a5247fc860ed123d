package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tanpawarit/atelier-storefront/storefront/cart"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

type addCartItemRequest struct {
	ProductID string `json:"objectID" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (s *Server) getCart(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SuccessResponse(c, "Cart fetched", sess.Cart.Snapshot()))
}

// addCartItem is the product-page "add to cart" action. The product is
// resolved through the catalog so prices never come from the client.
func (s *Server) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse(c, "Invalid request body"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		abortWithError(c, fmt.Errorf("%w: quantity must be positive", contract.ErrValidation))
		return
	}

	sess, ok := s.session(c)
	if !ok {
		return
	}
	if s.catalog == nil {
		abortWithError(c, fmt.Errorf("%w: product catalog is not configured", contract.ErrNotFound))
		return
	}
	hit, err := s.catalog.GetProduct(c.Request.Context(), strings.TrimSpace(req.ProductID))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := sess.Cart.AddItem(cart.ItemFromHit(hit), req.Quantity); err != nil {
		abortWithError(c, err)
		return
	}
	s.persist(c.Request.Context(), sess.ID)

	c.JSON(http.StatusCreated, SuccessResponse(c, "Item added to cart", sess.Cart.Snapshot()))
}

func (s *Server) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse(c, "Invalid request body"))
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}
	sess.Cart.UpdateQuantity(c.Param("productId"), *req.Quantity)
	s.persist(c.Request.Context(), sess.ID)

	c.JSON(http.StatusOK, SuccessResponse(c, "Cart updated", sess.Cart.Snapshot()))
}

func (s *Server) removeCartItem(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	sess.Cart.RemoveItem(c.Param("productId"))
	s.persist(c.Request.Context(), sess.ID)

	c.JSON(http.StatusOK, SuccessResponse(c, "Item removed from cart", sess.Cart.Snapshot()))
}

func (s *Server) clearCart(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	sess.Cart.Clear()
	s.persist(c.Request.Context(), sess.ID)

	c.JSON(http.StatusOK, SuccessResponse(c, "Cart cleared", sess.Cart.Snapshot()))
}
