package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/quickcart/internal/cart"
	"github.com/safar/quickcart/internal/models"
	"github.com/shopspring/decimal"
)

type cartResponse struct {
	Items []models.CartLine `json:"items"`
	Count int               `json:"count"`
	Total decimal.Decimal   `json:"total"`
}

type addToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity"`
}

// cartFor builds a cart store bound to the request's identity. The store
// keeps the add-or-increment and refetch rules in one place for both the
// service and the CLI.
func (s *Server) cartFor(c *gin.Context) *cart.Store {
	return cart.NewStore(s.carts, requestSession{id: identityFrom(c)}, s.logger)
}

func respondCart(c *gin.Context, status int, store *cart.Store) {
	lines := store.Lines()
	c.JSON(status, cartResponse{
		Items: lines,
		Count: cart.Count(lines),
		Total: cart.Total(lines),
	})
}

func (s *Server) getCart(c *gin.Context) {
	store := s.cartFor(c)
	if err := store.Refresh(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	respondCart(c, http.StatusOK, store)
}

func (s *Server) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ctx := c.Request.Context()
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	store := s.cartFor(c)
	if err := store.Refresh(ctx); err != nil {
		s.respondError(c, err)
		return
	}
	if err := store.Add(ctx, *product, req.Quantity); err != nil {
		s.respondError(c, err)
		return
	}

	respondCart(c, http.StatusCreated, store)
}

func (s *Server) removeFromCart(c *gin.Context) {
	id, ok := s.productID(c, "product_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	store := s.cartFor(c)
	if err := store.Refresh(ctx); err != nil {
		s.respondError(c, err)
		return
	}
	if err := store.Remove(ctx, id); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}
