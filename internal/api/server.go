// Package api serves the storefront catalog, authentication and cart
// over HTTP under /api.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/cart"
	"github.com/safar/quickcart/internal/catalog"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/session"
)

type Catalog interface {
	catalog.Source
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	SetProductFeatured(ctx context.Context, id int64, featured bool) error
	FeaturedProducts(ctx context.Context) ([]models.Product, error)
	Categories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, c models.Category) (*models.Category, error)
}

type TokenParser interface {
	Parse(token string) (models.Identity, error)
}

type Deps struct {
	Catalog Catalog
	Carts   cart.Backend
	Auth    session.Authenticator
	Tokens  TokenParser
	// AllowOrigins lists the browser origins allowed to call the API.
	// Empty allows any origin.
	AllowOrigins []string
}

type Server struct {
	catalog Catalog
	carts   cart.Backend
	auth    session.Authenticator
	tokens  TokenParser
	origins []string
	logger  *slog.Logger
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	return &Server{
		catalog: deps.Catalog,
		carts:   deps.Carts,
		auth:    deps.Auth,
		tokens:  deps.Tokens,
		origins: deps.AllowOrigins,
		logger:  logger.With("component", "api"),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger, s.cors())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to QuickCart API!"})
	})

	api := r.Group("/api")
	{
		api.GET("/products", s.listProducts)
		api.POST("/products", s.createProduct)
		api.GET("/products/:id", s.getProduct)
		api.PUT("/products/:id", s.updateProduct)
		api.DELETE("/products/:id", s.deleteProduct)
		api.PUT("/products/:id/feature", s.featureProduct)
		api.GET("/featured-products", s.featuredProducts)
		api.GET("/all-products", s.allProducts)

		api.GET("/categories", s.listCategories)
		api.POST("/categories", s.createCategory)

		api.POST("/auth/signup", s.signUp)
		api.POST("/auth/signin", s.signIn)

		cartGroup := api.Group("/cart")
		cartGroup.Use(s.requireAuth)
		{
			cartGroup.GET("", s.getCart)
			cartGroup.POST("", s.addToCart)
			cartGroup.DELETE("/:product_id", s.removeFromCart)
		}
	}

	return r
}

func (s *Server) cors() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.origins
	}
	return cors.New(cfg)
}

func (s *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Info("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}

// respondError writes err with the status its kind maps to. Transport
// and unclassified errors are logged and hidden behind a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	var validation *apperr.ValidationError

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		errors.As(err, &validation)
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message, "field": validation.Field})
	case apperr.KindAuthRequired:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
