package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/catalog"
	"github.com/safar/quickcart/internal/models"
	"github.com/shopspring/decimal"
)

type productListResponse struct {
	Products []models.Product `json:"products"`
	Page     int              `json:"page"`
	Total    int64            `json:"total"`
	Pages    int              `json:"pages"`
	HasMore  bool             `json:"has_more"`
}

type allProductsResponse struct {
	Featured    []models.Product `json:"featured_products"`
	All         []models.Product `json:"all_products"`
	ShopPage    int              `json:"shop_page"`
	ShopTotal   int64            `json:"shop_total"`
	ShopPages   int              `json:"shop_pages"`
	ShopHasMore bool             `json:"shop_has_more"`
}

type createProductRequest struct {
	Slug             string          `json:"slug"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"short_description"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock"`
	Images           []string        `json:"images"`
	ImageURL         string          `json:"image_url"`
	Rating           float64         `json:"rating"`
	CategoryID       int64           `json:"category_id"`
	Featured         bool            `json:"featured"`
}

func (r createProductRequest) product() (models.Product, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return models.Product{}, apperr.Validation("name", "Name is required.")
	}
	if !r.Price.IsPositive() {
		return models.Product{}, apperr.Validation("price", "Price must be greater than zero.")
	}
	if r.Stock < 0 {
		return models.Product{}, apperr.Validation("stock", "Stock cannot be negative.")
	}
	if r.Rating < 0 || r.Rating > 5 {
		return models.Product{}, apperr.Validation("rating", "Rating must be between 0 and 5.")
	}

	images := r.Images
	if len(images) == 0 && r.ImageURL != "" {
		images = []string{r.ImageURL}
	}
	slug := r.Slug
	if slug == "" {
		slug = catalog.Slug(name)
	}

	return models.Product{
		Slug:             slug,
		Name:             name,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		Price:            r.Price,
		Stock:            r.Stock,
		Images:           images,
		Rating:           r.Rating,
		CategoryID:       r.CategoryID,
		Featured:         r.Featured,
	}, nil
}

// updateProductRequest is a partial update. image_url replaces the image
// list when images is absent.
type updateProductRequest struct {
	models.ProductPatch
	ImageURL *string `json:"image_url"`
}

func (r updateProductRequest) patch() (models.ProductPatch, error) {
	p := r.ProductPatch
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return p, apperr.Validation("name", "Name is required.")
		}
		p.Name = &name
	}
	if p.Slug != nil && strings.TrimSpace(*p.Slug) == "" {
		return p, apperr.Validation("slug", "Slug cannot be empty.")
	}
	if p.Price != nil && !p.Price.IsPositive() {
		return p, apperr.Validation("price", "Price must be greater than zero.")
	}
	if p.Stock != nil && *p.Stock < 0 {
		return p, apperr.Validation("stock", "Stock cannot be negative.")
	}
	if p.Rating != nil && (*p.Rating < 0 || *p.Rating > 5) {
		return p, apperr.Validation("rating", "Rating must be between 0 and 5.")
	}
	if p.Images == nil && r.ImageURL != nil {
		images := []string{}
		if *r.ImageURL != "" {
			images = append(images, *r.ImageURL)
		}
		p.Images = &images
	}
	return p, nil
}

// listPage runs the catalog query described by the request's query
// string.
func (s *Server) listPage(c *gin.Context) (catalog.Page, int, int, error) {
	filter, page, limit := catalog.Decode(c.Request.URL.Query())
	result, err := s.catalog.FetchProducts(c.Request.Context(), filter, page, limit)
	if err != nil {
		return catalog.Page{}, 0, 0, err
	}
	return result, page, pageCount(result.Total, limit), nil
}

func (s *Server) listProducts(c *gin.Context) {
	result, page, pages, err := s.listPage(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, productListResponse{
		Products: result.Products,
		Page:     page,
		Total:    result.Total,
		Pages:    pages,
		HasMore:  page < pages,
	})
}

func (s *Server) allProducts(c *gin.Context) {
	featured, err := s.catalog.FeaturedProducts(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, page, pages, err := s.listPage(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, allProductsResponse{
		Featured:    featured,
		All:         result.Products,
		ShopPage:    page,
		ShopTotal:   result.Total,
		ShopPages:   pages,
		ShopHasMore: page < pages,
	})
}

func (s *Server) getProduct(c *gin.Context) {
	id, ok := s.productID(c, "id")
	if !ok {
		return
	}

	product, err := s.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (s *Server) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	p, err := req.product()
	if err != nil {
		s.respondError(c, err)
		return
	}

	product, err := s.catalog.CreateProduct(c.Request.Context(), p)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (s *Server) updateProduct(c *gin.Context) {
	id, ok := s.productID(c, "id")
	if !ok {
		return
	}

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	patch, err := req.patch()
	if err != nil {
		s.respondError(c, err)
		return
	}

	product, err := s.catalog.UpdateProduct(c.Request.Context(), id, patch)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (s *Server) deleteProduct(c *gin.Context) {
	id, ok := s.productID(c, "id")
	if !ok {
		return
	}

	if err := s.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

func (s *Server) featureProduct(c *gin.Context) {
	id, ok := s.productID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.catalog.SetProductFeatured(ctx, id, true); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Product '%s' is now featured.", product.Name)})
}

func (s *Server) featuredProducts(c *gin.Context) {
	products, err := s.catalog.FeaturedProducts(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.catalog.Categories(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (s *Server) createCategory(c *gin.Context) {
	var req models.Category
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.respondError(c, apperr.Validation("name", "Name is required."))
		return
	}
	if req.Slug == "" {
		req.Slug = catalog.Slug(req.Name)
	}

	category, err := s.catalog.CreateCategory(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (s *Server) productID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return 0, false
	}
	return id, true
}

func pageCount(total int64, limit int) int {
	if limit < 1 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
