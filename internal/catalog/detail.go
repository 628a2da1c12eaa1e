package catalog

import (
	"context"
	"fmt"

	"github.com/safar/quickcart/internal/models"
)

const RelatedLimit = 4

type DetailSource interface {
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListRelatedProducts(ctx context.Context, categoryID, excludeID int64, limit int) ([]models.Product, error)
}

// Detail is a product page: the product plus a few others from the same
// category.
type Detail struct {
	Product models.Product
	Related []models.Product
}

// LoadDetail looks a product up by slug. A missing product yields an
// error matching apperr.ErrNotFound.
func LoadDetail(ctx context.Context, src DetailSource, slug string) (*Detail, error) {
	product, err := src.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("load product %q: %w", slug, err)
	}

	related, err := src.ListRelatedProducts(ctx, product.CategoryID, product.ID, RelatedLimit)
	if err != nil {
		return nil, fmt.Errorf("load related products: %w", err)
	}

	return &Detail{Product: *product, Related: related}, nil
}
