package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `p.id, p.slug, p.name, p.description, p.short_description, p.price, p.stock,
		p.images, p.rating, p.category_id, COALESCE(c.name, ''), p.featured, p.created_at`

const productFrom = `FROM products p LEFT JOIN categories c ON c.id = p.category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

// productScan collects scan destinations for productColumns. finish
// must be called after a successful Scan to copy nullable columns.
type productScan struct {
	product    *models.Product
	categoryID sql.NullInt64
}

func (s *productScan) dest() []any {
	p := s.product
	return []any{
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Description,
		&p.ShortDescription,
		&p.Price,
		&p.Stock,
		pq.Array(&p.Images),
		&p.Rating,
		&s.categoryID,
		&p.Category,
		&p.Featured,
		&p.CreatedAt,
	}
}

func (s *productScan) finish() {
	s.product.CategoryID = s.categoryID.Int64
	if s.product.Images == nil {
		s.product.Images = []string{}
	}
}

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	ps := productScan{product: product}
	if err := row.Scan(ps.dest()...); err != nil {
		return nil, err
	}
	ps.finish()
	return product, nil
}

func collectProducts(rows *sql.Rows) ([]models.Product, error) {
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func nullableCategory(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func CreateProduct(ctx context.Context, db DBTX, p models.Product) (*models.Product, error) {
	images := p.Images
	if images == nil {
		images = []string{}
	}

	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO products (slug, name, description, short_description, price, stock, images, rating, category_id, featured, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		 RETURNING id`,
		p.Slug, p.Name, p.Description, p.ShortDescription, p.Price, p.Stock,
		pq.Array(images), p.Rating, nullableCategory(p.CategoryID), p.Featured).Scan(&id)
	if err != nil {
		return nil, database.Translate(err, "create product", database.ErrDuplicateEntry, database.ErrCategoryNotFound)
	}

	return GetProduct(ctx, db, id)
}

func GetProduct(ctx context.Context, db DBTX, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` ` + productFrom + ` WHERE p.id = $1`

	product, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func GetProductBySlug(ctx context.Context, db DBTX, slug string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` ` + productFrom + ` WHERE p.slug = $1`

	product, err := scanProduct(db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product by slug: %w", err)
	}

	return product, nil
}

// GetProductsByIDs returns the products that still exist among ids,
// keyed by id.
func GetProductsByIDs(ctx context.Context, db DBTX, ids []int64) (map[int64]models.Product, error) {
	result := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + productColumns + ` ` + productFrom + ` WHERE p.id = ANY($1)`
	rows, err := db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		result[p.ID] = p
	}

	return result, nil
}

func ListFeaturedProducts(ctx context.Context, db DBTX, limit int) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` ` + productFrom + `
		WHERE p.featured = TRUE
		ORDER BY p.created_at DESC, p.id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list featured products: %w", err)
	}

	return collectProducts(rows)
}

// ListRelatedProducts returns up to limit products sharing categoryID,
// excluding excludeID.
func ListRelatedProducts(ctx context.Context, db DBTX, categoryID, excludeID int64, limit int) ([]models.Product, error) {
	if categoryID == 0 {
		return []models.Product{}, nil
	}

	query := `SELECT ` + productColumns + ` ` + productFrom + `
		WHERE p.category_id = $1 AND p.id <> $2
		ORDER BY p.id
		LIMIT $3`

	rows, err := db.QueryContext(ctx, query, categoryID, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list related products: %w", err)
	}

	return collectProducts(rows)
}

func SetProductFeatured(ctx context.Context, db DBTX, id int64, featured bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products SET featured = $1 WHERE id = $2`, featured, id)
	if err != nil {
		return fmt.Errorf("set featured: %w", err)
	}
	return expectRow(result, database.ErrProductNotFound)
}

// UpdateProduct writes the set fields of patch and returns the updated
// product.
func UpdateProduct(ctx context.Context, db DBTX, id int64, patch models.ProductPatch) (*models.Product, error) {
	var sets []string
	var args []any
	set := func(column string, arg any) {
		args = append(args, arg)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Slug != nil {
		set("slug", *patch.Slug)
	}
	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.ShortDescription != nil {
		set("short_description", *patch.ShortDescription)
	}
	if patch.Price != nil {
		set("price", *patch.Price)
	}
	if patch.Stock != nil {
		set("stock", *patch.Stock)
	}
	if patch.Images != nil {
		images := *patch.Images
		if images == nil {
			images = []string{}
		}
		set("images", pq.Array(images))
	}
	if patch.Rating != nil {
		set("rating", *patch.Rating)
	}
	if patch.CategoryID != nil {
		set("category_id", nullableCategory(*patch.CategoryID))
	}
	if patch.Featured != nil {
		set("featured", *patch.Featured)
	}

	if len(sets) == 0 {
		return GetProduct(ctx, db, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, database.Translate(err, "update product", database.ErrDuplicateEntry, database.ErrCategoryNotFound)
	}
	if err := expectRow(result, database.ErrProductNotFound); err != nil {
		return nil, err
	}

	return GetProduct(ctx, db, id)
}

// DeleteProduct removes a product with its cart, wishlist and review
// rows. Products that appear on an order are kept.
func DeleteProduct(ctx context.Context, db DBTX, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return database.Translate(err, "delete product", nil, database.ErrProductOrdered)
	}
	return expectRow(result, database.ErrProductNotFound)
}

func UpdateProductPrice(ctx context.Context, db DBTX, id int64, price decimal.Decimal) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products SET price = $1 WHERE id = $2`, price, id)
	if err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	return expectRow(result, database.ErrProductNotFound)
}

func expectRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// likePattern builds a case-insensitive substring pattern, escaping the
// LIKE metacharacters in s.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func productWhere(f models.ProductFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Category != "" {
		add("c.name ILIKE $%d", likePattern(f.Category))
	}
	if f.MinPrice != nil {
		add("p.price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("p.price <= $%d", *f.MaxPrice)
	}
	if f.MinRating != nil {
		add("p.rating >= $%d", *f.MinRating)
	}
	if f.Search != "" {
		add("p.name ILIKE $%d", likePattern(f.Search))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func productOrder(sort models.SortOrder) string {
	switch models.ParseSortOrder(string(sort)) {
	case models.SortByPriceLow:
		return " ORDER BY p.price ASC, p.id ASC"
	case models.SortByPriceHigh:
		return " ORDER BY p.price DESC, p.id ASC"
	case models.SortByRating:
		return " ORDER BY p.rating DESC, p.id ASC"
	default:
		return " ORDER BY p.name ASC, p.id ASC"
	}
}

// ListProducts runs one filtered, sorted, offset-paginated catalog query
// and reports the total number of matching rows.
func ListProducts(ctx context.Context, db DBTX, filter models.ProductFilter, page, pageSize int) (*OffsetPage[models.Product], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("list products: page size %d must be positive", pageSize)
	}

	where, args := productWhere(filter)

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) `+productFrom+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	// Pages past the last representable offset read as empty.
	offset := int64(math.MaxInt32)
	if int64(page-1) <= offset/int64(pageSize) {
		offset = int64(page-1) * int64(pageSize)
	}
	query := `SELECT ` + productColumns + ` ` + productFrom + where + productOrder(filter.SortBy) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	rows, err := db.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}

	return newOffsetPage(products, total, page, pageSize), nil
}
