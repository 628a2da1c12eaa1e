// Package gateway adapts the PostgreSQL store functions to the backend
// interfaces the storefront state owners depend on.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/auth"
	"github.com/safar/quickcart/internal/catalog"
	"github.com/safar/quickcart/internal/cart"
	"github.com/safar/quickcart/internal/checkout"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/orders"
	"github.com/safar/quickcart/internal/reviews"
	"github.com/safar/quickcart/internal/session"
	"github.com/safar/quickcart/internal/store"
	"github.com/safar/quickcart/internal/wishlist"
	"github.com/shopspring/decimal"
)

type Postgres struct {
	db     *sql.DB
	tokens *auth.Tokens
	logger *slog.Logger
}

var (
	_ session.Authenticator = (*Postgres)(nil)
	_ cart.Backend          = (*Postgres)(nil)
	_ cart.ProductLookup    = (*Postgres)(nil)
	_ wishlist.Backend      = (*Postgres)(nil)
	_ catalog.Source        = (*Postgres)(nil)
	_ catalog.DetailSource  = (*Postgres)(nil)
	_ checkout.Backend      = (*Postgres)(nil)
	_ orders.Backend        = (*Postgres)(nil)
	_ reviews.Backend       = (*Postgres)(nil)
)

func NewPostgres(db *sql.DB, tokens *auth.Tokens, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:     db,
		tokens: tokens,
		logger: logger.With("component", "gateway"),
	}
}

func (g *Postgres) SignUp(ctx context.Context, email, password string) (models.Identity, string, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.Identity{}, "", err
	}

	user, err := store.CreateUser(ctx, g.db, strings.TrimSpace(email), hash)
	if err != nil {
		return models.Identity{}, "", err
	}

	g.logger.Info("user created", "user_id", user.ID)
	return g.issue(user)
}

func (g *Postgres) SignIn(ctx context.Context, email, password string) (models.Identity, string, error) {
	user, err := store.GetUserByEmail(ctx, g.db, strings.TrimSpace(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Identity{}, "", auth.ErrInvalidCredentials
	}
	if err != nil {
		return models.Identity{}, "", err
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return models.Identity{}, "", err
	}

	return g.issue(user)
}

func (g *Postgres) issue(user *models.User) (models.Identity, string, error) {
	id := models.Identity{UserID: user.ID, Email: user.Email}
	token, err := g.tokens.Issue(id)
	if err != nil {
		return models.Identity{}, "", err
	}
	return id, token, nil
}

func (g *Postgres) FetchProducts(ctx context.Context, filter models.ProductFilter, page, limit int) (catalog.Page, error) {
	result, err := store.ListProducts(ctx, g.db, filter, page, limit)
	if err != nil {
		return catalog.Page{}, err
	}
	return catalog.Page{Products: result.Items, Total: result.Total, Counted: true}, nil
}

func (g *Postgres) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return store.GetProduct(ctx, g.db, id)
}

func (g *Postgres) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	return store.CreateProduct(ctx, g.db, p)
}

func (g *Postgres) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	return store.UpdateProduct(ctx, g.db, id, patch)
}

func (g *Postgres) DeleteProduct(ctx context.Context, id int64) error {
	return store.DeleteProduct(ctx, g.db, id)
}

func (g *Postgres) SetProductFeatured(ctx context.Context, id int64, featured bool) error {
	return store.SetProductFeatured(ctx, g.db, id, featured)
}

func (g *Postgres) CreateCategory(ctx context.Context, c models.Category) (*models.Category, error) {
	return store.CreateCategory(ctx, g.db, c.Slug, c.Name, c.Image)
}

func (g *Postgres) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return store.GetProductBySlug(ctx, g.db, slug)
}

func (g *Postgres) ListRelatedProducts(ctx context.Context, categoryID, excludeID int64, limit int) ([]models.Product, error) {
	return store.ListRelatedProducts(ctx, g.db, categoryID, excludeID, limit)
}

func (g *Postgres) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	return store.GetProductsByIDs(ctx, g.db, ids)
}

func (g *Postgres) FeaturedProducts(ctx context.Context) ([]models.Product, error) {
	return store.ListFeaturedProducts(ctx, g.db, 0)
}

func (g *Postgres) Categories(ctx context.Context) ([]models.Category, error) {
	return store.ListCategories(ctx, g.db)
}

func (g *Postgres) ListCartLines(ctx context.Context, owner uuid.UUID) ([]models.CartLine, error) {
	return store.ListCartLines(ctx, g.db, owner)
}

func (g *Postgres) InsertCartLine(ctx context.Context, owner uuid.UUID, productID int64, quantity int) error {
	return store.InsertCartLine(ctx, g.db, owner, productID, quantity)
}

func (g *Postgres) UpdateCartLineQuantity(ctx context.Context, owner uuid.UUID, productID int64, quantity int) error {
	return store.UpdateCartLineQuantity(ctx, g.db, owner, productID, quantity)
}

func (g *Postgres) DeleteCartLine(ctx context.Context, owner uuid.UUID, productID int64) error {
	return store.DeleteCartLine(ctx, g.db, owner, productID)
}

func (g *Postgres) DeleteCartLines(ctx context.Context, owner uuid.UUID) error {
	return store.DeleteCartLines(ctx, g.db, owner)
}

func (g *Postgres) ListWishlist(ctx context.Context, owner uuid.UUID) ([]models.WishlistEntry, error) {
	return store.ListWishlist(ctx, g.db, owner)
}

func (g *Postgres) InsertWishlistEntry(ctx context.Context, owner uuid.UUID, productID int64) error {
	return store.InsertWishlistEntry(ctx, g.db, owner, productID)
}

func (g *Postgres) DeleteWishlistEntry(ctx context.Context, owner uuid.UUID, productID int64) error {
	return store.DeleteWishlistEntry(ctx, g.db, owner, productID)
}

func (g *Postgres) InsertOrder(ctx context.Context, owner uuid.UUID, total decimal.Decimal, address models.ShippingAddress) (uuid.UUID, error) {
	order, err := store.InsertOrder(ctx, g.db, store.CreateOrderRequest{
		UserID:          owner,
		TotalAmount:     total,
		ShippingAddress: address,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return order.ID, nil
}

func (g *Postgres) InsertOrderLines(ctx context.Context, lines []models.OrderLine) error {
	return store.InsertOrderLines(ctx, g.db, lines)
}

func (g *Postgres) ListOrders(ctx context.Context, owner uuid.UUID) ([]models.Order, error) {
	return store.ListOrders(ctx, g.db, owner)
}

func (g *Postgres) ListOrdersPage(ctx context.Context, owner uuid.UUID, cursor string, limit int) ([]models.Order, string, error) {
	page, err := store.ListOrdersCursor(ctx, g.db, owner, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	return page.Items, page.NextCursor, nil
}

func (g *Postgres) GetOrder(ctx context.Context, owner, id uuid.UUID) (*models.Order, error) {
	return store.GetOrder(ctx, g.db, owner, id)
}

func (g *Postgres) ListReviews(ctx context.Context, productID int64) ([]models.Review, error) {
	return store.ListReviews(ctx, g.db, productID)
}

func (g *Postgres) InsertReview(ctx context.Context, review models.Review) error {
	_, err := store.InsertReview(ctx, g.db, review)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}
