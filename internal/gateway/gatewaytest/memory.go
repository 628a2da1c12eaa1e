// Package gatewaytest provides an in-memory data gateway for tests of the
// storefront state owners and the REST service.
package gatewaytest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/cart"
	"github.com/safar/quickcart/internal/catalog"
	"github.com/safar/quickcart/internal/checkout"
	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/orders"
	"github.com/safar/quickcart/internal/reviews"
	"github.com/safar/quickcart/internal/session"
	"github.com/safar/quickcart/internal/wishlist"
	"github.com/shopspring/decimal"
)

var (
	_ session.Authenticator = (*Memory)(nil)
	_ cart.Backend          = (*Memory)(nil)
	_ cart.ProductLookup    = (*Memory)(nil)
	_ wishlist.Backend      = (*Memory)(nil)
	_ catalog.Source        = (*Memory)(nil)
	_ catalog.DetailSource  = (*Memory)(nil)
	_ checkout.Backend      = (*Memory)(nil)
	_ orders.Backend        = (*Memory)(nil)
	_ reviews.Backend       = (*Memory)(nil)
)

type account struct {
	id       models.Identity
	password string
}

// Memory mirrors the Postgres gateway's semantics over maps. Errors set
// with FailOn are returned by the named method until cleared.
type Memory struct {
	mu sync.Mutex

	nextID     int64
	products   map[int64]models.Product
	categories []models.Category
	accounts   map[string]account
	carts      map[uuid.UUID][]models.CartLine
	wishlists  map[uuid.UUID][]models.WishlistEntry
	orders     []models.Order
	reviews    []models.Review

	failures map[string]error
	calls    map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		products:  map[int64]models.Product{},
		accounts:  map[string]account{},
		carts:     map[uuid.UUID][]models.CartLine{},
		wishlists: map[uuid.UUID][]models.WishlistEntry{},
		failures:  map[string]error{},
		calls:     map[string]int{},
	}
}

// FailOn makes method return err. A nil err clears the failure.
func (m *Memory) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// Calls reports how many times method was invoked.
func (m *Memory) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// enter records the call and returns the injected failure, if any. The
// caller must hold m.mu.
func (m *Memory) enter(method string) error {
	m.calls[method]++
	return m.failures[method]
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

// AddProduct stores p, assigning an id and slug when missing.
func (m *Memory) AddProduct(p models.Product) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addProduct(p)
}

func (m *Memory) addProduct(p models.Product) models.Product {
	if p.ID == 0 {
		p.ID = m.id()
	}
	if p.Slug == "" {
		p.Slug = catalog.Slug(p.Name)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	for _, c := range m.categories {
		if c.ID == p.CategoryID {
			p.Category = c.Name
		}
	}
	m.products[p.ID] = p
	return p
}

// SetPrice changes a product's live price.
func (m *Memory) SetPrice(id int64, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[id]
	p.Price = price
	m.products[id] = p
}

// Orders returns every stored order regardless of owner.
func (m *Memory) Orders() []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Order, len(m.orders))
	copy(out, m.orders)
	return out
}

func (m *Memory) SignUp(ctx context.Context, email, password string) (models.Identity, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SignUp"); err != nil {
		return models.Identity{}, "", err
	}

	key := strings.ToLower(email)
	if _, ok := m.accounts[key]; ok {
		return models.Identity{}, "", database.ErrEmailTaken
	}
	id := models.Identity{UserID: uuid.New(), Email: key}
	m.accounts[key] = account{id: id, password: password}
	return id, "token-" + id.UserID.String(), nil
}

func (m *Memory) SignIn(ctx context.Context, email, password string) (models.Identity, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SignIn"); err != nil {
		return models.Identity{}, "", err
	}

	acc, ok := m.accounts[strings.ToLower(email)]
	if !ok || acc.password != password {
		return models.Identity{}, "", fmt.Errorf("invalid email or password: %w", apperr.ErrAuthRequired)
	}
	return acc.id, "token-" + acc.id.UserID.String(), nil
}

func (m *Memory) FetchProducts(ctx context.Context, filter models.ProductFilter, page, limit int) (catalog.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FetchProducts"); err != nil {
		return catalog.Page{}, err
	}

	var matched []models.Product
	for _, p := range m.products {
		if matches(filter, p) {
			matched = append(matched, p)
		}
	}
	sortProducts(matched, filter.SortBy)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = catalog.PageSize
	}
	start, end := len(matched), len(matched)
	if page-1 <= len(matched)/limit {
		start = min((page-1)*limit, len(matched))
		end = min(start+limit, len(matched))
	}

	items := append([]models.Product{}, matched[start:end]...)
	return catalog.Page{Products: items, Total: int64(len(matched)), Counted: true}, nil
}

func matches(f models.ProductFilter, p models.Product) bool {
	if f.Category != "" && !strings.Contains(strings.ToLower(p.Category), strings.ToLower(f.Category)) {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.MinRating != nil && p.Rating < *f.MinRating {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func sortProducts(products []models.Product, order models.SortOrder) {
	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		switch models.ParseSortOrder(string(order)) {
		case models.SortByPriceLow:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case models.SortByPriceHigh:
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		case models.SortByRating:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		default:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		}
		return a.ID < b.ID
	})
}

func (m *Memory) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetProduct"); err != nil {
		return nil, err
	}

	p, ok := m.products[id]
	if !ok {
		return nil, database.ErrProductNotFound
	}
	return &p, nil
}

func (m *Memory) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetProductBySlug"); err != nil {
		return nil, err
	}

	for _, p := range m.products {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, database.ErrProductNotFound
}

func (m *Memory) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateProduct"); err != nil {
		return nil, err
	}

	for _, existing := range m.products {
		if existing.Slug == p.Slug {
			return nil, database.ErrDuplicateEntry
		}
	}
	p.ID = 0
	created := m.addProduct(p)
	return &created, nil
}

func (m *Memory) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateProduct"); err != nil {
		return nil, err
	}

	p, ok := m.products[id]
	if !ok {
		return nil, database.ErrProductNotFound
	}
	if patch.Slug != nil {
		for _, other := range m.products {
			if other.ID != id && other.Slug == *patch.Slug {
				return nil, database.ErrDuplicateEntry
			}
		}
	}
	if patch.CategoryID != nil && *patch.CategoryID != 0 && !m.hasCategory(*patch.CategoryID) {
		return nil, database.ErrCategoryNotFound
	}

	patch.Apply(&p)
	p.Category = ""
	updated := m.addProduct(p)
	return &updated, nil
}

func (m *Memory) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteProduct"); err != nil {
		return err
	}

	if _, ok := m.products[id]; !ok {
		return database.ErrProductNotFound
	}
	for _, o := range m.orders {
		for _, item := range o.Items {
			if item.ProductID == id {
				return database.ErrProductOrdered
			}
		}
	}

	delete(m.products, id)
	for owner, lines := range m.carts {
		kept := []models.CartLine{}
		for _, line := range lines {
			if line.ProductID != id {
				kept = append(kept, line)
			}
		}
		m.carts[owner] = kept
	}
	for owner, entries := range m.wishlists {
		kept := []models.WishlistEntry{}
		for _, e := range entries {
			if e.ProductID != id {
				kept = append(kept, e)
			}
		}
		m.wishlists[owner] = kept
	}
	reviews := []models.Review{}
	for _, r := range m.reviews {
		if r.ProductID != id {
			reviews = append(reviews, r)
		}
	}
	m.reviews = reviews
	return nil
}

func (m *Memory) hasCategory(id int64) bool {
	for _, c := range m.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (m *Memory) SetProductFeatured(ctx context.Context, id int64, featured bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SetProductFeatured"); err != nil {
		return err
	}

	p, ok := m.products[id]
	if !ok {
		return database.ErrProductNotFound
	}
	p.Featured = featured
	m.products[id] = p
	return nil
}

func (m *Memory) FeaturedProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FeaturedProducts"); err != nil {
		return nil, err
	}

	featured := []models.Product{}
	for _, p := range m.products {
		if p.Featured {
			featured = append(featured, p)
		}
	}
	sort.Slice(featured, func(i, j int) bool { return featured[i].ID > featured[j].ID })
	return featured, nil
}

func (m *Memory) ListRelatedProducts(ctx context.Context, categoryID, excludeID int64, limit int) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListRelatedProducts"); err != nil {
		return nil, err
	}

	related := []models.Product{}
	if categoryID == 0 {
		return related, nil
	}
	for _, p := range m.products {
		if p.CategoryID == categoryID && p.ID != excludeID {
			related = append(related, p)
		}
	}
	sort.Slice(related, func(i, j int) bool { return related[i].ID < related[j].ID })
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

func (m *Memory) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetProductsByIDs"); err != nil {
		return nil, err
	}

	found := make(map[int64]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (m *Memory) Categories(ctx context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Categories"); err != nil {
		return nil, err
	}

	out := append([]models.Category{}, m.categories...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateCategory(ctx context.Context, c models.Category) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateCategory"); err != nil {
		return nil, err
	}

	for _, existing := range m.categories {
		if existing.Slug == c.Slug || existing.Name == c.Name {
			return nil, database.ErrDuplicateEntry
		}
	}
	c.ID = m.id()
	m.categories = append(m.categories, c)
	return &c, nil
}

func (m *Memory) ListCartLines(ctx context.Context, owner uuid.UUID) ([]models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListCartLines"); err != nil {
		return nil, err
	}

	lines := make([]models.CartLine, 0, len(m.carts[owner]))
	for _, line := range m.carts[owner] {
		if p, ok := m.products[line.ProductID]; ok {
			line.Product = p
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (m *Memory) InsertCartLine(ctx context.Context, owner uuid.UUID, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertCartLine"); err != nil {
		return err
	}

	if _, ok := m.products[productID]; !ok {
		return database.ErrProductNotFound
	}
	for _, line := range m.carts[owner] {
		if line.ProductID == productID {
			return database.ErrDuplicateEntry
		}
	}
	m.carts[owner] = append(m.carts[owner], models.CartLine{
		ID: m.id(), OwnerID: owner, ProductID: productID, Quantity: quantity,
	})
	return nil
}

func (m *Memory) UpdateCartLineQuantity(ctx context.Context, owner uuid.UUID, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateCartLineQuantity"); err != nil {
		return err
	}

	lines := m.carts[owner]
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = quantity
			return nil
		}
	}
	return database.ErrCartLineNotFound
}

func (m *Memory) DeleteCartLine(ctx context.Context, owner uuid.UUID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteCartLine"); err != nil {
		return err
	}

	kept := []models.CartLine{}
	for _, line := range m.carts[owner] {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	m.carts[owner] = kept
	return nil
}

func (m *Memory) DeleteCartLines(ctx context.Context, owner uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteCartLines"); err != nil {
		return err
	}

	delete(m.carts, owner)
	return nil
}

func (m *Memory) ListWishlist(ctx context.Context, owner uuid.UUID) ([]models.WishlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListWishlist"); err != nil {
		return nil, err
	}

	entries := make([]models.WishlistEntry, 0, len(m.wishlists[owner]))
	for _, e := range m.wishlists[owner] {
		if p, ok := m.products[e.ProductID]; ok {
			e.Product = p
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *Memory) InsertWishlistEntry(ctx context.Context, owner uuid.UUID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertWishlistEntry"); err != nil {
		return err
	}

	if _, ok := m.products[productID]; !ok {
		return database.ErrProductNotFound
	}
	for _, e := range m.wishlists[owner] {
		if e.ProductID == productID {
			return database.ErrDuplicateEntry
		}
	}
	m.wishlists[owner] = append(m.wishlists[owner], models.WishlistEntry{
		ID: m.id(), OwnerID: owner, ProductID: productID, CreatedAt: time.Now(),
	})
	return nil
}

func (m *Memory) DeleteWishlistEntry(ctx context.Context, owner uuid.UUID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteWishlistEntry"); err != nil {
		return err
	}

	kept := []models.WishlistEntry{}
	for _, e := range m.wishlists[owner] {
		if e.ProductID != productID {
			kept = append(kept, e)
		}
	}
	m.wishlists[owner] = kept
	return nil
}

func (m *Memory) InsertOrder(ctx context.Context, owner uuid.UUID, total decimal.Decimal, address models.ShippingAddress) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertOrder"); err != nil {
		return uuid.Nil, err
	}

	order := models.Order{
		ID:              uuid.New(),
		UserID:          owner,
		Status:          models.OrderStatusPending,
		TotalAmount:     total,
		ShippingAddress: address,
		CreatedAt:       time.Now(),
		Items:           []models.OrderLine{},
	}
	m.orders = append(m.orders, order)
	return order.ID, nil
}

func (m *Memory) InsertOrderLines(ctx context.Context, lines []models.OrderLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertOrderLines"); err != nil {
		return err
	}

	for _, line := range lines {
		if _, ok := m.products[line.ProductID]; !ok {
			return database.ErrProductNotFound
		}
	}
	for _, line := range lines {
		for i := range m.orders {
			if m.orders[i].ID == line.OrderID {
				line.ID = m.id()
				line.Product = m.products[line.ProductID]
				m.orders[i].Items = append(m.orders[i].Items, line)
			}
		}
	}
	return nil
}

func (m *Memory) ownedOrders(owner uuid.UUID) []models.Order {
	owned := []models.Order{}
	for i := len(m.orders) - 1; i >= 0; i-- {
		if m.orders[i].UserID == owner {
			owned = append(owned, m.orders[i])
		}
	}
	return owned
}

func (m *Memory) ListOrders(ctx context.Context, owner uuid.UUID) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListOrders"); err != nil {
		return nil, err
	}
	return m.ownedOrders(owner), nil
}

// ListOrdersPage uses the decimal offset as its cursor.
func (m *Memory) ListOrdersPage(ctx context.Context, owner uuid.UUID, cursor string, limit int) ([]models.Order, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListOrdersPage"); err != nil {
		return nil, "", err
	}

	owned := m.ownedOrders(owner)
	offset := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "%d", &offset); err != nil {
			return nil, "", fmt.Errorf("decode cursor: %w", err)
		}
	}
	if offset > len(owned) {
		offset = len(owned)
	}
	end := offset + limit
	if end >= len(owned) {
		return owned[offset:], "", nil
	}
	return owned[offset:end], fmt.Sprint(end), nil
}

func (m *Memory) GetOrder(ctx context.Context, owner, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetOrder"); err != nil {
		return nil, err
	}

	for _, o := range m.orders {
		if o.ID == id && o.UserID == owner {
			return &o, nil
		}
	}
	return nil, database.ErrOrderNotFound
}

func (m *Memory) ListReviews(ctx context.Context, productID int64) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListReviews"); err != nil {
		return nil, err
	}

	out := []models.Review{}
	for i := len(m.reviews) - 1; i >= 0; i-- {
		if m.reviews[i].ProductID == productID {
			out = append(out, m.reviews[i])
		}
	}
	return out, nil
}

func (m *Memory) InsertReview(ctx context.Context, r models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertReview"); err != nil {
		return err
	}

	if _, ok := m.products[r.ProductID]; !ok {
		return database.ErrProductNotFound
	}
	r.ID = m.id()
	r.CreatedAt = time.Now()
	m.reviews = append(m.reviews, r)
	return nil
}
