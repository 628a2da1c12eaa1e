// Package catalog composes shopper-selected filters, sort order and a
// page cursor into product requests, and accumulates the returned pages
// into the displayed product list.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/notify"
	"github.com/shopspring/decimal"
)

const PageSize = 12

// Page is one page of products from a Source. Counted sources report
// Total; service sources report More instead.
type Page struct {
	Products []models.Product
	Total    int64
	Counted  bool
	More     *bool
}

type Source interface {
	FetchProducts(ctx context.Context, filter models.ProductFilter, page, limit int) (Page, error)
}

// Snapshot is what subscribers of a Query receive after each change.
type Snapshot struct {
	Filter   models.ProductFilter
	Page     int
	Products []models.Product
	HasMore  bool
}

// Query holds the current filter set and the product list built from
// pages 1..Page() of it. Changing the filter restarts from page 1 and
// replaces the list; NextPage appends.
type Query struct {
	source Source
	logger *slog.Logger

	mu       sync.RWMutex
	filter   models.ProductFilter
	page     int
	products []models.Product
	hasMore  bool
	loading  bool

	changes notify.Hub[Snapshot]
}

func NewQuery(source Source, logger *slog.Logger) *Query {
	return &Query{
		source:   source,
		logger:   logger.With("component", "catalog"),
		filter:   models.ProductFilter{SortBy: models.SortByName},
		page:     1,
		products: []models.Product{},
	}
}

func (q *Query) Filter() models.ProductFilter {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.filter
}

func (q *Query) Page() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.page
}

func (q *Query) Products() []models.Product {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]models.Product, len(q.products))
	copy(out, q.products)
	return out
}

func (q *Query) HasMore() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.hasMore
}

func (q *Query) Loading() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.loading
}

func (q *Query) Subscribe(fn func(context.Context, Snapshot)) (unsubscribe func()) {
	return q.changes.Subscribe(fn)
}

// Load fetches page 1 of the current filter.
func (q *Query) Load(ctx context.Context) error {
	return q.fetch(ctx, q.Filter(), 1)
}

// SetFilter replaces the whole filter set and reloads from page 1.
func (q *Query) SetFilter(ctx context.Context, filter models.ProductFilter) error {
	filter.SortBy = models.ParseSortOrder(string(filter.SortBy))
	return q.fetch(ctx, filter, 1)
}

// Update changes one named option (the query-string names: category,
// minPrice, maxPrice, minRating, search, sortBy) and reloads from page
// 1. An empty value clears the option.
func (q *Query) Update(ctx context.Context, key, value string) error {
	filter := q.Filter()
	if err := SetOption(&filter, key, value); err != nil {
		return err
	}
	return q.fetch(ctx, filter, 1)
}

func (q *Query) ClearFilters(ctx context.Context) error {
	return q.fetch(ctx, models.ProductFilter{SortBy: models.SortByName}, 1)
}

// NextPage appends the next page of the current filter. It does nothing
// when the last fetch reported no more results.
func (q *Query) NextPage(ctx context.Context) error {
	q.mu.RLock()
	filter, page, more := q.filter, q.page, q.hasMore
	q.mu.RUnlock()

	if !more {
		return nil
	}
	return q.fetch(ctx, filter, page+1)
}

// fetch requests page of filter and installs the result. State is only
// changed once the request succeeded. Overlapping fetches are not
// cancelled; whichever completes last wins.
func (q *Query) fetch(ctx context.Context, filter models.ProductFilter, page int) error {
	q.setLoading(true)
	defer q.setLoading(false)

	result, err := q.source.FetchProducts(ctx, filter, page, PageSize)
	if err != nil {
		q.logger.Warn("fetch products failed", "page", page, "error", err)
		return fmt.Errorf("fetch products: %w", err)
	}

	q.mu.Lock()
	if page == 1 {
		q.products = append([]models.Product{}, result.Products...)
	} else {
		q.products = append(q.products, result.Products...)
	}
	q.filter = filter
	q.page = page
	q.hasMore = hasMore(result, len(q.products), PageSize)
	snapshot := Snapshot{
		Filter:   q.filter,
		Page:     q.page,
		Products: append([]models.Product{}, q.products...),
		HasMore:  q.hasMore,
	}
	q.mu.Unlock()

	q.changes.Publish(ctx, snapshot)
	return nil
}

func (q *Query) setLoading(v bool) {
	q.mu.Lock()
	q.loading = v
	q.mu.Unlock()
}

func hasMore(p Page, cumulative, limit int) bool {
	if p.More != nil {
		return *p.More
	}
	full := len(p.Products) == limit
	if !p.Counted {
		return full
	}
	return full && int64(cumulative) < p.Total
}

// SetOption sets one named option of f from its text form. An empty
// value clears the option; malformed numbers are validation errors.
func SetOption(f *models.ProductFilter, key, value string) error {
	value = strings.TrimSpace(value)

	switch key {
	case "category":
		f.Category = value
	case "search":
		f.Search = value
	case "sortBy":
		f.SortBy = models.ParseSortOrder(value)
	case "minPrice", "maxPrice":
		var bound *decimal.Decimal
		if value != "" {
			d, err := decimal.NewFromString(value)
			if err != nil || d.IsNegative() {
				return apperr.Validation(key, "Enter a valid price.")
			}
			bound = &d
		}
		if key == "minPrice" {
			f.MinPrice = bound
		} else {
			f.MaxPrice = bound
		}
	case "minRating":
		f.MinRating = nil
		if value != "" {
			r, err := strconv.ParseFloat(value, 64)
			if err != nil || r < 0 || r > 5 {
				return apperr.Validation(key, "Rating must be between 0 and 5.")
			}
			f.MinRating = &r
		}
	default:
		return apperr.Validation(key, "Unknown filter %q.", key)
	}
	return nil
}
