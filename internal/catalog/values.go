package catalog

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/safar/quickcart/internal/models"
	"github.com/shopspring/decimal"
)

const (
	MaxPageSize = 100
	// MaxPage bounds the page cursor so the row offset stays small.
	MaxPage = 100_000
)

// Encode renders a filter and page cursor as query-string values, the
// form used both for shareable catalog URLs and for requests to the REST
// service. Unset options are omitted rather than sent empty.
func Encode(f models.ProductFilter, page, limit int) url.Values {
	v := url.Values{}
	if f.Category != "" {
		v.Set("category", f.Category)
	}
	if f.MinPrice != nil {
		v.Set("minPrice", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		v.Set("maxPrice", f.MaxPrice.String())
	}
	if f.MinRating != nil {
		v.Set("minRating", strconv.FormatFloat(*f.MinRating, 'f', -1, 64))
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.SortBy != "" {
		v.Set("sortBy", string(f.SortBy))
	}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	return v
}

// Decode is the inverse of Encode. Malformed numeric options are
// ignored, a missing or invalid page becomes 1 and a page past MaxPage
// becomes MaxPage. The limit defaults to PageSize and is capped at
// MaxPageSize.
func Decode(v url.Values) (filter models.ProductFilter, page, limit int) {
	filter.Category = strings.TrimSpace(v.Get("category"))
	filter.Search = strings.TrimSpace(v.Get("search"))
	filter.SortBy = models.ParseSortOrder(v.Get("sortBy"))

	if d, err := decimal.NewFromString(v.Get("minPrice")); err == nil {
		filter.MinPrice = &d
	}
	if d, err := decimal.NewFromString(v.Get("maxPrice")); err == nil {
		filter.MaxPrice = &d
	}
	if r, err := strconv.ParseFloat(v.Get("minRating"), 64); err == nil {
		filter.MinRating = &r
	}

	page, _ = strconv.Atoi(v.Get("page"))
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	limit, _ = strconv.Atoi(v.Get("limit"))
	if limit < 1 {
		limit = PageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	return filter, page, limit
}

// Slug lower-cases name and joins its letter and digit runs with '-'.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
