package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/catalog"
	"github.com/safar/quickcart/internal/gateway/gatewaytest"
	"github.com/safar/quickcart/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

func stocked(t *testing.T, n int) *gatewaytest.Memory {
	t.Helper()
	mem := gatewaytest.NewMemory()
	cat, err := mem.CreateCategory(context.Background(), models.Category{Slug: "gadgets", Name: "Gadgets"})
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		mem.AddProduct(models.Product{
			Name:       fmt.Sprintf("Gadget %02d", i),
			Price:      decimal.NewFromInt(int64(i)),
			Rating:     float64(i%5) + 0.5,
			CategoryID: cat.ID,
		})
	}
	return mem
}

func TestQueryPagesAccumulate(t *testing.T) {
	q := catalog.NewQuery(stocked(t, 30), discard)
	ctx := context.Background()

	require.NoError(t, q.Load(ctx))
	assert.Len(t, q.Products(), 12)
	assert.True(t, q.HasMore())

	require.NoError(t, q.NextPage(ctx))
	assert.Equal(t, 2, q.Page())
	assert.Len(t, q.Products(), 24)

	require.NoError(t, q.NextPage(ctx))
	assert.Len(t, q.Products(), 30)
	assert.False(t, q.HasMore())

	require.NoError(t, q.NextPage(ctx))
	assert.Equal(t, 3, q.Page(), "NextPage is a no-op without more results")
}

func TestQueryExactMultipleHasNoPhantomPage(t *testing.T) {
	q := catalog.NewQuery(stocked(t, 24), discard)
	ctx := context.Background()

	require.NoError(t, q.Load(ctx))
	require.NoError(t, q.NextPage(ctx))
	assert.Len(t, q.Products(), 24)
	assert.False(t, q.HasMore(), "the total says the second full page was the last")
}

func TestQueryFilterChangeReplacesList(t *testing.T) {
	q := catalog.NewQuery(stocked(t, 30), discard)
	ctx := context.Background()

	var snapshots []catalog.Snapshot
	q.Subscribe(func(_ context.Context, s catalog.Snapshot) { snapshots = append(snapshots, s) })

	require.NoError(t, q.Load(ctx))
	require.NoError(t, q.NextPage(ctx))
	require.NoError(t, q.Update(ctx, "maxPrice", "5"))

	assert.Equal(t, 1, q.Page())
	assert.Len(t, q.Products(), 5)
	assert.False(t, q.HasMore())
	require.Len(t, snapshots, 3)
	assert.Len(t, snapshots[2].Products, 5)

	require.NoError(t, q.Update(ctx, "sortBy", "price-high"))
	assert.Equal(t, "Gadget 05", q.Products()[0].Name)

	require.NoError(t, q.ClearFilters(ctx))
	assert.Len(t, q.Products(), 12)
	assert.Nil(t, q.Filter().MaxPrice)
	assert.Equal(t, models.SortByName, q.Filter().SortBy)
}

func TestQueryFailedFetchKeepsState(t *testing.T) {
	mem := stocked(t, 30)
	q := catalog.NewQuery(mem, discard)
	ctx := context.Background()

	require.NoError(t, q.Load(ctx))
	before := q.Products()

	boom := errors.New("unreachable")
	mem.FailOn("FetchProducts", boom)

	err := q.Update(ctx, "search", "Gadget 1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, q.Products())
	assert.Empty(t, q.Filter().Search, "the filter is only committed on success")

	err = q.NextPage(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, q.Page())
}

func TestQueryRejectsBadOptions(t *testing.T) {
	q := catalog.NewQuery(stocked(t, 3), discard)
	ctx := context.Background()

	for _, tc := range []struct{ key, value string }{
		{"minPrice", "cheap"},
		{"maxPrice", "-1"},
		{"minRating", "7"},
		{"colour", "red"},
	} {
		err := q.Update(ctx, tc.key, tc.value)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "%s=%s", tc.key, tc.value)
	}
}

type pagedSource struct {
	pages [][]models.Product
	more  []bool
}

func (s *pagedSource) FetchProducts(ctx context.Context, _ models.ProductFilter, page, _ int) (catalog.Page, error) {
	if page > len(s.pages) {
		return catalog.Page{}, nil
	}
	p := catalog.Page{Products: s.pages[page-1]}
	if s.more != nil {
		more := s.more[page-1]
		p.More = &more
	}
	return p, nil
}

func products(n int) []models.Product {
	out := make([]models.Product, n)
	for i := range out {
		out[i] = models.Product{ID: int64(i + 1)}
	}
	return out
}

func TestQueryUncountedSourceUsesPageLength(t *testing.T) {
	ctx := context.Background()

	q := catalog.NewQuery(&pagedSource{pages: [][]models.Product{products(12), products(4)}}, discard)
	require.NoError(t, q.Load(ctx))
	assert.True(t, q.HasMore(), "a full page suggests more")
	require.NoError(t, q.NextPage(ctx))
	assert.False(t, q.HasMore())

	q = catalog.NewQuery(&pagedSource{pages: [][]models.Product{products(12)}, more: []bool{false}}, discard)
	require.NoError(t, q.Load(ctx))
	assert.False(t, q.HasMore(), "an explicit has_more wins")
}

func TestSetOption(t *testing.T) {
	var f models.ProductFilter

	require.NoError(t, catalog.SetOption(&f, "minPrice", " 10.50 "))
	require.NotNil(t, f.MinPrice)
	assert.Equal(t, "10.5", f.MinPrice.String())

	require.NoError(t, catalog.SetOption(&f, "minPrice", ""))
	assert.Nil(t, f.MinPrice)

	require.NoError(t, catalog.SetOption(&f, "sortBy", "sideways"))
	assert.Equal(t, models.SortByName, f.SortBy)

	require.NoError(t, catalog.SetOption(&f, "minRating", "4"))
	assert.Equal(t, 4.0, *f.MinRating)
}
