package cart_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/cart"
	"github.com/safar/quickcart/internal/gateway/gatewaytest"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

type fixture struct {
	mem     *gatewaytest.Memory
	session *session.State
	cart    *cart.Store
	mug     models.Product
	lamp    models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := gatewaytest.NewMemory()
	sess := session.New(mem, discard)
	f := &fixture{
		mem:     mem,
		session: sess,
		cart:    cart.NewStore(mem, sess, discard),
		mug:     mem.AddProduct(models.Product{Name: "Mug", Price: decimal.RequireFromString("12.50"), Stock: 10}),
		lamp:    mem.AddProduct(models.Product{Name: "Lamp", Price: decimal.NewFromInt(30), Stock: 2}),
	}
	t.Cleanup(f.cart.Close)
	return f
}

func (f *fixture) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.SignUp(context.Background(), session.SignUpForm{
		Email: "shopper@example.com", Password: "secret1", ConfirmPassword: "secret1",
	}))
}

func TestStoreAddIncrementsExistingLine(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	require.NoError(t, f.cart.Add(ctx, f.mug, 1))
	require.NoError(t, f.cart.Add(ctx, f.mug, 2))

	lines := f.cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, 3, f.cart.Count())
	assert.True(t, f.cart.Total().Equal(decimal.RequireFromString("37.50")))
}

func TestStoreRequiresIdentity(t *testing.T) {
	f := newFixture(t)

	err := f.cart.Add(context.Background(), f.mug, 1)
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)
	assert.Equal(t, 0, f.mem.Calls("InsertCartLine"))

	assert.NoError(t, f.cart.Remove(context.Background(), f.mug.ID), "remove while signed out is a no-op")
}

func TestStoreRejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	err := f.cart.Add(context.Background(), f.mug, 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestStoreFailedMutationKeepsCache(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	require.NoError(t, f.cart.Add(ctx, f.mug, 1))
	before := f.cart.Lines()

	boom := errors.New("connection reset")
	f.mem.FailOn("UpdateCartLineQuantity", boom)

	err := f.cart.Add(ctx, f.mug, 1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, f.cart.Lines())
}

func TestStoreSetQuantityZeroRemoves(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	require.NoError(t, f.cart.Add(ctx, f.mug, 1))
	require.NoError(t, f.cart.Add(ctx, f.lamp, 1))

	require.NoError(t, f.cart.SetQuantity(ctx, f.lamp.ID, 5))
	require.NoError(t, f.cart.SetQuantity(ctx, f.mug.ID, 0))

	lines := f.cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, f.lamp.ID, lines[0].ProductID)
	assert.Equal(t, 5, lines[0].Quantity, "stock is not consulted")
}

func TestStoreUsesLivePrices(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	require.NoError(t, f.cart.Add(ctx, f.mug, 2))
	f.mem.SetPrice(f.mug.ID, decimal.NewFromInt(20))
	require.NoError(t, f.cart.Refresh(ctx))

	assert.True(t, f.cart.Total().Equal(decimal.NewFromInt(40)))
}

func TestStoreFollowsSession(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	require.NoError(t, f.cart.Add(ctx, f.mug, 1))

	var published [][]models.CartLine
	unsubscribe := f.cart.Subscribe(func(_ context.Context, lines []models.CartLine) {
		published = append(published, lines)
	})
	defer unsubscribe()

	f.session.SignOut(ctx)
	assert.Empty(t, f.cart.Lines())
	require.Len(t, published, 1)
	assert.Empty(t, published[0])

	require.NoError(t, f.session.SignIn(ctx, "shopper@example.com", "secret1"))
	assert.Len(t, f.cart.Lines(), 1, "signing back in refetches the saved cart")
}

func TestStoreClear(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	require.NoError(t, f.cart.Add(ctx, f.mug, 1))
	require.NoError(t, f.cart.Clear(ctx))
	assert.Empty(t, f.cart.Lines())

	require.NoError(t, f.cart.Refresh(ctx))
	assert.Empty(t, f.cart.Lines())
}

func TestClampQuantity(t *testing.T) {
	tests := []struct {
		quantity, stock, want int
	}{
		{3, 10, 3},
		{12, 10, 10},
		{0, 10, 1},
		{-4, 10, 1},
		{5, 0, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cart.ClampQuantity(tt.quantity, tt.stock), "ClampQuantity(%d, %d)", tt.quantity, tt.stock)
	}
}

func TestStoreRemoveIsIdempotentWhenSignedIn(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	ctx := context.Background()

	require.NoError(t, f.cart.Add(ctx, f.mug, 2))
	before := f.cart.Lines()

	require.NoError(t, f.cart.Remove(ctx, f.lamp.ID), "lamp was never added")
	assert.Equal(t, 1, f.mem.Calls("DeleteCartLine"))
	assert.Equal(t, before, f.cart.Lines())

	require.NoError(t, f.cart.Remove(ctx, f.mug.ID))
	require.NoError(t, f.cart.Remove(ctx, f.mug.ID))
	assert.Equal(t, 3, f.mem.Calls("DeleteCartLine"))
	assert.Empty(t, f.cart.Lines())
}
