package checkout_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/cart"
	"github.com/safar/quickcart/internal/checkout"
	"github.com/safar/quickcart/internal/gateway/gatewaytest"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

var address = models.ShippingAddress{
	FullName: "Ada Lovelace",
	Email:    "ada@example.com",
	Phone:    "555-0100",
	Address:  "12 St James's Square",
	City:     "London",
	State:    "London",
	ZipCode:  "SW1Y 4JH",
	Country:  "UK",
}

type fixture struct {
	mem     *gatewaytest.Memory
	session *session.State
	cart    *cart.Store
	flow    *checkout.Flow
}

func newFixture(t *testing.T, signIn bool) *fixture {
	t.Helper()
	mem := gatewaytest.NewMemory()
	sess := session.New(mem, discard)
	c := cart.NewStore(mem, sess, discard)
	t.Cleanup(c.Close)

	if signIn {
		require.NoError(t, sess.SignUp(context.Background(), session.SignUpForm{
			Email: "ada@example.com", Password: "secret1", ConfirmPassword: "secret1",
		}))
	}

	return &fixture{mem: mem, session: sess, cart: c, flow: checkout.NewFlow(mem, c, sess, discard)}
}

func (f *fixture) fill(t *testing.T, products ...models.Product) {
	t.Helper()
	for _, p := range products {
		require.NoError(t, f.cart.Add(context.Background(), p, 1))
	}
	f.flow.SetForm(address)
}

func TestQuoteFor(t *testing.T) {
	tests := []struct {
		subtotal, shipping, total string
	}{
		{"60", "0", "60"},
		{"30", "10", "40"},
		{"50", "10", "60"},
		{"50.01", "0", "50.01"},
		{"0", "10", "10"},
	}
	for _, tt := range tests {
		q := checkout.QuoteFor(decimal.RequireFromString(tt.subtotal))
		assert.True(t, q.Shipping.Equal(decimal.RequireFromString(tt.shipping)), "shipping for %s: %s", tt.subtotal, q.Shipping)
		assert.True(t, q.Total.Equal(decimal.RequireFromString(tt.total)), "total for %s: %s", tt.subtotal, q.Total)
	}
}

func TestSubmitPlacesOrder(t *testing.T) {
	f := newFixture(t, true)
	book := f.mem.AddProduct(models.Product{Name: "Book", Price: decimal.NewFromInt(30), Stock: 5})
	f.fill(t, book)

	var states []checkout.State
	f.flow.Subscribe(func(_ context.Context, s checkout.State) { states = append(states, s) })

	orderID, err := f.flow.Submit(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, orderID)
	assert.Equal(t, checkout.Confirmed, f.flow.State())
	assert.Equal(t, orderID, f.flow.OrderID())
	assert.Equal(t, []checkout.State{checkout.Submitting, checkout.Confirmed}, states)
	assert.Empty(t, f.cart.Lines(), "cart is cleared after a confirmed order")

	orders := f.mem.Orders()
	require.Len(t, orders, 1)
	assert.True(t, orders[0].TotalAmount.Equal(decimal.NewFromInt(40)), "30 subtotal plus 10 shipping")
	assert.Equal(t, address, orders[0].ShippingAddress)
	require.Len(t, orders[0].Items, 1)
}

func TestSubmitSnapshotsPrice(t *testing.T) {
	f := newFixture(t, true)
	book := f.mem.AddProduct(models.Product{Name: "Book", Price: decimal.NewFromInt(60), Stock: 5})
	f.fill(t, book)

	_, err := f.flow.Submit(context.Background())
	require.NoError(t, err)

	f.mem.SetPrice(book.ID, decimal.NewFromInt(99))

	order := f.mem.Orders()[0]
	assert.True(t, order.Items[0].Price.Equal(decimal.NewFromInt(60)))
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(60)), "free shipping over 50")
}

func TestSubmitEmptyCartWritesNothing(t *testing.T) {
	f := newFixture(t, true)
	f.flow.SetForm(address)

	_, err := f.flow.Submit(context.Background())
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cart", verr.Field)
	assert.Equal(t, checkout.Editing, f.flow.State())
	assert.Zero(t, f.mem.Calls("InsertOrder"))
}

func TestSubmitValidatesFormFirst(t *testing.T) {
	f := newFixture(t, false)
	form := address
	form.City = "  "
	f.flow.SetForm(form)

	_, err := f.flow.Submit(context.Background())
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "city", verr.Field)
	assert.Equal(t, "City is required.", verr.Message)

	f.flow.SetForm(address)
	_, err = f.flow.Submit(context.Background())
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)
}

func TestSubmitLinesFailureKeepsCart(t *testing.T) {
	f := newFixture(t, true)
	book := f.mem.AddProduct(models.Product{Name: "Book", Price: decimal.NewFromInt(20), Stock: 5})
	f.fill(t, book)

	f.mem.FailOn("InsertOrderLines", errors.New("connection lost"))

	_, err := f.flow.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, checkout.Failed, f.flow.State())
	assert.ErrorIs(t, f.flow.Err(), err)
	assert.Len(t, f.cart.Lines(), 1)
	assert.Zero(t, f.mem.Calls("DeleteCartLines"))

	orders := f.mem.Orders()
	require.Len(t, orders, 1, "the order row is left behind")
	assert.Empty(t, orders[0].Items)

	f.mem.FailOn("InsertOrderLines", nil)
	_, err = f.flow.Submit(context.Background())
	require.NoError(t, err, "a failed flow can be retried")
	assert.Len(t, f.mem.Orders(), 2)
}

func TestConfirmedFlowCannotResubmit(t *testing.T) {
	f := newFixture(t, true)
	book := f.mem.AddProduct(models.Product{Name: "Book", Price: decimal.NewFromInt(20), Stock: 5})
	f.fill(t, book)

	_, err := f.flow.Submit(context.Background())
	require.NoError(t, err)

	_, err = f.flow.Submit(context.Background())
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 1, f.mem.Calls("InsertOrder"))

	f.flow.Reset(context.Background())
	assert.Equal(t, checkout.Editing, f.flow.State())
	assert.Equal(t, uuid.Nil, f.flow.OrderID())
}

func TestFormPrefillAndSetField(t *testing.T) {
	f := newFixture(t, true)
	assert.Equal(t, "ada@example.com", f.flow.Form().Email)

	require.NoError(t, f.flow.SetField("zip_code", "10001"))
	assert.Equal(t, "10001", f.flow.Form().ZipCode)

	err := f.flow.SetField("planet", "Mars")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestFormPicksUpEmailAfterSignIn(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	assert.Empty(t, f.flow.Form().Email)

	require.NoError(t, f.session.SignUp(ctx, session.SignUpForm{
		Email: "late@example.com", Password: "secret1", ConfirmPassword: "secret1",
	}))
	assert.Equal(t, "late@example.com", f.flow.Form().Email)

	mug := f.mem.AddProduct(models.Product{Name: "Mug", Price: decimal.NewFromInt(60)})
	require.NoError(t, f.cart.Add(ctx, mug, 1))
	form := address
	form.Email = ""
	f.flow.SetForm(form)

	_, err := f.flow.Submit(ctx)
	require.NoError(t, err)
	require.Len(t, f.mem.Orders(), 1)
	assert.Equal(t, "late@example.com", f.mem.Orders()[0].ShippingAddress.Email)

	f.flow.Reset(ctx)
	require.NoError(t, f.flow.SetField("email", "gift@example.com"))
	assert.Equal(t, "gift@example.com", f.flow.Form().Email, "an entered email is kept")
}
