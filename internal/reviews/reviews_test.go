package reviews_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/gateway/gatewaytest"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/reviews"
	"github.com/safar/quickcart/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

func TestSummarize(t *testing.T) {
	s := reviews.Summarize([]models.Review{{Rating: 5}, {Rating: 4}, {Rating: 4}, {Rating: 0}, {Rating: 9}})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 4.3, s.Average)
	assert.Equal(t, [5]int{0, 0, 0, 2, 1}, s.Histogram)

	assert.Equal(t, reviews.Summary{}, reviews.Summarize(nil))
}

func TestThreadSubmit(t *testing.T) {
	mem := gatewaytest.NewMemory()
	sess := session.New(mem, discard)
	thread := reviews.NewThread(mem, sess, discard)
	book := mem.AddProduct(models.Product{Name: "Book", Price: decimal.NewFromInt(15)})
	ctx := context.Background()

	err := thread.Submit(ctx, 6, "too good")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = thread.Submit(ctx, 5, "great")
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	require.NoError(t, sess.SignUp(ctx, session.SignUpForm{Email: "r@example.com", Password: "secret1", ConfirmPassword: "secret1"}))

	err = thread.Submit(ctx, 5, "great")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "no product loaded yet")

	require.NoError(t, thread.Load(ctx, book.ID))
	assert.Empty(t, thread.Reviews())

	require.NoError(t, thread.Submit(ctx, 5, "  great  "))
	require.NoError(t, thread.Submit(ctx, 2, "meh"))

	list := thread.Reviews()
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Rating, "newest first")
	assert.Equal(t, "great", list[1].Comment)
	assert.Equal(t, 3.5, thread.Summary().Average)
}
