// Package reviews loads and appends product reviews and aggregates them
// into a rating summary.
package reviews

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/notify"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Backend interface {
	ListReviews(ctx context.Context, productID int64) ([]models.Review, error)
	InsertReview(ctx context.Context, review models.Review) error
}

type Session interface {
	Identity() (models.Identity, bool)
}

// Summary aggregates a set of reviews. Histogram[i] counts reviews
// rated i+1.
type Summary struct {
	Count     int
	Average   float64
	Histogram [MaxRating]int
}

// Summarize computes count, average rounded to one decimal and the
// per-star histogram. Ratings outside 1..5 are ignored.
func Summarize(reviews []models.Review) Summary {
	var s Summary
	sum := 0
	for _, r := range reviews {
		if r.Rating < MinRating || r.Rating > MaxRating {
			continue
		}
		s.Count++
		sum += r.Rating
		s.Histogram[r.Rating-1]++
	}
	if s.Count > 0 {
		s.Average = math.Round(float64(sum)/float64(s.Count)*10) / 10
	}
	return s
}

// Thread is the review list of one product.
type Thread struct {
	backend Backend
	session Session
	logger  *slog.Logger

	mu        sync.RWMutex
	productID int64
	reviews   []models.Review
	loading   bool

	changes notify.Hub[[]models.Review]
}

func NewThread(backend Backend, sess Session, logger *slog.Logger) *Thread {
	return &Thread{
		backend: backend,
		session: sess,
		logger:  logger.With("component", "reviews"),
		reviews: []models.Review{},
	}
}

func (t *Thread) Reviews() []models.Review {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Review, len(t.reviews))
	copy(out, t.reviews)
	return out
}

func (t *Thread) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Summarize(t.reviews)
}

func (t *Thread) Loading() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loading
}

func (t *Thread) Subscribe(fn func(context.Context, []models.Review)) (unsubscribe func()) {
	return t.changes.Subscribe(fn)
}

// Load switches the thread to productID and fetches its reviews, newest
// first.
func (t *Thread) Load(ctx context.Context, productID int64) error {
	t.setLoading(true)
	defer t.setLoading(false)

	reviews, err := t.backend.ListReviews(ctx, productID)
	if err != nil {
		t.logger.Warn("load reviews failed", "product_id", productID, "error", err)
		return fmt.Errorf("load reviews: %w", err)
	}

	t.mu.Lock()
	t.productID = productID
	t.reviews = reviews
	t.mu.Unlock()

	out := make([]models.Review, len(reviews))
	copy(out, reviews)
	t.changes.Publish(ctx, out)
	return nil
}

// Submit appends a review to the loaded product and refetches the
// thread.
func (t *Thread) Submit(ctx context.Context, rating int, comment string) error {
	if rating < MinRating || rating > MaxRating {
		return apperr.Validation("rating", "Rating must be between %d and %d.", MinRating, MaxRating)
	}

	id, ok := t.session.Identity()
	if !ok {
		return fmt.Errorf("submit review: %w", apperr.ErrAuthRequired)
	}

	t.mu.RLock()
	productID := t.productID
	t.mu.RUnlock()
	if productID == 0 {
		return apperr.Validation("product_id", "No product selected.")
	}

	err := t.backend.InsertReview(ctx, models.Review{
		ProductID: productID,
		UserID:    id.UserID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	})
	if err != nil {
		t.logger.Warn("submit review failed", "product_id", productID, "error", err)
		return fmt.Errorf("submit review: %w", err)
	}

	return t.Load(ctx, productID)
}

func (t *Thread) setLoading(v bool) {
	t.mu.Lock()
	t.loading = v
	t.mu.Unlock()
}

