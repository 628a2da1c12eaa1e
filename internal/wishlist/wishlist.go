// Package wishlist owns the set of products the signed-in shopper saved
// for later. It follows the cart's reconciliation policy: refetch after
// every successful mutation, leave the cache alone on failure.
package wishlist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/notify"
	"github.com/safar/quickcart/internal/session"
)

type Backend interface {
	ListWishlist(ctx context.Context, owner uuid.UUID) ([]models.WishlistEntry, error)
	InsertWishlistEntry(ctx context.Context, owner uuid.UUID, productID int64) error
	DeleteWishlistEntry(ctx context.Context, owner uuid.UUID, productID int64) error
}

type Session interface {
	Identity() (models.Identity, bool)
	Subscribe(fn func(context.Context, session.Change)) (unsubscribe func())
}

type Store struct {
	backend Backend
	session Session
	logger  *slog.Logger

	mu      sync.RWMutex
	entries []models.WishlistEntry
	loading bool

	changes     notify.Hub[[]models.WishlistEntry]
	unsubscribe func()
}

func NewStore(backend Backend, sess Session, logger *slog.Logger) *Store {
	s := &Store{
		backend: backend,
		session: sess,
		logger:  logger.With("component", "wishlist"),
		entries: []models.WishlistEntry{},
	}
	s.unsubscribe = sess.Subscribe(s.onSessionChange)
	return s
}

func (s *Store) Close() {
	s.unsubscribe()
}

func (s *Store) onSessionChange(ctx context.Context, _ session.Change) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh wishlist after session change", "error", err)
	}
}

func (s *Store) Entries() []models.WishlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.WishlistEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Contains reports cached membership of productID.
func (s *Store) Contains(productID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ProductID == productID {
			return true
		}
	}
	return false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) Subscribe(fn func(context.Context, []models.WishlistEntry)) (unsubscribe func()) {
	return s.changes.Subscribe(fn)
}

func (s *Store) Refresh(ctx context.Context) error {
	id, ok := s.session.Identity()
	if !ok {
		s.replace(ctx, nil)
		return nil
	}

	s.setLoading(true)
	defer s.setLoading(false)

	entries, err := s.backend.ListWishlist(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("fetch wishlist: %w", err)
	}

	s.replace(ctx, entries)
	return nil
}

// Add saves productID. A duplicate is rejected by the backend with an
// apperr.ErrConflict error.
func (s *Store) Add(ctx context.Context, productID int64) error {
	id, ok := s.session.Identity()
	if !ok {
		return fmt.Errorf("add to wishlist: %w", apperr.ErrAuthRequired)
	}

	if err := s.backend.InsertWishlistEntry(ctx, id.UserID, productID); err != nil {
		s.logger.Warn("add to wishlist failed", "product_id", productID, "error", err)
		return fmt.Errorf("add to wishlist: %w", err)
	}

	return s.Refresh(ctx)
}

func (s *Store) Remove(ctx context.Context, productID int64) error {
	id, ok := s.session.Identity()
	if !ok {
		return fmt.Errorf("remove from wishlist: %w", apperr.ErrAuthRequired)
	}

	if err := s.backend.DeleteWishlistEntry(ctx, id.UserID, productID); err != nil {
		s.logger.Warn("remove from wishlist failed", "product_id", productID, "error", err)
		return fmt.Errorf("remove from wishlist: %w", err)
	}

	return s.Refresh(ctx)
}

// Toggle removes productID when cached as a member and adds it
// otherwise. It returns the cached membership after the toggle.
func (s *Store) Toggle(ctx context.Context, productID int64) (bool, error) {
	var err error
	if s.Contains(productID) {
		err = s.Remove(ctx, productID)
	} else {
		err = s.Add(ctx, productID)
	}
	return s.Contains(productID), err
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) replace(ctx context.Context, entries []models.WishlistEntry) {
	if entries == nil {
		entries = []models.WishlistEntry{}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	out := make([]models.WishlistEntry, len(entries))
	copy(out, entries)
	s.changes.Publish(ctx, out)
}
