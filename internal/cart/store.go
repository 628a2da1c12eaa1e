package cart

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
	"github.com/shopspring/decimal"
)

// Backend is the cart table of the remote data gateway.
type Backend interface {
	ListCartLines(ctx context.Context, owner uuid.UUID) ([]models.CartLine, error)
	InsertCartLine(ctx context.Context, owner uuid.UUID, productID int64, quantity int) error
	UpdateCartLineQuantity(ctx context.Context, owner uuid.UUID, productID int64, quantity int) error
	DeleteCartLine(ctx context.Context, owner uuid.UUID, productID int64) error
	DeleteCartLines(ctx context.Context, owner uuid.UUID) error
}

// Session is the part of session.State the stores depend on.
type Session interface {
	Identity() (models.Identity, bool)
	Subscribe(fn func(context.Context, session.Change)) (unsubscribe func())
}

// Store mirrors the signed-in owner's cart. Every successful mutation is
// followed by a full refetch; the cached lines only ever hold state the
// backend confirmed. A failed mutation leaves the cache untouched.
type Store struct {
	backend Backend
	session Session
	logger  *slog.Logger

	mu      sync.RWMutex
	lines   []models.CartLine
	loading bool

	changes     notify.Hub[[]models.CartLine]
	unsubscribe func()
}

var _ Cart = (*Store)(nil)

func NewStore(backend Backend, sess Session, logger *slog.Logger) *Store {
	s := &Store{
		backend: backend,
		session: sess,
		logger:  logger.With("component", "cart"),
		lines:   []models.CartLine{},
	}
	s.unsubscribe = sess.Subscribe(s.onSessionChange)
	return s
}

// Close detaches the store from session changes.
func (s *Store) Close() {
	s.unsubscribe()
}

func (s *Store) onSessionChange(ctx context.Context, _ session.Change) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh cart after session change", "error", err)
	}
}

func (s *Store) Lines() []models.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyLines(s.lines)
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Count(s.lines)
}

func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Total(s.lines)
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) Subscribe(fn func(context.Context, []models.CartLine)) (unsubscribe func()) {
	return s.changes.Subscribe(fn)
}

// Refresh refetches the owner's lines. Without an identity the cart is
// emptied locally.
func (s *Store) Refresh(ctx context.Context) error {
	id, ok := s.session.Identity()
	if !ok {
		s.replace(ctx, nil)
		return nil
	}

	s.setLoading(true)
	defer s.setLoading(false)

	lines, err := s.backend.ListCartLines(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("fetch cart: %w", err)
	}

	s.replace(ctx, lines)
	return nil
}

// Add increments the line for product by quantity, creating it if
// absent.
func (s *Store) Add(ctx context.Context, product models.Product, quantity int) error {
	if quantity < 1 {
		return apperr.Validation("quantity", "Quantity must be at least 1.")
	}

	id, ok := s.session.Identity()
	if !ok {
		return fmt.Errorf("add to cart: %w", apperr.ErrAuthRequired)
	}

	var err error
	if existing, found := s.line(product.ID); found {
		err = s.backend.UpdateCartLineQuantity(ctx, id.UserID, product.ID, existing.Quantity+quantity)
	} else {
		err = s.backend.InsertCartLine(ctx, id.UserID, product.ID, quantity)
	}
	if err != nil {
		s.logger.Warn("add to cart failed", "product_id", product.ID, "error", err)
		return fmt.Errorf("add to cart: %w", err)
	}

	return s.Refresh(ctx)
}

// SetQuantity overwrites the line quantity. A quantity of zero or less
// removes the line. Stock is not consulted.
func (s *Store) SetQuantity(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}

	id, ok := s.session.Identity()
	if !ok {
		return fmt.Errorf("update cart: %w", apperr.ErrAuthRequired)
	}

	if err := s.backend.UpdateCartLineQuantity(ctx, id.UserID, productID, quantity); err != nil {
		s.logger.Warn("update cart quantity failed", "product_id", productID, "error", err)
		return fmt.Errorf("update cart: %w", err)
	}

	return s.Refresh(ctx)
}

// Remove deletes the line for productID. Removing an absent line, or
// removing while signed out, does nothing.
func (s *Store) Remove(ctx context.Context, productID int64) error {
	id, ok := s.session.Identity()
	if !ok {
		return nil
	}

	if err := s.backend.DeleteCartLine(ctx, id.UserID, productID); err != nil {
		s.logger.Warn("remove from cart failed", "product_id", productID, "error", err)
		return fmt.Errorf("remove from cart: %w", err)
	}

	return s.Refresh(ctx)
}

// Clear deletes every line of the owner. The cache is emptied directly
// on success rather than refetched.
func (s *Store) Clear(ctx context.Context) error {
	id, ok := s.session.Identity()
	if !ok {
		return nil
	}

	if err := s.backend.DeleteCartLines(ctx, id.UserID); err != nil {
		s.logger.Warn("clear cart failed", "error", err)
		return fmt.Errorf("clear cart: %w", err)
	}

	s.replace(ctx, nil)
	return nil
}

func (s *Store) line(productID int64) (models.CartLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findLine(s.lines, productID)
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) replace(ctx context.Context, lines []models.CartLine) {
	if lines == nil {
		lines = []models.CartLine{}
	}

	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()

	s.changes.Publish(ctx, copyLines(lines))
}
