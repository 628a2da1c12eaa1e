// Package orders reads back the signed-in shopper's placed orders.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/models"
)

const DefaultPageSize = 10

type Backend interface {
	ListOrders(ctx context.Context, owner uuid.UUID) ([]models.Order, error)
	ListOrdersPage(ctx context.Context, owner uuid.UUID, cursor string, limit int) ([]models.Order, string, error)
	GetOrder(ctx context.Context, owner, id uuid.UUID) (*models.Order, error)
}

type Session interface {
	Identity() (models.Identity, bool)
}

// History caches the last full listing. Get and Page always go to the
// backend.
type History struct {
	backend Backend
	session Session
	logger  *slog.Logger

	mu      sync.RWMutex
	orders  []models.Order
	loading bool
}

func NewHistory(backend Backend, sess Session, logger *slog.Logger) *History {
	return &History{
		backend: backend,
		session: sess,
		logger:  logger.With("component", "orders"),
		orders:  []models.Order{},
	}
}

func (h *History) Orders() []models.Order {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.Order, len(h.orders))
	copy(out, h.orders)
	return out
}

func (h *History) Loading() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loading
}

func (h *History) owner(op string) (uuid.UUID, error) {
	id, ok := h.session.Identity()
	if !ok {
		return uuid.Nil, fmt.Errorf("%s: %w", op, apperr.ErrAuthRequired)
	}
	return id.UserID, nil
}

// List fetches every order of the shopper, newest first.
func (h *History) List(ctx context.Context) ([]models.Order, error) {
	owner, err := h.owner("list orders")
	if err != nil {
		return nil, err
	}

	h.setLoading(true)
	defer h.setLoading(false)

	orders, err := h.backend.ListOrders(ctx, owner)
	if err != nil {
		h.logger.Warn("list orders failed", "error", err)
		return nil, fmt.Errorf("list orders: %w", err)
	}

	h.mu.Lock()
	h.orders = orders
	h.mu.Unlock()

	return orders, nil
}

// Page returns up to limit orders older than cursor and the cursor of
// the next page, empty when there is none.
func (h *History) Page(ctx context.Context, cursor string, limit int) ([]models.Order, string, error) {
	owner, err := h.owner("list orders")
	if err != nil {
		return nil, "", err
	}
	if limit < 1 {
		limit = DefaultPageSize
	}

	orders, next, err := h.backend.ListOrdersPage(ctx, owner, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list orders: %w", err)
	}
	return orders, next, nil
}

// Get returns one of the shopper's orders. Orders of other owners are
// reported as not found.
func (h *History) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	owner, err := h.owner("get order")
	if err != nil {
		return nil, err
	}

	order, err := h.backend.GetOrder(ctx, owner, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return order, nil
}

func (h *History) setLoading(v bool) {
	h.mu.Lock()
	h.loading = v
	h.mu.Unlock()
}
