package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/notify"
	"github.com/shopspring/decimal"
)

// KV is the device-local key-value store an anonymous cart persists to.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ProductLookup resolves live product data for stored lines.
type ProductLookup interface {
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error)
}

type storedLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// LocalStore is the anonymous cart variant. It needs no identity and
// survives restarts of the client through KV, keyed by device. Only
// product ids and quantities are persisted; prices are re-read from the
// catalog on Refresh. Mutations start from what KV holds, so a store
// that was never refreshed does not overwrite the device's cart.
type LocalStore struct {
	kv       KV
	products ProductLookup
	key      string
	logger   *slog.Logger

	mu      sync.RWMutex
	lines   []models.CartLine
	loading bool

	changes notify.Hub[[]models.CartLine]
}

var _ Cart = (*LocalStore)(nil)

func NewLocalStore(kv KV, products ProductLookup, deviceID string, logger *slog.Logger) *LocalStore {
	return &LocalStore{
		kv:       kv,
		products: products,
		key:      "cart:" + deviceID,
		logger:   logger.With("component", "local_cart", "device", deviceID),
		lines:    []models.CartLine{},
	}
}

func (s *LocalStore) Lines() []models.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyLines(s.lines)
}

func (s *LocalStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Count(s.lines)
}

func (s *LocalStore) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Total(s.lines)
}

func (s *LocalStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *LocalStore) Subscribe(fn func(context.Context, []models.CartLine)) (unsubscribe func()) {
	return s.changes.Subscribe(fn)
}

// Refresh reloads the persisted lines and re-hydrates them with live
// product data. Products that no longer exist are dropped.
func (s *LocalStore) Refresh(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	stored, err := s.load(ctx)
	if err != nil {
		return err
	}

	lines, err := s.hydrate(ctx, stored, nil)
	if err != nil {
		return err
	}

	s.replace(ctx, lines)
	return nil
}

// persisted returns the lines KV holds, reusing product data already
// cached and looking up only products not seen yet.
func (s *LocalStore) persisted(ctx context.Context) ([]models.CartLine, error) {
	stored, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[int64]models.Product)
	for _, line := range s.Lines() {
		known[line.ProductID] = line.Product
	}
	return s.hydrate(ctx, stored, known)
}

// hydrate joins stored lines with product data. Products that no longer
// exist are dropped.
func (s *LocalStore) hydrate(ctx context.Context, stored []storedLine, known map[int64]models.Product) ([]models.CartLine, error) {
	var missing []int64
	for _, l := range stored {
		if _, ok := known[l.ProductID]; !ok {
			missing = append(missing, l.ProductID)
		}
	}

	products := make(map[int64]models.Product, len(stored))
	if len(missing) > 0 {
		found, err := s.products.GetProductsByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load cart products: %w", err)
		}
		for id, p := range found {
			products[id] = p
		}
	}
	for id, p := range known {
		products[id] = p
	}

	lines := make([]models.CartLine, 0, len(stored))
	for _, l := range stored {
		product, ok := products[l.ProductID]
		if !ok {
			s.logger.Info("dropping unavailable product from cart", "product_id", l.ProductID)
			continue
		}
		lines = append(lines, models.CartLine{ProductID: l.ProductID, Quantity: l.Quantity, Product: product})
	}
	return lines, nil
}

func (s *LocalStore) Add(ctx context.Context, product models.Product, quantity int) error {
	if quantity < 1 {
		return apperr.Validation("quantity", "Quantity must be at least 1.")
	}

	lines, err := s.persisted(ctx)
	if err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}
	found := false
	for i := range lines {
		if lines[i].ProductID == product.ID {
			lines[i].Quantity += quantity
			lines[i].Product = product
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, models.CartLine{ProductID: product.ID, Quantity: quantity, Product: product})
	}

	return s.commit(ctx, "add to cart", lines)
}

func (s *LocalStore) SetQuantity(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}

	lines, err := s.persisted(ctx)
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = quantity
			return s.commit(ctx, "update cart", lines)
		}
	}

	return fmt.Errorf("update cart: product %d: %w", productID, apperr.ErrNotFound)
}

func (s *LocalStore) Remove(ctx context.Context, productID int64) error {
	lines, err := s.persisted(ctx)
	if err != nil {
		return fmt.Errorf("remove from cart: %w", err)
	}
	kept := make([]models.CartLine, 0, len(lines))
	for _, line := range lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	if len(kept) == len(lines) {
		return nil
	}

	return s.commit(ctx, "remove from cart", kept)
}

func (s *LocalStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.replace(ctx, nil)
	return nil
}

// commit persists lines and, only once that succeeded, installs them.
func (s *LocalStore) commit(ctx context.Context, op string, lines []models.CartLine) error {
	stored := make([]storedLine, len(lines))
	for i, line := range lines {
		stored[i] = storedLine{ProductID: line.ProductID, Quantity: line.Quantity}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("%s: encode cart: %w", op, err)
	}

	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.logger.Warn("persist cart failed", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	s.replace(ctx, lines)
	return nil
}

func (s *LocalStore) load(ctx context.Context) ([]storedLine, error) {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var stored []storedLine
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return stored, nil
}

func (s *LocalStore) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *LocalStore) replace(ctx context.Context, lines []models.CartLine) {
	if lines == nil {
		lines = []models.CartLine{}
	}

	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()

	s.changes.Publish(ctx, copyLines(lines))
}
