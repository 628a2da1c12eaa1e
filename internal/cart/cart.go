// Package cart owns the shopper's cart: a backend-backed Store that
// reconciles with the gateway on every mutation, and a device-local
// LocalStore for anonymous shoppers.
package cart

import (
	"context"
	"fmt"

	"github.com/safar/quickcart/internal/models"
	"github.com/shopspring/decimal"
)

// Cart is implemented by Store and LocalStore. Lines are keyed by
// product id; an owner has at most one line per product.
type Cart interface {
	Lines() []models.CartLine
	Count() int
	Total() decimal.Decimal
	Loading() bool

	Add(ctx context.Context, product models.Product, quantity int) error
	SetQuantity(ctx context.Context, productID int64, quantity int) error
	Remove(ctx context.Context, productID int64) error
	Clear(ctx context.Context) error
	Refresh(ctx context.Context) error

	Subscribe(fn func(context.Context, []models.CartLine)) (unsubscribe func())
}

// Total sums live price times quantity over lines.
func Total(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Count sums quantities over lines.
func Count(lines []models.CartLine) int {
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count
}

// ClampQuantity bounds a quantity picked in a product view to
// [1, stock]. The stores themselves never clamp.
func ClampQuantity(quantity, stock int) int {
	if stock > 0 && quantity > stock {
		quantity = stock
	}
	if quantity < 1 {
		quantity = 1
	}
	return quantity
}

// Merge moves every line of from into into and reports how many lines
// moved. Each line leaves from as soon as into has it, so after a
// failure from holds only the lines still to move and a later Merge
// does not add any quantity twice.
func Merge(ctx context.Context, from, into Cart) (int, error) {
	moved := 0
	for _, line := range from.Lines() {
		if err := into.Add(ctx, line.Product, line.Quantity); err != nil {
			return moved, fmt.Errorf("merge cart: %w", err)
		}
		if err := from.Remove(ctx, line.ProductID); err != nil {
			return moved, fmt.Errorf("merge cart: line %d added but not removed: %w", line.ProductID, err)
		}
		moved++
	}
	return moved, nil
}

func findLine(lines []models.CartLine, productID int64) (models.CartLine, bool) {
	for _, line := range lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return models.CartLine{}, false
}

func copyLines(lines []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, len(lines))
	copy(out, lines)
	return out
}
