// Package checkout turns the shopper's cart into an order: it validates
// the shipping form, writes the order and its lines with snapshotted
// prices, then clears the cart.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/cart"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/notify"
	"github.com/shopspring/decimal"
)

type State int

const (
	Editing State = iota
	Submitting
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Backend is the order side of the data gateway.
type Backend interface {
	InsertOrder(ctx context.Context, owner uuid.UUID, total decimal.Decimal, address models.ShippingAddress) (uuid.UUID, error)
	InsertOrderLines(ctx context.Context, lines []models.OrderLine) error
}

type Cart interface {
	Lines() []models.CartLine
	Clear(ctx context.Context) error
}

type Session interface {
	Identity() (models.Identity, bool)
}

// Flow is one checkout attempt. A Failed flow can be edited and
// submitted again; a Confirmed flow is finished and must be Reset.
type Flow struct {
	backend Backend
	cart    Cart
	session Session
	logger  *slog.Logger

	mu      sync.RWMutex
	state   State
	form    models.ShippingAddress
	orderID uuid.UUID
	err     error

	changes notify.Hub[State]
}

func NewFlow(backend Backend, c Cart, sess Session, logger *slog.Logger) *Flow {
	f := &Flow{
		backend: backend,
		cart:    c,
		session: sess,
		logger:  logger.With("component", "checkout"),
	}
	return f
}

func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Form is the shipping form. A blank email is filled from the signed-in
// identity, so a flow opened before sign-in picks it up.
func (f *Flow) Form() models.ShippingAddress {
	f.mu.RLock()
	form := f.form
	f.mu.RUnlock()
	return f.withIdentityEmail(form)
}

func (f *Flow) withIdentityEmail(form models.ShippingAddress) models.ShippingAddress {
	if strings.TrimSpace(form.Email) != "" {
		return form
	}
	if id, ok := f.session.Identity(); ok {
		form.Email = id.Email
	}
	return form
}

// OrderID is the created order once the flow is Confirmed.
func (f *Flow) OrderID() uuid.UUID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.orderID
}

// Err is the failure that moved the flow to Failed.
func (f *Flow) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

func (f *Flow) Subscribe(fn func(context.Context, State)) (unsubscribe func()) {
	return f.changes.Subscribe(fn)
}

// SetField sets one form field by its JSON name (full_name, email,
// phone, address, city, state, zip_code, country).
func (f *Flow) SetField(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	field, ok := addressField(&f.form, name)
	if !ok {
		return apperr.Validation(name, "Unknown field %q.", name)
	}
	*field = value
	return nil
}

func (f *Flow) SetForm(form models.ShippingAddress) {
	f.mu.Lock()
	f.form = form
	f.mu.Unlock()
}

// Reset starts a new attempt with an empty form.
func (f *Flow) Reset(ctx context.Context) {
	f.mu.Lock()
	f.state = Editing
	f.form = models.ShippingAddress{}
	f.orderID = uuid.Nil
	f.err = nil
	f.mu.Unlock()

	f.changes.Publish(ctx, Editing)
}

// Quote returns the totals the current cart would be charged.
func (f *Flow) Quote() Quote {
	return QuoteFor(cart.Total(f.cart.Lines()))
}

// Submit places the order. Form, identity and cart checks happen before
// anything is written and leave the flow where it was.
//
// The order row and its lines are separate writes. When the lines fail
// the order row stays behind without lines and nothing removes it; the
// cart is left as it was so the shopper can try again, which creates a
// second order.
func (f *Flow) Submit(ctx context.Context) (uuid.UUID, error) {
	f.mu.RLock()
	state, form := f.state, f.form
	f.mu.RUnlock()
	form = f.withIdentityEmail(form)

	switch state {
	case Submitting:
		return uuid.Nil, fmt.Errorf("submit order: already submitting: %w", apperr.ErrConflict)
	case Confirmed:
		return uuid.Nil, fmt.Errorf("submit order: order already placed: %w", apperr.ErrConflict)
	}

	if err := ValidateAddress(form); err != nil {
		return uuid.Nil, err
	}

	id, ok := f.session.Identity()
	if !ok {
		return uuid.Nil, fmt.Errorf("submit order: %w", apperr.ErrAuthRequired)
	}

	lines := f.cart.Lines()
	if len(lines) == 0 {
		return uuid.Nil, apperr.Validation("cart", "Your cart is empty.")
	}

	if !f.transition(ctx, state, Submitting) {
		return uuid.Nil, fmt.Errorf("submit order: already submitting: %w", apperr.ErrConflict)
	}

	quote := QuoteFor(cart.Total(lines))

	orderID, err := f.backend.InsertOrder(ctx, id.UserID, quote.Total, form)
	if err != nil {
		return uuid.Nil, f.fail(ctx, fmt.Errorf("create order: %w", err))
	}

	// TODO: place the order and its lines in one backend transaction.
	if err := f.backend.InsertOrderLines(ctx, SnapshotLines(orderID, lines)); err != nil {
		f.logger.Error("order lines not written, order left without lines", "order_id", orderID, "error", err)
		return uuid.Nil, f.fail(ctx, fmt.Errorf("create order items: %w", err))
	}

	if err := f.cart.Clear(ctx); err != nil {
		f.logger.Error("clear cart after checkout", "order_id", orderID, "error", err)
	}

	f.mu.Lock()
	f.state = Confirmed
	f.orderID = orderID
	f.err = nil
	f.mu.Unlock()

	f.logger.Info("order placed", "order_id", orderID, "user_id", id.UserID, "total", quote.Total.StringFixed(2))
	f.changes.Publish(ctx, Confirmed)
	return orderID, nil
}

func (f *Flow) transition(ctx context.Context, from, to State) bool {
	f.mu.Lock()
	if f.state != from {
		f.mu.Unlock()
		return false
	}
	f.state = to
	f.mu.Unlock()

	f.changes.Publish(ctx, to)
	return true
}

func (f *Flow) fail(ctx context.Context, err error) error {
	f.mu.Lock()
	f.state = Failed
	f.err = err
	f.mu.Unlock()

	f.logger.Warn("checkout failed", "error", err)
	f.changes.Publish(ctx, Failed)
	return err
}

// SnapshotLines converts cart lines into order lines priced at the
// product's current price.
func SnapshotLines(orderID uuid.UUID, lines []models.CartLine) []models.OrderLine {
	out := make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, models.OrderLine{
			OrderID:   orderID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Product.Price,
			Product:   line.Product,
		})
	}
	return out
}

var addressLabels = []struct {
	name  string
	label string
}{
	{"full_name", "Full name"},
	{"email", "Email"},
	{"phone", "Phone"},
	{"address", "Address"},
	{"city", "City"},
	{"state", "State"},
	{"zip_code", "ZIP code"},
	{"country", "Country"},
}

// ValidateAddress reports the first empty field in form order.
func ValidateAddress(a models.ShippingAddress) error {
	for _, f := range addressLabels {
		field, _ := addressField(&a, f.name)
		if strings.TrimSpace(*field) == "" {
			return apperr.Validation(f.name, "%s is required.", f.label)
		}
	}
	return nil
}

func addressField(a *models.ShippingAddress, name string) (*string, bool) {
	switch name {
	case "full_name":
		return &a.FullName, true
	case "email":
		return &a.Email, true
	case "phone":
		return &a.Phone, true
	case "address":
		return &a.Address, true
	case "city":
		return &a.City, true
	case "state":
		return &a.State, true
	case "zip_code":
		return &a.ZipCode, true
	case "country":
		return &a.Country, true
	}
	return nil, false
}
