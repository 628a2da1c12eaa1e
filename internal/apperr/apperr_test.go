package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{fmt.Errorf("add to cart: %w", ErrAuthRequired), KindAuthRequired},
		{fmt.Errorf("wrap: %w", Validation("email", "Email is required.")), KindValidation},
		{fmt.Errorf("product %w", ErrNotFound), KindNotFound},
		{fmt.Errorf("entry %w", ErrConflict), KindConflict},
		{errors.New("dial tcp: connection refused"), KindTransport},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, KindOf(tt.err), tt.err.Error())
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "Please login to continue.", Message(ErrAuthRequired))
	assert.Equal(t, "Email is required.", Message(fmt.Errorf("sign up: %w", Validation("email", "Email is required."))))
	assert.Equal(t, "Something went wrong. Please try again.", Message(errors.New("boom")))
}

func TestValidationError(t *testing.T) {
	assert.Equal(t, "city: City is required.", Validation("city", "%s is required.", "City").Error())
	assert.Equal(t, "Your cart is empty.", (&ValidationError{Message: "Your cart is empty."}).Error())
	assert.Equal(t, "validation", KindValidation.String())
}
