package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/quickcart/internal/apperr"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassUniqueViolation
	ErrorClassForeignKeyViolation
	ErrorClassCheckViolation
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return ErrorClassUniqueViolation
		case "23503":
			return ErrorClassForeignKeyViolation
		case "23514", "23502":
			return ErrorClassCheckViolation
		case "40001", "40P01", "55P03", "57P01", "08000", "08003", "08006":
			return ErrorClassTransient
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

var (
	ErrUserNotFound     = fmt.Errorf("user %w", apperr.ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("product %w", apperr.ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", apperr.ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", apperr.ErrNotFound)
	ErrCartLineNotFound = fmt.Errorf("cart line %w", apperr.ErrNotFound)
	ErrDuplicateEntry   = fmt.Errorf("entry %w", apperr.ErrConflict)
	ErrEmailTaken       = fmt.Errorf("email %w", apperr.ErrConflict)
	ErrProductOrdered   = fmt.Errorf("product %w in orders", apperr.ErrConflict)
)

// Translate maps constraint violations raised by PostgreSQL onto the
// storefront sentinels. onUnique and onForeignKey are returned for the
// respective classes; other errors are wrapped with op.
func Translate(err error, op string, onUnique, onForeignKey error) error {
	if err == nil {
		return nil
	}
	switch ClassifyError(err) {
	case ErrorClassUniqueViolation:
		if onUnique != nil {
			return onUnique
		}
	case ErrorClassForeignKeyViolation:
		if onForeignKey != nil {
			return onForeignKey
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
