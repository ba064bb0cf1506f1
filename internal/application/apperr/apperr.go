// Package apperr defines the error kinds every use case reports. Callers
// classify with errors.Is; the wrapped cause stays in the chain.
package apperr

import (
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
)

var (
	ErrValidation   = errors.New("validation")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrExternal     = errors.New("external service")
)

func Validation(msg string) error   { return fmt.Errorf("%w: %s", ErrValidation, msg) }
func NotFound(msg string) error     { return fmt.Errorf("%w: %s", ErrNotFound, msg) }
func Unauthorized(msg string) error { return fmt.Errorf("%w: %s", ErrUnauthorized, msg) }
func Conflict(msg string) error     { return fmt.Errorf("%w: %s", ErrConflict, msg) }

// Wrap tags err with kind unless err already carries a kind.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Kind returns the kind sentinel carried by err, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrUnauthorized, ErrConflict, ErrExternal} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// FromDomain classifies the sentinel errors of the domain stores. Errors it
// does not recognise are returned unchanged and surface as internal failures.
func FromDomain(err error) error {
	switch {
	case err == nil:
		return nil
	case Kind(err) != nil:
		return err
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, principal.ErrNotFound):
		return Wrap(ErrNotFound, err)
	case errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrInvalidStateTransition),
		errors.Is(err, order.ErrAlreadyExists),
		errors.Is(err, inventory.ErrInsufficientStock):
		return Wrap(ErrConflict, err)
	case errors.Is(err, order.ErrNoItems),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrMixedVendors),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidPrice),
		errors.Is(err, inventory.ErrNameRequired):
		return Wrap(ErrValidation, err)
	default:
		return err
	}
}
