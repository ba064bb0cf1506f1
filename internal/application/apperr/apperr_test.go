package apperr

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	"github.com/stretchr/testify/assert"
)

var errStore = errors.New("order: unexpected order state")

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(ErrConflict, errStore)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, errStore)
	assert.Equal(t, "conflict: order: unexpected order state", err.Error())
}

func TestWrapDoesNotRetag(t *testing.T) {
	err := Wrap(ErrExternal, Validation("amount does not match order total"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrExternal)
}

func TestKind(t *testing.T) {
	assert.Equal(t, ErrUnauthorized, Kind(Unauthorized("invalid unlock key")))
	assert.Nil(t, Kind(errStore))
	assert.Nil(t, Wrap(ErrNotFound, nil))
}

func TestFromDomain(t *testing.T) {
	cases := []struct {
		in   error
		kind error
	}{
		{order.ErrNotFound, ErrNotFound},
		{inventory.ErrNotFound, ErrNotFound},
		{order.ErrConflict, ErrConflict},
		{inventory.ErrInsufficientStock, ErrConflict},
		{order.ErrMixedVendors, ErrValidation},
		{inventory.ErrInvalidPrice, ErrValidation},
	}
	for _, tc := range cases {
		got := FromDomain(tc.in)
		assert.ErrorIs(t, got, tc.kind, tc.in.Error())
		assert.ErrorIs(t, got, tc.in)
	}
	assert.Nil(t, Kind(FromDomain(errStore)))
}
