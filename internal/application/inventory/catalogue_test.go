package inventory

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/id"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	acme   = principal.Principal{ID: "acme", Role: principal.RoleVendor}
	globex = principal.Principal{ID: "globex", Role: principal.RoleVendor}
	alice  = principal.Principal{ID: "alice", Role: principal.RoleSender}
)

func newCatalogue() *Catalogue {
	return NewCatalogue(memory.NewInventoryLedger(), id.NewUUIDGenerator(), observability.Nop())
}

func TestAddProduct(t *testing.T) {
	c := newCatalogue()

	p, err := c.AddProduct(context.Background(), AddProductInput{
		Caller:   acme,
		Name:     "  Rice  ",
		Category: "grain",
		Unit:     "kg",
		Price:    decimal.RequireFromString("2.50"),
		Quantity: 40,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Rice", p.Name)
	assert.Equal(t, "kg", p.Unit)
	assert.Equal(t, acme.ID, p.VendorID)

	listed, err := c.ListVendorProducts(context.Background(), acme)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, p.ID, listed[0].ID)
}

func TestAddProductRejections(t *testing.T) {
	c := newCatalogue()
	ctx := context.Background()

	_, err := c.AddProduct(ctx, AddProductInput{Caller: alice, Name: "x", Price: decimal.NewFromInt(1), Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = c.AddProduct(ctx, AddProductInput{Caller: acme, Name: "", Price: decimal.NewFromInt(1), Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.AddProduct(ctx, AddProductInput{Caller: acme, Name: "x", Price: decimal.Zero, Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.AddProduct(ctx, AddProductInput{Caller: acme, Name: "x", Price: decimal.NewFromInt(1), Quantity: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestOnlyOwnerMayChangeProduct(t *testing.T) {
	c := newCatalogue()
	ctx := context.Background()
	p, err := c.AddProduct(ctx, AddProductInput{Caller: acme, Name: "Rice", Price: decimal.NewFromInt(2), Quantity: 5})
	require.NoError(t, err)

	_, err = c.UpdateStock(ctx, UpdateStockInput{Caller: globex, ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = c.UpdatePrice(ctx, UpdatePriceInput{Caller: globex, ProductID: p.ID, Price: decimal.NewFromInt(9)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, c.DeleteProduct(ctx, globex, p.ID), apperr.ErrNotFound)

	updated, err := c.UpdateStock(ctx, UpdateStockInput{Caller: acme, ProductID: p.ID, Quantity: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.Quantity)

	updated, err = c.UpdatePrice(ctx, UpdatePriceInput{Caller: acme, ProductID: p.ID, Price: decimal.RequireFromString("3.75")})
	require.NoError(t, err)
	assert.Equal(t, "3.75", updated.Price.String())

	require.NoError(t, c.DeleteProduct(ctx, acme, p.ID))
	listed, err := c.ListVendorProducts(ctx, acme)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestUpdateValidation(t *testing.T) {
	c := newCatalogue()
	ctx := context.Background()
	p, err := c.AddProduct(ctx, AddProductInput{Caller: acme, Name: "Rice", Price: decimal.NewFromInt(2), Quantity: 5})
	require.NoError(t, err)

	_, err = c.UpdateStock(ctx, UpdateStockInput{Caller: acme, ProductID: p.ID, Quantity: -3})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.UpdatePrice(ctx, UpdatePriceInput{Caller: acme, ProductID: p.ID, Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.UpdateStock(ctx, UpdateStockInput{Caller: acme, ProductID: "missing", Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
