package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger owns product stock. Reserve and Release must be atomic per product
// at the storage layer; callers hold no locks across them.
type Ledger interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, productID string) (*Product, error)
	// Reserve decrements stock only when at least quantity units are available.
	Reserve(ctx context.Context, productID string, quantity int) (*Product, error)
	Release(ctx context.Context, productID string, quantity int) (*Product, error)
	SetPrice(ctx context.Context, productID string, price decimal.Decimal) (*Product, error)
	SetQuantity(ctx context.Context, productID string, quantity int) (*Product, error)
	FindByOwner(ctx context.Context, vendorID string) ([]*Product, error)
	Delete(ctx context.Context, productID, vendorID string) error
}
