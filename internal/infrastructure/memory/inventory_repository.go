package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// InventoryLedger keeps products in a map. Every mutation runs its check and
// write under one lock, which makes Reserve a single atomic step.
type InventoryLedger struct {
	mu    sync.RWMutex
	items map[string]*domain.Product
}

func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{
		items: make(map[string]*domain.Product),
	}
}

func (r *InventoryLedger) Create(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return errors.New("memory: product id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[p.ID] = p.Clone()
	return nil
}

func (r *InventoryLedger) Get(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *InventoryLedger) Reserve(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return r.mutate(ctx, productID, func(p *domain.Product) error {
		if p.Quantity < quantity {
			return domain.ErrInsufficientStock
		}
		p.Quantity -= quantity
		return nil
	})
}

func (r *InventoryLedger) Release(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return r.mutate(ctx, productID, func(p *domain.Product) error {
		p.Quantity += quantity
		return nil
	})
}

func (r *InventoryLedger) SetPrice(ctx context.Context, productID string, price decimal.Decimal) (*domain.Product, error) {
	if err := domain.ValidatePrice(price); err != nil {
		return nil, err
	}
	return r.mutate(ctx, productID, func(p *domain.Product) error {
		p.Price = price
		return nil
	})
}

func (r *InventoryLedger) SetQuantity(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	return r.mutate(ctx, productID, func(p *domain.Product) error {
		p.Quantity = quantity
		return nil
	})
}

func (r *InventoryLedger) FindByOwner(ctx context.Context, vendorID string) ([]*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Product, 0)
	for _, p := range r.items {
		if p.VendorID == vendorID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InventoryLedger) Delete(ctx context.Context, productID, vendorID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[productID]
	if !ok || p.VendorID != vendorID {
		return domain.ErrNotFound
	}
	delete(r.items, productID)
	return nil
}

func (r *InventoryLedger) mutate(ctx context.Context, productID string, fn func(p *domain.Product) error) (*domain.Product, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	r.items[productID] = next
	return next.Clone(), nil
}
