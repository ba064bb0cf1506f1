package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
)

// placement identifies a sender's retry of the same PlaceOrder request.
type placement struct {
	sender string
	key    string
}

// OrderRepository keeps orders in a map guarded by one lock. Every read and
// write goes through Clone so callers never share state with the store.
type OrderRepository struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Order
	placed map[placement]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		byID:   make(map[string]*domain.Order),
		placed: make(map[placement]string),
	}
}

func (r *OrderRepository) Insert(_ context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return errors.New("memory: order id is required")
	}
	p := placement{sender: o.SenderID, key: o.IdempotencyKey}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[o.ID]; dup {
		return domain.ErrAlreadyExists
	}
	if p.key != "" {
		if _, dup := r.placed[p]; dup {
			return domain.ErrAlreadyExists
		}
		r.placed[p] = o.ID
	}
	r.byID[o.ID] = o.Clone()
	return nil
}

func (r *OrderRepository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cloneOf(id)
}

func (r *OrderRepository) FindByIdempotency(_ context.Context, senderID, key string) (*domain.Order, error) {
	if key == "" {
		return nil, domain.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.placed[placement{sender: senderID, key: key}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.cloneOf(id)
}

func (r *OrderRepository) FindBySender(_ context.Context, senderID string) ([]*domain.Order, error) {
	return r.newestFirst(func(o *domain.Order) bool { return o.SenderID == senderID }), nil
}

func (r *OrderRepository) FindByVendor(_ context.Context, vendorID string) ([]*domain.Order, error) {
	return r.newestFirst(func(o *domain.Order) bool { return o.VendorID == vendorID }), nil
}

// Transition applies next under the write lock only while the stored status
// still equals expected.
func (r *OrderRepository) Transition(_ context.Context, id string, expected, next domain.Status, ch domain.Changes) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	switch {
	case !ok:
		return nil, domain.ErrNotFound
	case stored.Status != expected:
		return nil, domain.ErrConflict
	}
	o := stored.Clone()
	if err := o.Advance(next, ch); err != nil {
		return nil, err
	}
	r.byID[id] = o
	return o.Clone(), nil
}

// cloneOf expects the caller to hold the lock.
func (r *OrderRepository) cloneOf(id string) (*domain.Order, error) {
	o, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) newestFirst(match func(*domain.Order) bool) []*domain.Order {
	r.mu.RLock()
	out := []*domain.Order{}
	for _, o := range r.byID {
		if match(o) {
			out = append(out, o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
