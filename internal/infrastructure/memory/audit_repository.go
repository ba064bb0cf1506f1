package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/escrowshop/internal/domain/audit"
)

type AuditRepository struct {
	mu      sync.RWMutex
	byOrder map[string][]audit.Entry
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{byOrder: make(map[string][]audit.Entry)}
}

func (r *AuditRepository) Append(ctx context.Context, e *audit.Entry) error {
	_ = ctx
	if e == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byOrder[e.OrderID] {
		if e.ID != "" && existing.ID == e.ID {
			return nil
		}
	}
	r.byOrder[e.OrderID] = append(r.byOrder[e.OrderID], *e)
	return nil
}

func (r *AuditRepository) FindByOrder(ctx context.Context, orderID string) ([]*audit.Entry, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byOrder[orderID]
	out := make([]*audit.Entry, len(entries))
	for i := range entries {
		e := entries[i]
		out[i] = &e
	}
	return out, nil
}
