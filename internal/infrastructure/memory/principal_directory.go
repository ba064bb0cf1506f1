package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
)

type PrincipalDirectory struct {
	mu         sync.RWMutex
	principals map[string]principal.Principal
}

func NewPrincipalDirectory(seed ...principal.Principal) *PrincipalDirectory {
	d := &PrincipalDirectory{principals: make(map[string]principal.Principal, len(seed))}
	for _, p := range seed {
		d.principals[p.ID] = p
	}
	return d
}

func (d *PrincipalDirectory) FindByID(ctx context.Context, id string) (*principal.Principal, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.principals[id]
	if !ok {
		return nil, principal.ErrNotFound
	}
	return &p, nil
}

func (d *PrincipalDirectory) Upsert(ctx context.Context, p *principal.Principal) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return principal.ErrNotFound
	}
	if _, err := principal.ParseRole(string(p.Role)); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.principals[p.ID] = *p
	return nil
}
