package principal

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound    = errors.New("principal: not found")
	ErrInvalidRole = errors.New("principal: invalid role")
)

// Role gates which operations a principal may invoke.
type Role string

const (
	RoleSender Role = "sender"
	RoleVendor Role = "vendor"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSender, RoleVendor:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// Principal is a sender or vendor identity together with the wallet that
// holds or receives escrowed funds.
type Principal struct {
	ID            string
	Role          Role
	Name          string
	WalletAddress string
}

func (p Principal) Is(role Role) bool { return p.ID != "" && p.Role == role }

// Directory resolves principals by id.
type Directory interface {
	FindByID(ctx context.Context, id string) (*Principal, error)
	Upsert(ctx context.Context, p *Principal) error
}
