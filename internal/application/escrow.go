package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/escrow"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
)

// Wallet resolves the on-chain address of a principal. Escrow calls are never
// made with an empty wallet.
func Wallet(ctx context.Context, dir principal.Directory, id string) (string, error) {
	p, err := dir.FindByID(ctx, id)
	if err != nil {
		return "", apperr.FromDomain(err)
	}
	if p.WalletAddress == "" {
		return "", apperr.Validation("principal " + id + " has no wallet address")
	}
	return p.WalletAddress, nil
}

// EscrowError tags a gateway failure. Context errors from the bounded call
// are reported as external failures too: the remote effect is unknown.
func EscrowError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", escrow.ErrUnavailable, err)
	}
	return apperr.Wrap(apperr.ErrExternal, err)
}
