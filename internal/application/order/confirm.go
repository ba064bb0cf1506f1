package order

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/Zhima-Mochi/escrowshop/internal/application"
	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/escrow"
	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderConfirm = "order.confirm"

var errVerifierKeyMissing = errors.New("order: verifier signing key is not configured")

type ConfirmReceiptInput struct {
	Caller    principal.Principal
	OrderID   string
	UnlockKey string
}

type ConfirmReceiptResult struct {
	Order   *domain.Order
	Receipt escrow.Receipt
}

// ConfirmReceiptUseCase releases escrowed funds to the vendor once the sender
// presents the unlock key. DELIVERED is terminal.
type ConfirmReceiptUseCase struct{ base }

func (uc *ConfirmReceiptUseCase) Execute(ctx context.Context, cmd ConfirmReceiptInput) (_ *ConfirmReceiptResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseOrderConfirm, "ConfirmReceipt",
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { run.End(err) }()

	o, err := uc.ownedOrder(ctx, cmd.Caller, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_ACCESS_DENIED")
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(cmd.UnlockKey), []byte(o.UnlockKey)) != 1 {
		run.Fail("UNLOCK_KEY_INVALID")
		return nil, apperr.Unauthorized("invalid unlock key")
	}
	if o.Status != domain.StatusProofUploaded {
		run.Fail("PROOF_NOT_UPLOADED")
		return nil, apperr.Conflict("proof not uploaded")
	}
	if uc.cfg.VerifierKey == "" {
		run.Fail("VERIFIER_KEY_MISSING")
		return nil, apperr.Wrap(apperr.ErrExternal, errVerifierKeyMissing)
	}

	ctx = context.WithoutCancel(ctx)

	var receipt escrow.Receipt
	err = uc.inst.External(ctx, escrowPeer, "verify_and_release", uc.cfg.EscrowTimeout, func(ctx context.Context) error {
		var callErr error
		receipt, callErr = uc.deps.Gateway.VerifyAndRelease(ctx, escrow.ReleaseRequest{
			VerifierKey:    uc.cfg.VerifierKey,
			VerifierWallet: o.VerifierAddress,
			EscrowID:       o.EscrowID,
			UnlockKey:      o.UnlockKey,
			Amount:         o.TotalPrice,
		})
		return callErr
	})
	if err != nil {
		run.Fail("ESCROW_RELEASE_FAILED")
		return nil, application.EscrowError(err)
	}

	updated, err := uc.deps.Orders.Transition(ctx, o.ID, domain.StatusProofUploaded, domain.StatusDelivered, domain.Changes{})
	if err != nil {
		run.Fail("STATE_TRANSITION_FAILED")
		run.Logger().Error("escrow_released_without_transition",
			observability.F("order_id", o.ID),
			observability.F("escrow_id", o.EscrowID),
			observability.F("tx_digest", receipt.Digest),
			observability.Err(err),
		)
		return nil, apperr.FromDomain(err)
	}

	run.Annotate(
		observability.F("order_id", o.ID),
		observability.F("tx_digest", receipt.Digest),
	)
	uc.publish(ctx, run, domain.NewStatusChangedEvent(updated, cmd.Caller.ID, domain.StatusProofUploaded, receipt.Digest))

	return &ConfirmReceiptResult{Order: updated, Receipt: receipt}, nil
}
