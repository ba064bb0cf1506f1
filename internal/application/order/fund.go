package order

import (
	"context"
	"errors"
	"strings"

	"github.com/Zhima-Mochi/escrowshop/internal/application"
	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/escrow"
	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderFund = "order.fund"

type FundOrderInput struct {
	Caller  principal.Principal
	OrderID string
	Amount  decimal.Decimal
	// SenderKey authorises the escrow deposit from the sender's wallet.
	SenderKey string
}

type FundOrderResult struct {
	Order   *domain.Order
	Receipt escrow.Receipt
}

// FundOrderUseCase locks the order total in escrow and moves the order to RECEIVED.
type FundOrderUseCase struct{ base }

func (uc *FundOrderUseCase) Execute(ctx context.Context, cmd FundOrderInput) (_ *FundOrderResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseOrderFund, "FundOrder",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.amount", cmd.Amount.String()),
	)
	defer func() { run.End(err) }()

	o, err := uc.ownedOrder(ctx, cmd.Caller, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_ACCESS_DENIED")
		return nil, err
	}
	if o.Status != domain.StatusPending {
		run.Fail("ORDER_NOT_PENDING")
		return nil, apperr.Conflict("order not in pending state")
	}
	if !cmd.Amount.Equal(o.TotalPrice) {
		run.Fail("AMOUNT_MISMATCH")
		return nil, apperr.Validation("amount does not match order total")
	}
	if strings.TrimSpace(cmd.SenderKey) == "" {
		run.Fail("SENDER_KEY_REQUIRED")
		return nil, apperr.Validation("sender wallet key is required")
	}

	senderWallet, err := uc.wallet(ctx, o.SenderID)
	if err != nil {
		run.Fail("SENDER_WALLET_UNRESOLVED")
		return nil, err
	}
	vendorWallet, err := uc.wallet(ctx, o.VendorID)
	if err != nil {
		run.Fail("VENDOR_WALLET_UNRESOLVED")
		return nil, err
	}

	// From here on the client going away must not abandon a submitted escrow.
	ctx = context.WithoutCancel(ctx)

	var escrowID string
	var receipt escrow.Receipt
	err = uc.inst.External(ctx, escrowPeer, "create_escrow", uc.cfg.EscrowTimeout, func(ctx context.Context) error {
		var callErr error
		escrowID, receipt, callErr = uc.deps.Gateway.CreateEscrow(ctx, escrow.CreateRequest{
			SenderKey:      cmd.SenderKey,
			SenderWallet:   senderWallet,
			VendorWallet:   vendorWallet,
			VerifierWallet: o.VerifierAddress,
			Amount:         o.TotalPrice,
			Currency:       o.Currency,
			UnlockKey:      o.UnlockKey,
		})
		if callErr == nil && escrowID == "" {
			callErr = errors.New("escrow: gateway returned no escrow id")
		}
		return callErr
	})
	if err != nil {
		run.Fail("ESCROW_CREATE_FAILED")
		return nil, application.EscrowError(err)
	}
	run.Event("escrow.created", "escrow.id", escrowID, "tx.digest", receipt.Digest)

	updated, err := uc.deps.Orders.Transition(ctx, o.ID, domain.StatusPending, domain.StatusReceived,
		domain.Changes{EscrowID: escrowID})
	if err != nil {
		run.Fail("STATE_TRANSITION_FAILED")
		run.Logger().Error("escrow_orphaned",
			observability.F("order_id", o.ID),
			observability.F("escrow_id", escrowID),
			observability.F("tx_digest", receipt.Digest),
			observability.Err(err),
		)
		return nil, apperr.FromDomain(err)
	}

	run.Annotate(
		observability.F("order_id", o.ID),
		observability.F("escrow_id", escrowID),
		observability.F("tx_digest", receipt.Digest),
	)
	uc.publish(ctx, run, domain.NewStatusChangedEvent(updated, cmd.Caller.ID, domain.StatusPending, receipt.Digest))

	return &FundOrderResult{Order: updated, Receipt: receipt}, nil
}
