package order

import (
	"context"
	"errors"
	"strings"

	"github.com/Zhima-Mochi/escrowshop/internal/application"
	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/escrow"
	dominv "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderCancel = "order.cancel"

type CancelOrderInput struct {
	Caller  principal.Principal
	OrderID string
	// SenderKey is required once the order is funded.
	SenderKey string
}

// RestockFailure describes a line item whose stock could not be returned.
type RestockFailure struct {
	ProductID string
	Quantity  int
	Err       error
}

type CancelOrderResult struct {
	Order *domain.Order
	// Receipt is empty when the order was never funded.
	Receipt         escrow.Receipt
	RestockFailures []RestockFailure
}

// CancelOrderUseCase refunds a funded escrow, records the cancellation and
// returns the reserved stock.
type CancelOrderUseCase struct {
	base
	restockFailures observability.Counter
}

func (uc *CancelOrderUseCase) Execute(ctx context.Context, cmd CancelOrderInput) (_ *CancelOrderResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseOrderCancel, "CancelOrder",
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { run.End(err) }()

	o, err := uc.ownedOrder(ctx, cmd.Caller, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_ACCESS_DENIED")
		return nil, err
	}
	if !domain.Cancellable(o.Status) {
		run.Fail("ORDER_NOT_CANCELLABLE")
		return nil, apperr.Conflict("cannot cancel order in this state")
	}

	from := o.Status
	ctx = context.WithoutCancel(ctx)

	var receipt escrow.Receipt
	if from == domain.StatusReceived && o.EscrowID != "" {
		if strings.TrimSpace(cmd.SenderKey) == "" {
			run.Fail("SENDER_KEY_REQUIRED")
			return nil, apperr.Validation("sender wallet key is required")
		}
		senderWallet, walletErr := uc.wallet(ctx, o.SenderID)
		if walletErr != nil {
			run.Fail("SENDER_WALLET_UNRESOLVED")
			return nil, walletErr
		}
		err = uc.inst.External(ctx, escrowPeer, "cancel_escrow", uc.cfg.EscrowTimeout, func(ctx context.Context) error {
			var callErr error
			receipt, callErr = uc.deps.Gateway.CancelEscrow(ctx, escrow.CancelRequest{
				SenderKey:    cmd.SenderKey,
				SenderWallet: senderWallet,
				EscrowID:     o.EscrowID,
			})
			return callErr
		})
		if err != nil {
			run.Fail("ESCROW_CANCEL_FAILED")
			return nil, application.EscrowError(err)
		}
		run.Event("escrow.cancelled", "escrow.id", o.EscrowID, "tx.digest", receipt.Digest)
	}

	// The transition runs before the restock so that only the caller whose
	// write wins hands the stock back.
	updated, err := uc.deps.Orders.Transition(ctx, o.ID, from, domain.StatusCancelled, domain.Changes{})
	if err != nil {
		run.Fail("STATE_TRANSITION_FAILED")
		if receipt.Digest != "" {
			run.Logger().Error("escrow_cancelled_without_transition",
				observability.F("order_id", o.ID),
				observability.F("escrow_id", o.EscrowID),
				observability.F("tx_digest", receipt.Digest),
				observability.Err(err),
			)
		}
		return nil, apperr.FromDomain(err)
	}

	failures := uc.restock(ctx, run, updated)
	if len(failures) > 0 {
		run.Note("CANCELLED_RESTOCK_INCOMPLETE")
		run.Annotate(observability.F("restock_failures", len(failures)))
	}
	run.Annotate(
		observability.F("order_id", o.ID),
		observability.F("from_status", string(from)),
		observability.F("tx_digest", receipt.Digest),
	)
	uc.publish(ctx, run, domain.NewStatusChangedEvent(updated, cmd.Caller.ID, from, receipt.Digest))

	return &CancelOrderResult{Order: updated, Receipt: receipt, RestockFailures: failures}, nil
}

// restock releases every line item independently. Failures are reported, never returned.
func (uc *CancelOrderUseCase) restock(ctx context.Context, run *application.Run, o *domain.Order) []RestockFailure {
	var failures []RestockFailure
	for _, li := range o.Items {
		_, err := uc.deps.Ledger.Release(ctx, li.ProductID, li.Quantity)
		if err == nil {
			continue
		}
		reason := restockReason(err)
		failures = append(failures, RestockFailure{ProductID: li.ProductID, Quantity: li.Quantity, Err: err})
		uc.restockFailures.Add(1, observability.L("reason", reason))
		run.Logger().Warn("stock_restore_failed",
			observability.F("order_id", o.ID),
			observability.F("product_id", li.ProductID),
			observability.F("quantity", li.Quantity),
			observability.F("reason", reason),
			observability.Err(err),
		)
		if pubErr := uc.inst.Publish(ctx, uc.deps.Publisher,
			dominv.NewRestockFailedEvent(o.ID, li.ProductID, li.Quantity, reason, err)); pubErr != nil {
			run.Logger().Warn("restock_failure_event_dropped",
				observability.F("order_id", o.ID),
				observability.Err(pubErr),
			)
		}
	}
	return failures
}

func restockReason(err error) string {
	switch {
	case errors.Is(err, dominv.ErrNotFound):
		return dominv.FailureReasonNotFound
	case errors.Is(err, dominv.ErrInvalidQuantity):
		return dominv.FailureReasonInvalidQuantity
	default:
		return dominv.FailureReasonPersistenceError
	}
}
