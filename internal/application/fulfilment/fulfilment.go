package fulfilment

import (
	"context"
	"strings"
	"time"

	"github.com/Zhima-Mochi/escrowshop/internal/application"
	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/escrow"
	domorder "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/escrowshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	fulfilmentService  = "fulfilment-service"
	useCasePrepare     = "fulfilment.prepare"
	useCaseUploadProof = "fulfilment.upload_proof"
	useCaseList        = "fulfilment.list"
	escrowPeer         = "escrow_gateway"
)

type Deps struct {
	Orders     domorder.Repository
	Principals principal.Directory
	Gateway    escrow.Gateway
	Publisher  domoutbox.Publisher
	Tel        observability.Observability
}

// Service carries the vendor side of the lifecycle: RECEIVED → PREPARED → PROOF_UPLOADED.
type Service struct {
	deps          Deps
	escrowTimeout time.Duration
	inst          *application.Instrument
}

func NewService(deps Deps, escrowTimeout time.Duration) *Service {
	if escrowTimeout <= 0 {
		escrowTimeout = 15 * time.Second
	}
	return &Service{
		deps:          deps,
		escrowTimeout: escrowTimeout,
		inst:          application.NewInstrument(fulfilmentService, deps.Tel),
	}
}

type PrepareInput struct {
	Caller  principal.Principal
	OrderID string
}

func (s *Service) PrepareGoods(ctx context.Context, cmd PrepareInput) (_ *domorder.Order, err error) {
	ctx, run := s.inst.Begin(ctx, useCasePrepare, "PrepareGoods", attribute.String("order.id", cmd.OrderID))
	defer func() { run.End(err) }()

	o, err := s.assignedOrder(ctx, cmd.Caller, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_ACCESS_DENIED")
		return nil, err
	}
	if o.Status != domorder.StatusReceived {
		run.Fail("ORDER_NOT_FUNDED")
		return nil, apperr.Conflict("order not in received state")
	}

	updated, err := s.deps.Orders.Transition(ctx, o.ID, domorder.StatusReceived, domorder.StatusPrepared, domorder.Changes{})
	if err != nil {
		run.Fail("STATE_TRANSITION_FAILED")
		return nil, apperr.FromDomain(err)
	}
	s.publish(ctx, run, domorder.NewStatusChangedEvent(updated, cmd.Caller.ID, domorder.StatusReceived, ""))
	return updated, nil
}

type UploadProofInput struct {
	Caller  principal.Principal
	OrderID string
	// ProofHash is the content address of the packaging evidence.
	ProofHash string
	VendorKey string
}

type UploadProofResult struct {
	Order   *domorder.Order
	Receipt escrow.Receipt
}

func (s *Service) UploadProof(ctx context.Context, cmd UploadProofInput) (_ *UploadProofResult, err error) {
	ctx, run := s.inst.Begin(ctx, useCaseUploadProof, "UploadProof", attribute.String("order.id", cmd.OrderID))
	defer func() { run.End(err) }()

	proof := strings.TrimSpace(cmd.ProofHash)
	if proof == "" {
		run.Fail("PROOF_REQUIRED")
		return nil, apperr.Validation("proof hash is required")
	}
	if strings.TrimSpace(cmd.VendorKey) == "" {
		run.Fail("VENDOR_KEY_REQUIRED")
		return nil, apperr.Validation("vendor wallet key is required")
	}

	o, err := s.assignedOrder(ctx, cmd.Caller, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_ACCESS_DENIED")
		return nil, err
	}
	if o.Status != domorder.StatusPrepared {
		run.Fail("ORDER_NOT_PREPARED")
		return nil, apperr.Conflict("order not in prepared state")
	}

	vendorWallet, err := application.Wallet(ctx, s.deps.Principals, o.VendorID)
	if err != nil {
		run.Fail("VENDOR_WALLET_INVALID")
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	var receipt escrow.Receipt
	err = s.inst.External(ctx, escrowPeer, "upload_proof", s.escrowTimeout, func(ctx context.Context) error {
		var callErr error
		receipt, callErr = s.deps.Gateway.UploadProof(ctx, escrow.ProofRequest{
			VendorKey:    cmd.VendorKey,
			VendorWallet: vendorWallet,
			EscrowID:     o.EscrowID,
			ProofHash:    proof,
		})
		return callErr
	})
	if err != nil {
		run.Fail("ESCROW_PROOF_FAILED")
		return nil, application.EscrowError(err)
	}

	updated, err := s.deps.Orders.Transition(ctx, o.ID, domorder.StatusPrepared, domorder.StatusProofUploaded,
		domorder.Changes{ProofURL: proof})
	if err != nil {
		run.Fail("STATE_TRANSITION_FAILED")
		return nil, apperr.FromDomain(err)
	}
	run.Annotate(observability.F("order_id", o.ID), observability.F("tx_digest", receipt.Digest))
	s.publish(ctx, run, domorder.NewStatusChangedEvent(updated, cmd.Caller.ID, domorder.StatusPrepared, receipt.Digest))

	return &UploadProofResult{Order: updated, Receipt: receipt}, nil
}

// ListOrders returns the orders assigned to the calling vendor.
func (s *Service) ListOrders(ctx context.Context, caller principal.Principal) (_ []*domorder.Order, err error) {
	ctx, run := s.inst.Begin(ctx, useCaseList, "ListVendorOrders", attribute.String("vendor.id", caller.ID))
	defer func() { run.End(err) }()

	if !caller.Is(principal.RoleVendor) {
		run.Fail("VENDOR_INVALID")
		return nil, apperr.Unauthorized("must be a vendor")
	}
	orders, err := s.deps.Orders.FindByVendor(ctx, caller.ID)
	if err != nil {
		run.Fail("REPO_QUERY_FAILED")
		return nil, apperr.FromDomain(err)
	}
	return orders, nil
}

// assignedOrder loads an order and checks that caller is its vendor. Orders of
// other vendors are reported as missing.
func (s *Service) assignedOrder(ctx context.Context, caller principal.Principal, orderID string) (*domorder.Order, error) {
	if !caller.Is(principal.RoleVendor) {
		return nil, apperr.Unauthorized("must be a vendor")
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, apperr.Validation("order id is required")
	}
	o, err := s.deps.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, apperr.FromDomain(err)
	}
	if o.VendorID != caller.ID {
		return nil, apperr.NotFound("order not found or not assigned to vendor")
	}
	return o, nil
}

func (s *Service) publish(ctx context.Context, run *application.Run, e domoutbox.Event) {
	if err := s.inst.Publish(ctx, s.deps.Publisher, e); err != nil {
		run.Annotate(observability.F("event_publish_error", err.Error()))
	}
}
