package order

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/Zhima-Mochi/escrowshop/internal/application"
	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/escrow"
	dominv "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/escrowshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"
)

const (
	orderService = "order-service"
	escrowPeer   = "escrow_gateway"

	// UnlockKeyBytes of entropy, hex encoded to a 32 character key.
	UnlockKeyBytes = 16

	DefaultCurrency      = "SUI"
	DefaultEscrowTimeout = 15 * time.Second
)

type IDGenerator interface {
	NewID() string
}

type KeyGenerator interface {
	NewUnlockKey() (string, error)
}

// RandomKeys draws unlock keys from crypto/rand.
type RandomKeys struct{}

func (RandomKeys) NewUnlockKey() (string, error) {
	b := make([]byte, UnlockKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Config holds the settings the lifecycle operations need beyond their collaborators.
type Config struct {
	Currency        string
	DefaultVerifier string
	// VerifierKey signs release transactions on behalf of the verifier.
	VerifierKey   string
	EscrowTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.EscrowTimeout <= 0 {
		c.EscrowTimeout = DefaultEscrowTimeout
	}
	return c
}

// Deps are the collaborators shared by every lifecycle use case.
type Deps struct {
	Orders     domain.Repository
	Ledger     dominv.Ledger
	Principals principal.Directory
	Gateway    escrow.Gateway
	Publisher  domoutbox.Publisher
	IDs        IDGenerator
	Keys       KeyGenerator
	Tel        observability.Observability
}

// Engine bundles the lifecycle use cases for the transport layer.
type Engine struct {
	Place   *PlaceOrderUseCase
	Fund    *FundOrderUseCase
	Track   *TrackOrderUseCase
	Confirm *ConfirmReceiptUseCase
	Cancel  *CancelOrderUseCase
	List    *ListOrdersUseCase
}

var (
	_ application.UseCase[PlaceOrderInput, *PlaceOrderResult]         = (*PlaceOrderUseCase)(nil)
	_ application.UseCase[FundOrderInput, *FundOrderResult]           = (*FundOrderUseCase)(nil)
	_ application.UseCase[TrackOrderInput, *TrackedOrder]             = (*TrackOrderUseCase)(nil)
	_ application.UseCase[ConfirmReceiptInput, *ConfirmReceiptResult] = (*ConfirmReceiptUseCase)(nil)
	_ application.UseCase[CancelOrderInput, *CancelOrderResult]       = (*CancelOrderUseCase)(nil)
	_ application.UseCase[ListOrdersInput, []*domain.Order]           = (*ListOrdersUseCase)(nil)
)

func NewEngine(deps Deps, cfg Config) *Engine {
	if deps.Keys == nil {
		deps.Keys = RandomKeys{}
	}
	cfg = cfg.withDefaults()
	inst := application.NewInstrument(orderService, deps.Tel)
	base := base{deps: deps, cfg: cfg, inst: inst}
	return &Engine{
		Place:   &PlaceOrderUseCase{base: base},
		Fund:    &FundOrderUseCase{base: base},
		Track:   &TrackOrderUseCase{base: base},
		Confirm: &ConfirmReceiptUseCase{base: base},
		Cancel:  &CancelOrderUseCase{base: base, restockFailures: metricsOf(deps.Tel).Counter(observability.MStockRestoreFailures)},
		List:    &ListOrdersUseCase{base: base},
	}
}

type base struct {
	deps Deps
	cfg  Config
	inst *application.Instrument
}

func metricsOf(tel observability.Observability) observability.Metrics {
	if tel == nil {
		return observability.NopMetrics()
	}
	return tel.Metrics()
}

// ownedOrder loads orderID and checks that caller is its sender.
func (b base) ownedOrder(ctx context.Context, caller principal.Principal, orderID string) (*domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, apperr.Validation("order id is required")
	}
	if !caller.Is(principal.RoleSender) {
		return nil, apperr.Unauthorized("must be a sender")
	}
	o, err := b.deps.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, apperr.FromDomain(err)
	}
	if o.SenderID != caller.ID {
		return nil, apperr.Unauthorized("unauthorized")
	}
	return o, nil
}

// wallet resolves the wallet address of a principal that must exist.
func (b base) wallet(ctx context.Context, id string) (string, error) {
	return application.Wallet(ctx, b.deps.Principals, id)
}

func (b base) publish(ctx context.Context, run *application.Run, e domoutbox.Event) {
	if err := b.inst.Publish(ctx, b.deps.Publisher, e); err != nil {
		run.Annotate(observability.F("event_publish_error", err.Error()))
	}
}
