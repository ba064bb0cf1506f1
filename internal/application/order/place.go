package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Zhima-Mochi/escrowshop/internal/application"
	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	dominv "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderPlace = "order.place"

type ItemInput struct {
	ProductID string
	Quantity  int
}

type PlaceOrderInput struct {
	Caller          principal.Principal
	Items           []ItemInput
	VerifierAddress string
	IdempotencyKey  string
}

type PlaceOrderResult struct {
	Order *domain.Order
	// Replayed is set when the idempotency key matched an existing order.
	Replayed bool
}

// PlaceOrderUseCase validates a basket, reserves its stock and records a PENDING order.
type PlaceOrderUseCase struct{ base }

func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseOrderPlace, "PlaceOrder",
		attribute.String("order.sender_id", cmd.Caller.ID),
		attribute.Int("order.items", len(cmd.Items)),
	)
	defer func() { run.End(err) }()

	sender, err := uc.deps.Principals.FindByID(ctx, cmd.Caller.ID)
	if err != nil && !errors.Is(err, principal.ErrNotFound) {
		run.Fail("SENDER_LOOKUP_FAILED")
		return nil, apperr.FromDomain(err)
	}
	if sender == nil || !sender.Is(principal.RoleSender) {
		run.Fail("SENDER_INVALID")
		return nil, apperr.Unauthorized("invalid sender")
	}

	items, err := mergeItems(cmd.Items)
	if err != nil {
		run.Fail("ITEMS_INVALID")
		return nil, err
	}

	verifier := strings.TrimSpace(cmd.VerifierAddress)
	if verifier == "" {
		verifier = uc.cfg.DefaultVerifier
	}
	if verifier == "" {
		run.Fail("VERIFIER_REQUIRED")
		return nil, apperr.Validation("verifier address is required")
	}

	if cmd.IdempotencyKey != "" {
		existing, lookupErr := uc.deps.Orders.FindByIdempotency(ctx, sender.ID, cmd.IdempotencyKey)
		switch {
		case lookupErr == nil:
			run.Note("IDEMPOTENT_REPLAY")
			run.Event("order.idempotent_replay", "order.id", existing.ID)
			return &PlaceOrderResult{Order: existing, Replayed: true}, nil
		case errors.Is(lookupErr, domain.ErrNotFound):
		default:
			run.Fail("IDEMPOTENCY_LOOKUP_FAILED")
			return nil, apperr.FromDomain(lookupErr)
		}
	}

	// Everything is checked before the first reservation so that a rejected
	// basket never touches stock.
	products := make([]*dominv.Product, len(items))
	for i, it := range items {
		p, getErr := uc.deps.Ledger.Get(ctx, it.ProductID)
		if getErr != nil {
			run.Fail("PRODUCT_LOOKUP_FAILED")
			if errors.Is(getErr, dominv.ErrNotFound) {
				return nil, apperr.Wrap(apperr.ErrNotFound, fmt.Errorf("product %s not found: %w", it.ProductID, getErr))
			}
			return nil, apperr.FromDomain(getErr)
		}
		products[i] = p
	}

	vendorID := products[0].VendorID
	for _, p := range products[1:] {
		if p.VendorID != vendorID {
			run.Fail("MIXED_VENDORS")
			return nil, apperr.Wrap(apperr.ErrValidation, domain.ErrMixedVendors)
		}
	}

	lines := make([]domain.LineItem, len(items))
	for i, it := range items {
		p := products[i]
		if p.Quantity < it.Quantity {
			run.Fail("INSUFFICIENT_STOCK")
			return nil, apperr.Wrap(apperr.ErrConflict,
				fmt.Errorf("insufficient stock for product %s: %w", p.Name, dominv.ErrInsufficientStock))
		}
		lines[i] = domain.LineItem{ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.Price}
	}

	unlockKey, err := uc.deps.Keys.NewUnlockKey()
	if err != nil {
		run.Fail("UNLOCK_KEY_FAILED")
		return nil, fmt.Errorf("order: unlock key: %w", err)
	}
	entity, err := domain.New(uc.deps.IDs.NewID(), sender.ID, vendorID, lines, verifier, uc.cfg.Currency, unlockKey)
	if err != nil {
		run.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, apperr.FromDomain(err)
	}
	entity.IdempotencyKey = cmd.IdempotencyKey

	reserved, err := uc.reserve(ctx, run, lines)
	if err != nil {
		run.Fail("RESERVE_FAILED")
		return nil, err
	}

	if err := uc.deps.Orders.Insert(ctx, entity); err != nil {
		uc.release(ctx, run, entity.ID, reserved)
		if errors.Is(err, domain.ErrAlreadyExists) && cmd.IdempotencyKey != "" {
			if existing, lookupErr := uc.deps.Orders.FindByIdempotency(ctx, sender.ID, cmd.IdempotencyKey); lookupErr == nil {
				run.Note("IDEMPOTENT_REPLAY")
				return &PlaceOrderResult{Order: existing, Replayed: true}, nil
			}
		}
		run.Fail("REPO_INSERT_FAILED")
		return nil, apperr.FromDomain(err)
	}

	run.Span().SetAttributes(
		attribute.String("order.id", entity.ID),
		attribute.String("order.total", entity.TotalPrice.String()),
	)
	run.Annotate(
		observability.F("order_id", entity.ID),
		observability.F("vendor_id", entity.VendorID),
		observability.F("total", entity.TotalPrice.String()),
	)
	uc.publish(ctx, run, domain.NewOrderPlacedEvent(entity))

	return &PlaceOrderResult{Order: entity}, nil
}

// reserve decrements stock item by item. If a reservation loses a race with
// another order the ones already taken are handed back.
func (uc *PlaceOrderUseCase) reserve(ctx context.Context, run *application.Run, lines []domain.LineItem) ([]domain.LineItem, error) {
	reserved := make([]domain.LineItem, 0, len(lines))
	for _, li := range lines {
		if _, err := uc.deps.Ledger.Reserve(ctx, li.ProductID, li.Quantity); err != nil {
			uc.release(ctx, run, "", reserved)
			if errors.Is(err, dominv.ErrInsufficientStock) {
				return nil, apperr.Wrap(apperr.ErrConflict,
					fmt.Errorf("insufficient stock for product %s: %w", li.ProductID, err))
			}
			return nil, apperr.FromDomain(err)
		}
		reserved = append(reserved, li)
	}
	return reserved, nil
}

func (uc *PlaceOrderUseCase) release(ctx context.Context, run *application.Run, orderID string, lines []domain.LineItem) {
	ctx = context.WithoutCancel(ctx)
	for _, li := range lines {
		if _, err := uc.deps.Ledger.Release(ctx, li.ProductID, li.Quantity); err != nil {
			run.Logger().Error("reservation_rollback_failed",
				observability.F("order_id", orderID),
				observability.F("product_id", li.ProductID),
				observability.F("quantity", li.Quantity),
				observability.Err(err),
			)
		}
	}
}

// mergeItems validates line items and folds repeated products into one line.
func mergeItems(in []ItemInput) ([]ItemInput, error) {
	if len(in) == 0 {
		return nil, apperr.Wrap(apperr.ErrValidation, domain.ErrNoItems)
	}
	out := make([]ItemInput, 0, len(in))
	index := make(map[string]int, len(in))
	for _, it := range in {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return nil, apperr.Validation("product id is required")
		}
		if it.Quantity < 1 {
			return nil, apperr.Wrap(apperr.ErrValidation, domain.ErrInvalidQuantity)
		}
		if i, ok := index[id]; ok {
			if it.Quantity > math.MaxInt-out[i].Quantity {
				return nil, apperr.Validation("quantity of product " + id + " is too large")
			}
			out[i].Quantity += it.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, ItemInput{ProductID: id, Quantity: it.Quantity})
	}
	return out, nil
}
