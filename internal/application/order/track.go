package order

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	dominv "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseOrderTrack = "order.track"
	useCaseOrderList  = "order.list"
)

type TrackOrderInput struct {
	Caller  principal.Principal
	OrderID string
}

type TrackedItem struct {
	domain.LineItem
	// Product is nil when the product has since been deleted.
	Product *dominv.Product
}

type TrackedOrder struct {
	Order  *domain.Order
	Items  []TrackedItem
	Vendor *principal.Principal
}

// TrackOrderUseCase returns the current snapshot of an order with product
// and vendor detail. It never writes.
type TrackOrderUseCase struct{ base }

func (uc *TrackOrderUseCase) Execute(ctx context.Context, cmd TrackOrderInput) (_ *TrackedOrder, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseOrderTrack, "TrackOrder",
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { run.End(err) }()

	o, err := uc.ownedOrder(ctx, cmd.Caller, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_ACCESS_DENIED")
		return nil, err
	}

	out := &TrackedOrder{Order: o, Items: make([]TrackedItem, len(o.Items))}
	for i, li := range o.Items {
		out.Items[i].LineItem = li
		p, getErr := uc.deps.Ledger.Get(ctx, li.ProductID)
		switch {
		case getErr == nil:
			out.Items[i].Product = p
		case errors.Is(getErr, dominv.ErrNotFound):
		default:
			run.Fail("PRODUCT_LOOKUP_FAILED")
			return nil, apperr.FromDomain(getErr)
		}
	}

	vendor, err := uc.deps.Principals.FindByID(ctx, o.VendorID)
	switch {
	case err == nil:
		out.Vendor = vendor
	case errors.Is(err, principal.ErrNotFound):
		err = nil
	default:
		run.Fail("VENDOR_LOOKUP_FAILED")
		return nil, apperr.FromDomain(err)
	}

	run.Span().SetAttributes(attribute.String("order.status", string(o.Status)))
	return out, nil
}

type ListOrdersInput struct {
	Caller principal.Principal
}

// ListOrdersUseCase lists the caller's orders, newest first.
type ListOrdersUseCase struct{ base }

func (uc *ListOrdersUseCase) Execute(ctx context.Context, cmd ListOrdersInput) (_ []*domain.Order, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseOrderList, "ListOrders",
		attribute.String("order.sender_id", cmd.Caller.ID),
	)
	defer func() { run.End(err) }()

	if !cmd.Caller.Is(principal.RoleSender) {
		run.Fail("SENDER_INVALID")
		return nil, apperr.Unauthorized("must be a sender")
	}
	orders, err := uc.deps.Orders.FindBySender(ctx, cmd.Caller.ID)
	if err != nil {
		run.Fail("REPO_QUERY_FAILED")
		return nil, apperr.FromDomain(err)
	}
	return orders, nil
}
