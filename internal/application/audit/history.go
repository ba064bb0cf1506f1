package audit

import (
	"context"

	"github.com/Zhima-Mochi/escrowshop/internal/application"
	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	domaudit "github.com/Zhima-Mochi/escrowshop/internal/domain/audit"
	domorder "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseHistory = "audit.history"

// History serves an order's audit trail to its sender or vendor.
type History struct {
	orders domorder.Repository
	repo   domaudit.Repository
	inst   *application.Instrument
}

func NewHistory(orders domorder.Repository, repo domaudit.Repository, inst *application.Instrument) *History {
	return &History{orders: orders, repo: repo, inst: inst}
}

func (h *History) Execute(ctx context.Context, caller principal.Principal, orderID string) (_ []*domaudit.Entry, err error) {
	ctx, run := h.inst.Begin(ctx, useCaseHistory, "OrderHistory", attribute.String("order.id", orderID))
	defer func() { run.End(err) }()

	o, err := h.orders.FindByID(ctx, orderID)
	if err != nil {
		run.Fail("ORDER_LOOKUP_FAILED")
		return nil, apperr.FromDomain(err)
	}
	if caller.ID == "" || (caller.ID != o.SenderID && caller.ID != o.VendorID) {
		run.Fail("ORDER_ACCESS_DENIED")
		return nil, apperr.Unauthorized("unauthorized")
	}
	entries, err := h.repo.FindByOrder(ctx, o.ID)
	if err != nil {
		run.Fail("REPO_QUERY_FAILED")
		return nil, err
	}
	return entries, nil
}
