package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/Zhima-Mochi/escrowshop/internal/application"
	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	dominv "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	inventoryService  = "inventory-service"
	useCaseAdd        = "inventory.add_product"
	useCaseStock      = "inventory.update_stock"
	useCasePrice      = "inventory.update_price"
	useCaseDelete     = "inventory.delete_product"
	useCaseListVendor = "inventory.list_vendor_products"
)

var errNotOwned = errors.New("product not found or not owned by vendor")

type IDGenerator interface {
	NewID() string
}

// Catalogue lets vendors manage their own products. Every mutation goes
// through the ledger so stock invariants hold for concurrent orders.
type Catalogue struct {
	ledger dominv.Ledger
	ids    IDGenerator
	inst   *application.Instrument
}

func NewCatalogue(ledger dominv.Ledger, ids IDGenerator, tel observability.Observability) *Catalogue {
	return &Catalogue{
		ledger: ledger,
		ids:    ids,
		inst:   application.NewInstrument(inventoryService, tel),
	}
}

type AddProductInput struct {
	Caller      principal.Principal
	Name        string
	Description string
	Category    string
	Unit        string
	Price       decimal.Decimal
	Quantity    int
}

func (c *Catalogue) AddProduct(ctx context.Context, cmd AddProductInput) (_ *dominv.Product, err error) {
	ctx, run := c.inst.Begin(ctx, useCaseAdd, "AddProduct", attribute.String("vendor.id", cmd.Caller.ID))
	defer func() { run.End(err) }()

	if !cmd.Caller.Is(principal.RoleVendor) {
		run.Fail("VENDOR_INVALID")
		return nil, apperr.Unauthorized("must be a vendor")
	}
	p, err := dominv.NewProduct(c.ids.NewID(), cmd.Caller.ID, cmd.Name, cmd.Price, cmd.Quantity)
	if err != nil {
		run.Fail("PRODUCT_INVALID")
		return nil, apperr.FromDomain(err)
	}
	p.Description = strings.TrimSpace(cmd.Description)
	p.Category = strings.TrimSpace(cmd.Category)
	if u := strings.TrimSpace(cmd.Unit); u != "" {
		p.Unit = u
	}

	if err := c.ledger.Create(ctx, p); err != nil {
		run.Fail("REPO_INSERT_FAILED")
		return nil, apperr.FromDomain(err)
	}
	run.Annotate(observability.F("product_id", p.ID))
	return p, nil
}

type UpdateStockInput struct {
	Caller    principal.Principal
	ProductID string
	Quantity  int
}

func (c *Catalogue) UpdateStock(ctx context.Context, cmd UpdateStockInput) (_ *dominv.Product, err error) {
	ctx, run := c.inst.Begin(ctx, useCaseStock, "UpdateStock", attribute.String("product.id", cmd.ProductID))
	defer func() { run.End(err) }()

	if err := dominv.ValidateQuantity(cmd.Quantity); err != nil {
		run.Fail("QUANTITY_INVALID")
		return nil, apperr.FromDomain(err)
	}
	if _, err := c.owned(ctx, cmd.Caller, cmd.ProductID); err != nil {
		run.Fail("PRODUCT_ACCESS_DENIED")
		return nil, err
	}
	p, err := c.ledger.SetQuantity(ctx, cmd.ProductID, cmd.Quantity)
	if err != nil {
		run.Fail("REPO_UPDATE_FAILED")
		return nil, apperr.FromDomain(err)
	}
	return p, nil
}

type UpdatePriceInput struct {
	Caller    principal.Principal
	ProductID string
	Price     decimal.Decimal
}

// UpdatePrice changes the price for future orders. Placed orders keep the
// unit price captured at placement.
func (c *Catalogue) UpdatePrice(ctx context.Context, cmd UpdatePriceInput) (_ *dominv.Product, err error) {
	ctx, run := c.inst.Begin(ctx, useCasePrice, "UpdatePrice", attribute.String("product.id", cmd.ProductID))
	defer func() { run.End(err) }()

	if err := dominv.ValidatePrice(cmd.Price); err != nil {
		run.Fail("PRICE_INVALID")
		return nil, apperr.FromDomain(err)
	}
	if _, err := c.owned(ctx, cmd.Caller, cmd.ProductID); err != nil {
		run.Fail("PRODUCT_ACCESS_DENIED")
		return nil, err
	}
	p, err := c.ledger.SetPrice(ctx, cmd.ProductID, cmd.Price)
	if err != nil {
		run.Fail("REPO_UPDATE_FAILED")
		return nil, apperr.FromDomain(err)
	}
	return p, nil
}

func (c *Catalogue) DeleteProduct(ctx context.Context, caller principal.Principal, productID string) (err error) {
	ctx, run := c.inst.Begin(ctx, useCaseDelete, "DeleteProduct", attribute.String("product.id", productID))
	defer func() { run.End(err) }()

	if _, err := c.owned(ctx, caller, productID); err != nil {
		run.Fail("PRODUCT_ACCESS_DENIED")
		return err
	}
	if err := c.ledger.Delete(ctx, productID, caller.ID); err != nil {
		run.Fail("REPO_DELETE_FAILED")
		if errors.Is(err, dominv.ErrNotFound) {
			return apperr.Wrap(apperr.ErrNotFound, errNotOwned)
		}
		return apperr.FromDomain(err)
	}
	return nil
}

func (c *Catalogue) ListVendorProducts(ctx context.Context, caller principal.Principal) (_ []*dominv.Product, err error) {
	ctx, run := c.inst.Begin(ctx, useCaseListVendor, "ListVendorProducts", attribute.String("vendor.id", caller.ID))
	defer func() { run.End(err) }()

	if !caller.Is(principal.RoleVendor) {
		run.Fail("VENDOR_INVALID")
		return nil, apperr.Unauthorized("must be a vendor")
	}
	products, err := c.ledger.FindByOwner(ctx, caller.ID)
	if err != nil {
		run.Fail("REPO_QUERY_FAILED")
		return nil, apperr.FromDomain(err)
	}
	return products, nil
}

func (c *Catalogue) owned(ctx context.Context, caller principal.Principal, productID string) (*dominv.Product, error) {
	if !caller.Is(principal.RoleVendor) {
		return nil, apperr.Unauthorized("must be a vendor")
	}
	p, err := c.ledger.Get(ctx, productID)
	if errors.Is(err, dominv.ErrNotFound) || (err == nil && !p.OwnedBy(caller.ID)) {
		return nil, apperr.Wrap(apperr.ErrNotFound, errNotOwned)
	}
	if err != nil {
		return nil, apperr.FromDomain(err)
	}
	return p, nil
}
