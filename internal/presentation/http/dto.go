package httppresentation

import (
	"time"

	appOrder "github.com/Zhima-Mochi/escrowshop/internal/application/order"
	domaudit "github.com/Zhima-Mochi/escrowshop/internal/domain/audit"
	dominv "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/shopspring/decimal"
)

type lineItemDTO struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type orderDTO struct {
	ID              string          `json:"id"`
	SenderID        string          `json:"sender_id"`
	VendorID        string          `json:"vendor_id"`
	Items           []lineItemDTO   `json:"items"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Currency        string          `json:"currency"`
	Status          domorder.Status `json:"status"`
	EscrowID        string          `json:"escrow_id,omitempty"`
	VerifierAddress string          `json:"verifier_address"`
	ProofURL        string          `json:"proof_url,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toOrderDTO(o *domorder.Order) orderDTO {
	items := make([]lineItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, lineItemDTO{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		})
	}
	return orderDTO{
		ID:              o.ID,
		SenderID:        o.SenderID,
		VendorID:        o.VendorID,
		Items:           items,
		TotalPrice:      o.TotalPrice,
		Currency:        o.Currency,
		Status:          o.Status,
		EscrowID:        o.EscrowID,
		VerifierAddress: o.VerifierAddress,
		ProofURL:        o.ProofURL,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderDTOs(orders []*domorder.Order) []orderDTO {
	out := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderDTO(o))
	}
	return out
}

type productDTO struct {
	ID          string          `json:"id"`
	VendorID    string          `json:"vendor_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Unit        string          `json:"unit"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toProductDTO(p *dominv.Product) productDTO {
	return productDTO{
		ID:          p.ID,
		VendorID:    p.VendorID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Unit:        p.Unit,
		Price:       p.Price,
		Quantity:    p.Quantity,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type vendorDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

type trackedItemDTO struct {
	lineItemDTO
	Product *productDTO `json:"product,omitempty"`
}

type trackedOrderDTO struct {
	orderDTO
	Items  []trackedItemDTO `json:"items"`
	Vendor *vendorDTO       `json:"vendor,omitempty"`
}

func toTrackedOrderDTO(t *appOrder.TrackedOrder) trackedOrderDTO {
	out := trackedOrderDTO{orderDTO: toOrderDTO(t.Order)}
	out.Items = make([]trackedItemDTO, 0, len(t.Items))
	for _, it := range t.Items {
		item := trackedItemDTO{lineItemDTO: lineItemDTO{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		}}
		if it.Product != nil {
			p := toProductDTO(it.Product)
			item.Product = &p
		}
		out.Items = append(out.Items, item)
	}
	if t.Vendor != nil {
		out.Vendor = toVendorDTO(t.Vendor)
	}
	return out
}

func toVendorDTO(p *principal.Principal) *vendorDTO {
	return &vendorDTO{ID: p.ID, Name: p.Name, WalletAddress: p.WalletAddress}
}

type auditEntryDTO struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	ActorID    string    `json:"actor_id,omitempty"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	TxDigest   string    `json:"tx_digest,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func toAuditDTOs(entries []*domaudit.Entry) []auditEntryDTO {
	out := make([]auditEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryDTO{
			ID:         e.ID,
			Kind:       string(e.Kind),
			ActorID:    e.ActorID,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			TxDigest:   e.TxDigest,
			Detail:     e.Detail,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}
