package inventory

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must not be negative")
	ErrInvalidPrice      = errors.New("inventory: price must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrNameRequired      = errors.New("inventory: name is required")
)

const DefaultUnit = "unit"

type Product struct {
	ID          string
	VendorID    string
	Name        string
	Description string
	Category    string
	Unit        string
	Price       decimal.Decimal
	Quantity    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewProduct(id, vendorID, name string, price decimal.Decimal, quantity int) (*Product, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	if err := ValidatePrice(price); err != nil {
		return nil, err
	}
	if err := ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Product{
		ID:        id,
		VendorID:  vendorID,
		Name:      strings.TrimSpace(name),
		Unit:      DefaultUnit,
		Price:     price,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func ValidatePrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

func ValidateQuantity(q int) error {
	if q < 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// OwnedBy reports whether vendorID owns the product.
func (p *Product) OwnedBy(vendorID string) bool {
	return p != nil && vendorID != "" && p.VendorID == vendorID
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
