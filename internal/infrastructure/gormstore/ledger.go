package gormstore

import (
	"context"
	"errors"
	"time"

	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ledger stores products in SQL. Reserve is a single conditional UPDATE, so
// the check and the decrement cannot interleave with another writer. Every
// write reads the row back inside its transaction: a failed read rolls the
// write back instead of reporting a committed change as an error.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Create(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID == "" {
		return errors.New("gormstore: product id is required")
	}
	return l.db.WithContext(ctx).Create(toProductModel(p)).Error
}

func (l *Ledger) Get(ctx context.Context, productID string) (*domain.Product, error) {
	return get(l.db.WithContext(ctx), productID)
}

func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	var out *domain.Product
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&productModel{}).
			Where("id = ? AND quantity >= ?", productID, quantity).
			Updates(map[string]any{
				"quantity":   gorm.Expr("quantity - ?", quantity),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		p, err := get(tx, productID)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return domain.ErrInsufficientStock
		}
		out = p
		return nil
	})
	return out, err
}

func (l *Ledger) Release(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return l.update(ctx, productID, map[string]any{
		"quantity":   gorm.Expr("quantity + ?", quantity),
		"updated_at": time.Now().UTC(),
	})
}

func (l *Ledger) SetPrice(ctx context.Context, productID string, price decimal.Decimal) (*domain.Product, error) {
	if err := domain.ValidatePrice(price); err != nil {
		return nil, err
	}
	return l.update(ctx, productID, map[string]any{
		"price":      price,
		"updated_at": time.Now().UTC(),
	})
}

func (l *Ledger) SetQuantity(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	return l.update(ctx, productID, map[string]any{
		"quantity":   quantity,
		"updated_at": time.Now().UTC(),
	})
}

func (l *Ledger) FindByOwner(ctx context.Context, vendorID string) ([]*domain.Product, error) {
	var rows []productModel
	if err := l.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Product, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (l *Ledger) Delete(ctx context.Context, productID, vendorID string) error {
	res := l.db.WithContext(ctx).
		Where("id = ? AND vendor_id = ?", productID, vendorID).
		Delete(&productModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (l *Ledger) update(ctx context.Context, productID string, values map[string]any) (*domain.Product, error) {
	var out *domain.Product
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&productModel{}).Where("id = ?", productID).Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		p, err := get(tx, productID)
		out = p
		return err
	})
	return out, err
}

func get(db *gorm.DB, productID string) (*domain.Product, error) {
	var m productModel
	if err := db.First(&m, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func toProductModel(p *domain.Product) *productModel {
	return &productModel{
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

func (m *productModel) toDomain() *domain.Product {
	return &domain.Product{
		ID:          m.ID,
		VendorID:    m.VendorID,
		Name:        m.Name,
		Description: m.Description,
		Category:    m.Category,
		Unit:        m.Unit,
		Price:       m.Price,
		Quantity:    m.Quantity,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}
