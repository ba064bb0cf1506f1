package gormstore

import (
	"context"
	"errors"
	"time"

	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	"gorm.io/gorm"
)

// Orders persists orders and their line items. Transition is a conditional
// UPDATE on (id, status) and is the only path that changes an order status.
type Orders struct {
	db *gorm.DB
}

func NewOrders(db *gorm.DB) *Orders {
	return &Orders{db: db}
}

func (s *Orders) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return errors.New("gormstore: order id is required")
	}
	m := toOrderModel(o)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		q := tx.Model(&orderModel{}).Where("id = ?", o.ID)
		if m.IdempotencyKey != nil {
			q = q.Or("sender_id = ? AND idempotency_key = ?", o.SenderID, *m.IdempotencyKey)
		}
		if err := q.Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrAlreadyExists
		}
		return tx.Create(m).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (s *Orders) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Orders) FindByIdempotency(ctx context.Context, senderID, key string) (*domain.Order, error) {
	if key == "" {
		return nil, domain.ErrNotFound
	}
	return s.first(ctx, "sender_id = ? AND idempotency_key = ?", senderID, key)
}

func (s *Orders) FindBySender(ctx context.Context, senderID string) ([]*domain.Order, error) {
	return s.find(ctx, "sender_id = ?", senderID)
}

func (s *Orders) FindByVendor(ctx context.Context, vendorID string) ([]*domain.Order, error) {
	return s.find(ctx, "vendor_id = ?", vendorID)
}

func (s *Orders) Transition(ctx context.Context, id string, expected, next domain.Status, ch domain.Changes) (*domain.Order, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != expected {
		return nil, domain.ErrConflict
	}
	if !domain.CanTransition(expected, next) {
		return nil, domain.ErrInvalidStateTransition
	}

	values := map[string]any{
		"status":     string(next),
		"updated_at": time.Now().UTC(),
	}
	if ch.EscrowID != "" {
		values["escrow_id"] = ch.EscrowID
	}
	if ch.ProofURL != "" {
		values["proof_url"] = ch.ProofURL
	}
	res := s.db.WithContext(ctx).
		Model(&orderModel{}).
		Where("id = ? AND status = ?", id, string(expected)).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrConflict
	}
	return s.FindByID(ctx, id)
}

func (s *Orders) first(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	var m orderModel
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where(query, args...).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (s *Orders) find(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	var rows []orderModel
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where(query, args...).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Order, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func toOrderModel(o *domain.Order) *orderModel {
	m := &orderModel{
		ID:              o.ID,
		SenderID:        o.SenderID,
		VendorID:        o.VendorID,
		TotalPrice:      o.TotalPrice,
		Currency:        o.Currency,
		Status:          string(o.Status),
		EscrowID:        o.EscrowID,
		UnlockKey:       o.UnlockKey,
		VerifierAddress: o.VerifierAddress,
		ProofURL:        o.ProofURL,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.IdempotencyKey != "" {
		key := o.IdempotencyKey
		m.IdempotencyKey = &key
	}
	m.Items = make([]orderItemModel, 0, len(o.Items))
	for i, it := range o.Items {
		m.Items = append(m.Items, orderItemModel{
			OrderID:   o.ID,
			Position:  i,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return m
}

func (m *orderModel) toDomain() *domain.Order {
	o := &domain.Order{
		ID:              m.ID,
		SenderID:        m.SenderID,
		VendorID:        m.VendorID,
		TotalPrice:      m.TotalPrice,
		Currency:        m.Currency,
		Status:          domain.Status(m.Status),
		EscrowID:        m.EscrowID,
		UnlockKey:       m.UnlockKey,
		VerifierAddress: m.VerifierAddress,
		ProofURL:        m.ProofURL,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
	if m.IdempotencyKey != nil {
		o.IdempotencyKey = *m.IdempotencyKey
	}
	o.Items = make([]domain.LineItem, 0, len(m.Items))
	for _, it := range m.Items {
		o.Items = append(o.Items, domain.LineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return o
}
