package gormstore

import (
	"context"

	"github.com/Zhima-Mochi/escrowshop/internal/domain/audit"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuditLog struct {
	db *gorm.DB
}

func NewAuditLog(db *gorm.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Append ignores an entry whose id is already stored.
func (s *AuditLog) Append(ctx context.Context, e *audit.Entry) error {
	if e == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_id"}},
		DoNothing: true,
	}).Create(&auditModel{
		EntryID:    e.ID,
		OrderID:    e.OrderID,
		Kind:       string(e.Kind),
		ActorID:    e.ActorID,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		TxDigest:   e.TxDigest,
		Detail:     e.Detail,
		OccurredAt: e.OccurredAt,
	}).Error
}

func (s *AuditLog) FindByOrder(ctx context.Context, orderID string) ([]*audit.Entry, error) {
	var rows []auditModel
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*audit.Entry, 0, len(rows))
	for _, m := range rows {
		out = append(out, &audit.Entry{
			ID:         m.EntryID,
			OrderID:    m.OrderID,
			Kind:       audit.Kind(m.Kind),
			ActorID:    m.ActorID,
			FromStatus: m.FromStatus,
			ToStatus:   m.ToStatus,
			TxDigest:   m.TxDigest,
			Detail:     m.Detail,
			OccurredAt: m.OccurredAt.UTC(),
		})
	}
	return out, nil
}
