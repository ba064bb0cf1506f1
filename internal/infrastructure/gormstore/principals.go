package gormstore

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Principals struct {
	db *gorm.DB
}

func NewPrincipals(db *gorm.DB) *Principals {
	return &Principals{db: db}
}

func (s *Principals) FindByID(ctx context.Context, id string) (*principal.Principal, error) {
	var m principalModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, principal.ErrNotFound
		}
		return nil, err
	}
	return &principal.Principal{
		ID:            m.ID,
		Role:          principal.Role(m.Role),
		Name:          m.Name,
		WalletAddress: m.WalletAddress,
	}, nil
}

func (s *Principals) Upsert(ctx context.Context, p *principal.Principal) error {
	if p == nil || p.ID == "" {
		return principal.ErrNotFound
	}
	m := principalModel{
		ID:            p.ID,
		Role:          string(p.Role),
		Name:          p.Name,
		WalletAddress: p.WalletAddress,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "name", "wallet_address", "updated_at"}),
	}).Create(&m).Error
}
