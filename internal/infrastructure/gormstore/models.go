package gormstore

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type productModel struct {
	ID          string          `gorm:"size:64;primaryKey"`
	VendorID    string          `gorm:"size:64;index;not null"`
	Name        string          `gorm:"size:255;not null"`
	Description string          `gorm:"type:text"`
	Category    string          `gorm:"size:128"`
	Unit        string          `gorm:"size:32"`
	Price       decimal.Decimal `gorm:"type:varchar(64);not null"`
	Quantity    int             `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (productModel) TableName() string { return "products" }

type orderModel struct {
	ID              string          `gorm:"size:64;primaryKey"`
	SenderID        string          `gorm:"size:64;index;uniqueIndex:idx_orders_sender_idempotency;not null"`
	VendorID        string          `gorm:"size:64;index;not null"`
	TotalPrice      decimal.Decimal `gorm:"type:varchar(64);not null"`
	Currency        string          `gorm:"size:16"`
	Status          string          `gorm:"size:32;index;not null"`
	EscrowID        string          `gorm:"size:128"`
	UnlockKey       string          `gorm:"size:128"`
	VerifierAddress string          `gorm:"size:128"`
	ProofURL        string          `gorm:"size:512"`
	// Nil when the sender sent no key, so unkeyed orders never collide.
	IdempotencyKey *string `gorm:"size:128;uniqueIndex:idx_orders_sender_idempotency"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Items          []orderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (orderModel) TableName() string { return "orders" }

type orderItemModel struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	OrderID   string          `gorm:"size:64;index;not null"`
	Position  int             `gorm:"not null"`
	ProductID string          `gorm:"size:64;not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:varchar(64);not null"`
}

func (orderItemModel) TableName() string { return "order_items" }

type principalModel struct {
	ID            string `gorm:"size:64;primaryKey"`
	Role          string `gorm:"size:16;index;not null"`
	Name          string `gorm:"size:255"`
	WalletAddress string `gorm:"size:128"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (principalModel) TableName() string { return "principals" }

type auditModel struct {
	Seq        uint   `gorm:"primaryKey;autoIncrement"`
	EntryID    string `gorm:"size:64;uniqueIndex;not null"`
	OrderID    string `gorm:"size:64;index;not null"`
	Kind       string `gorm:"size:32;not null"`
	ActorID    string `gorm:"size:64"`
	FromStatus string `gorm:"size:32"`
	ToStatus   string `gorm:"size:32"`
	TxDigest   string `gorm:"size:128"`
	Detail     string `gorm:"type:text"`
	OccurredAt time.Time
}

func (auditModel) TableName() string { return "audit_entries" }

// AutoMigrate creates or updates every table the store uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&productModel{},
		&orderModel{},
		&orderItemModel{},
		&principalModel{},
		&auditModel{},
	)
}
