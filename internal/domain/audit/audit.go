package audit

import (
	"context"
	"time"
)

// Kind names what happened to an order.
type Kind string

const (
	KindPlaced        Kind = "placed"
	KindStatusChanged Kind = "status_changed"
	KindRestockFailed Kind = "restock_failed"
)

// Entry is one immutable line in an order's history.
type Entry struct {
	ID         string
	OrderID    string
	Kind       Kind
	ActorID    string
	FromStatus string
	ToStatus   string
	TxDigest   string
	Detail     string
	OccurredAt time.Time
}

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	// FindByOrder returns entries oldest first.
	FindByOrder(ctx context.Context, orderID string) ([]*Entry, error)
}
