package order

import "context"

type Repository interface {
	Insert(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	FindBySender(ctx context.Context, senderID string) ([]*Order, error)
	FindByVendor(ctx context.Context, vendorID string) ([]*Order, error)
	FindByIdempotency(ctx context.Context, senderID, key string) (*Order, error)
	// Transition writes next only if the stored status still equals expected,
	// returning ErrConflict otherwise.
	Transition(ctx context.Context, id string, expected, next Status, ch Changes) (*Order, error)
}
