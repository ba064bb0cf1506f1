package order

import "time"

// OrderPlacedEvent is emitted once a PENDING order and its stock reservation are committed.
type OrderPlacedEvent struct {
	OrderID    string
	SenderID   string
	VendorID   string
	Total      string
	Items      int
	OccurredAt time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:    o.ID,
		SenderID:   o.SenderID,
		VendorID:   o.VendorID,
		Total:      o.TotalPrice.String(),
		Items:      len(o.Items),
		OccurredAt: time.Now().UTC(),
	}
}

// StatusChangedEvent is emitted after every committed lifecycle transition.
type StatusChangedEvent struct {
	OrderID    string
	ActorID    string
	From       Status
	To         Status
	EscrowID   string
	TxDigest   string
	OccurredAt time.Time
}

func (StatusChangedEvent) EventName() string { return "order.status_changed" }

func NewStatusChangedEvent(o *Order, actorID string, from Status, txDigest string) StatusChangedEvent {
	return StatusChangedEvent{
		OrderID:    o.ID,
		ActorID:    actorID,
		From:       from,
		To:         o.Status,
		EscrowID:   o.EscrowID,
		TxDigest:   txDigest,
		OccurredAt: time.Now().UTC(),
	}
}
