package inventory

import "time"

const (
	FailureReasonNotFound         = "not_found"
	FailureReasonInvalidQuantity  = "invalid_quantity"
	FailureReasonPersistenceError = "persist_error"
)

// RestockFailedEvent is emitted when a cancelled order's stock could not be
// returned to the ledger and needs manual reconciliation.
type RestockFailedEvent struct {
	OrderID    string
	ProductID  string
	Quantity   int
	Reason     string
	Error      string
	OccurredAt time.Time
}

func (RestockFailedEvent) EventName() string { return "inventory.restock_failed" }

func NewRestockFailedEvent(orderID, productID string, quantity int, reason string, err error) RestockFailedEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return RestockFailedEvent{
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   quantity,
		Reason:     reason,
		Error:      msg,
		OccurredAt: time.Now().UTC(),
	}
}
