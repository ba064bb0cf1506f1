package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: unexpected order state")
	ErrAlreadyExists          = errors.New("order: already exists")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrNoItems                = errors.New("order: at least one line item is required")
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrMixedVendors           = errors.New("order: all products must be from the same vendor")
)

type Status string

const (
	StatusPending       Status = "PENDING"
	StatusReceived      Status = "RECEIVED"
	StatusPrepared      Status = "PREPARED"
	StatusProofUploaded Status = "PROOF_UPLOADED"
	StatusDelivered     Status = "DELIVERED"
	StatusCancelled     Status = "CANCELLED"
)

type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID              string
	SenderID        string
	VendorID        string
	Items           []LineItem
	TotalPrice      decimal.Decimal
	Currency        string
	Status          Status
	EscrowID        string
	UnlockKey       string
	VerifierAddress string
	ProofURL        string
	IdempotencyKey  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Changes carries the fields a transition writes alongside the new status.
// Empty values leave the stored field untouched.
type Changes struct {
	EscrowID string
	ProofURL string
}

func New(id, senderID, vendorID string, items []LineItem, verifierAddress, currency, unlockKey string) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	now := time.Now().UTC()
	return &Order{
		ID:              id,
		SenderID:        senderID,
		VendorID:        vendorID,
		Items:           append([]LineItem(nil), items...),
		TotalPrice:      Total(items),
		Currency:        currency,
		Status:          StatusPending,
		UnlockKey:       unlockKey,
		VerifierAddress: verifierAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Total sums unit price × quantity over items.
func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Advance moves the order to next when the state machine allows it.
func (o *Order) Advance(next Status, ch Changes) error {
	if !CanTransition(o.Status, next) {
		return ErrInvalidStateTransition
	}
	o.Status = next
	if ch.EscrowID != "" {
		o.EscrowID = ch.EscrowID
	}
	if ch.ProofURL != "" {
		o.ProofURL = ch.ProofURL
	}
	o.touch()
	return nil
}

func (o *Order) IsTerminal() bool {
	st, err := StateOf(o.Status)
	return err == nil && st.Terminal()
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	return &c
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
