package escrow

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrUnavailable = errors.New("escrow: gateway unavailable")

// Receipt identifies the transaction that carried out an escrow operation.
type Receipt struct {
	Digest string `json:"txDigest"`
}

type CreateRequest struct {
	SenderKey      string
	SenderWallet   string
	VendorWallet   string
	VerifierWallet string
	Amount         decimal.Decimal
	Currency       string
	UnlockKey      string
}

type ReleaseRequest struct {
	VerifierKey    string
	VerifierWallet string
	EscrowID       string
	UnlockKey      string
	Amount         decimal.Decimal
}

type CancelRequest struct {
	SenderKey    string
	SenderWallet string
	EscrowID     string
}

type ProofRequest struct {
	VendorKey    string
	VendorWallet string
	EscrowID     string
	ProofHash    string
}

// Gateway is the trustless escrow capability. Every call is a remote
// submission; implementations must not retry on their own.
type Gateway interface {
	CreateEscrow(ctx context.Context, req CreateRequest) (string, Receipt, error)
	VerifyAndRelease(ctx context.Context, req ReleaseRequest) (Receipt, error)
	CancelEscrow(ctx context.Context, req CancelRequest) (Receipt, error)
	UploadProof(ctx context.Context, req ProofRequest) (Receipt, error)
}
