package escrow

import (
	"context"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/escrow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lock(t *testing.T, s *Simulator) string {
	t.Helper()
	id, receipt, err := s.CreateEscrow(context.Background(), domain.CreateRequest{
		SenderWallet: "0xsender",
		VendorWallet: "0xvendor",
		Amount:       decimal.NewFromInt(400),
		Currency:     "SUI",
		UnlockKey:    "secret",
	})
	require.NoError(t, err)
	require.NotEmpty(t, receipt.Digest)
	return id
}

func TestSimulatorReleaseNeedsUnlockKey(t *testing.T) {
	ctx := context.Background()
	s := NewSimulator(0)
	id := lock(t, s)

	_, err := s.VerifyAndRelease(ctx, domain.ReleaseRequest{EscrowID: id, UnlockKey: "wrong"})
	require.ErrorIs(t, err, ErrUnlockKeyInvalid)

	_, err = s.VerifyAndRelease(ctx, domain.ReleaseRequest{EscrowID: id, UnlockKey: "secret", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrAmountMismatch)

	_, err = s.VerifyAndRelease(ctx, domain.ReleaseRequest{EscrowID: id, UnlockKey: "secret", Amount: decimal.NewFromInt(400)})
	require.NoError(t, err)

	_, err = s.CancelEscrow(ctx, domain.CancelRequest{EscrowID: id, SenderWallet: "0xsender"})
	require.ErrorIs(t, err, ErrEscrowClosed)
}

func TestSimulatorCancelOnlyBySender(t *testing.T) {
	ctx := context.Background()
	s := NewSimulator(0)
	id := lock(t, s)

	_, err := s.CancelEscrow(ctx, domain.CancelRequest{EscrowID: id, SenderWallet: "0xother"})
	require.ErrorIs(t, err, ErrNotEscrowOwner)

	_, err = s.CancelEscrow(ctx, domain.CancelRequest{EscrowID: id, SenderWallet: "0xsender"})
	require.NoError(t, err)

	_, err = s.CancelEscrow(ctx, domain.CancelRequest{EscrowID: "missing"})
	require.ErrorIs(t, err, ErrUnknownEscrow)
}

func TestSimulatorUploadProof(t *testing.T) {
	ctx := context.Background()
	s := NewSimulator(0)
	id := lock(t, s)

	_, err := s.UploadProof(ctx, domain.ProofRequest{EscrowID: id})
	require.ErrorIs(t, err, ErrInvalidRequest)

	receipt, err := s.UploadProof(ctx, domain.ProofRequest{EscrowID: id, VendorWallet: "0xvendor", ProofHash: "bafy"})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.Digest)
}

func TestSimulatorLatencyRespectsContext(t *testing.T) {
	s := NewSimulator(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := s.CreateEscrow(ctx, domain.CreateRequest{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
