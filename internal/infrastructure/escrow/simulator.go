package escrow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/escrow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownEscrow    = errors.New("escrow: unknown escrow")
	ErrEscrowClosed     = errors.New("escrow: escrow is no longer locked")
	ErrUnlockKeyInvalid = errors.New("escrow: unlock key does not match")
	ErrAmountMismatch   = errors.New("escrow: amount does not match locked funds")
	ErrNotEscrowOwner   = errors.New("escrow: caller does not own escrow")
	ErrInvalidRequest   = errors.New("escrow: invalid request")
)

type lockState int

const (
	locked lockState = iota
	released
	refunded
)

type lockedFunds struct {
	sender    string
	vendor    string
	verifier  string
	amount    decimal.Decimal
	currency  string
	unlockKey string
	proofHash string
	state     lockState
}

// Simulator is an in-process escrow chain for local runs and tests. It keeps
// the same rules an on-chain escrow enforces: funds stay locked until the
// verifier presents the unlock key, and only the sender may reclaim them.
type Simulator struct {
	mu      sync.Mutex
	latency time.Duration
	escrows map[string]*lockedFunds
}

// NewSimulator returns a simulator that waits latency before answering each
// call, or answers immediately when latency is zero.
func NewSimulator(latency time.Duration) *Simulator {
	return &Simulator{
		latency: latency,
		escrows: make(map[string]*lockedFunds),
	}
}

func (s *Simulator) CreateEscrow(ctx context.Context, req domain.CreateRequest) (string, domain.Receipt, error) {
	if err := s.wait(ctx); err != nil {
		return "", domain.Receipt{}, err
	}
	if strings.TrimSpace(req.SenderWallet) == "" || strings.TrimSpace(req.VendorWallet) == "" || !req.Amount.IsPositive() {
		return "", domain.Receipt{}, ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.escrows[id] = &lockedFunds{
		sender:    req.SenderWallet,
		vendor:    req.VendorWallet,
		verifier:  req.VerifierWallet,
		amount:    req.Amount,
		currency:  req.Currency,
		unlockKey: req.UnlockKey,
	}
	return id, newReceipt(), nil
}

func (s *Simulator) VerifyAndRelease(ctx context.Context, req domain.ReleaseRequest) (domain.Receipt, error) {
	if err := s.wait(ctx); err != nil {
		return domain.Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lockedEscrow(req.EscrowID)
	if err != nil {
		return domain.Receipt{}, err
	}
	if e.unlockKey != req.UnlockKey {
		return domain.Receipt{}, ErrUnlockKeyInvalid
	}
	if !req.Amount.IsZero() && !e.amount.Equal(req.Amount) {
		return domain.Receipt{}, ErrAmountMismatch
	}
	e.state = released
	return newReceipt(), nil
}

func (s *Simulator) CancelEscrow(ctx context.Context, req domain.CancelRequest) (domain.Receipt, error) {
	if err := s.wait(ctx); err != nil {
		return domain.Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lockedEscrow(req.EscrowID)
	if err != nil {
		return domain.Receipt{}, err
	}
	if req.SenderWallet != "" && req.SenderWallet != e.sender {
		return domain.Receipt{}, ErrNotEscrowOwner
	}
	e.state = refunded
	return newReceipt(), nil
}

func (s *Simulator) UploadProof(ctx context.Context, req domain.ProofRequest) (domain.Receipt, error) {
	if err := s.wait(ctx); err != nil {
		return domain.Receipt{}, err
	}
	if strings.TrimSpace(req.ProofHash) == "" {
		return domain.Receipt{}, ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lockedEscrow(req.EscrowID)
	if err != nil {
		return domain.Receipt{}, err
	}
	if req.VendorWallet != "" && req.VendorWallet != e.vendor {
		return domain.Receipt{}, ErrNotEscrowOwner
	}
	e.proofHash = req.ProofHash
	return newReceipt(), nil
}

func (s *Simulator) lockedEscrow(id string) (*lockedFunds, error) {
	e, ok := s.escrows[id]
	if !ok {
		return nil, ErrUnknownEscrow
	}
	if e.state != locked {
		return nil, ErrEscrowClosed
	}
	return e, nil
}

func (s *Simulator) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func newReceipt() domain.Receipt {
	return domain.Receipt{Digest: strings.ReplaceAll(uuid.NewString(), "-", "")}
}
