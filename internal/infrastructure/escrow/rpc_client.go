package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/escrow"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	MethodCreate           = "escrow_create"
	MethodVerifyAndRelease = "escrow_verifyAndRelease"
	MethodCancel           = "escrow_cancel"
	MethodUploadProof      = "escrow_uploadProof"
)

// ErrRPC marks an error object returned by the escrow node.
var ErrRPC = errors.New("escrow: rpc error")

// RPCClient talks JSON-RPC 2.0 to an escrow node. It never retries; the
// caller bounds each call with its context.
type RPCClient struct {
	baseURL   string
	authToken string
	http      *http.Client
	nextID    atomic.Uint64
}

type RPCOption func(*RPCClient)

// WithHTTPClient replaces the default otelhttp-instrumented client.
func WithHTTPClient(c *http.Client) RPCOption {
	return func(r *RPCClient) {
		if c != nil {
			r.http = c
		}
	}
}

func NewRPCClient(baseURL, authToken string, timeout time.Duration, opts ...RPCOption) (*RPCClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("escrow: rpc url is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &RPCClient{
		baseURL:   baseURL,
		authToken: strings.TrimSpace(authToken),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type createParams struct {
	Sender    string `json:"sender"`
	SenderKey string `json:"senderKey"`
	Vendor    string `json:"vendor"`
	Verifier  string `json:"verifier"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	UnlockKey string `json:"unlockKey"`
}

type createResult struct {
	EscrowID string `json:"escrowId"`
	TxDigest string `json:"txDigest"`
}

type releaseParams struct {
	Verifier    string `json:"verifier"`
	VerifierKey string `json:"verifierKey"`
	EscrowID    string `json:"escrowId"`
	UnlockKey   string `json:"unlockKey"`
	Amount      string `json:"amount"`
}

type cancelParams struct {
	Sender    string `json:"sender"`
	SenderKey string `json:"senderKey"`
	EscrowID  string `json:"escrowId"`
}

type proofParams struct {
	Vendor    string `json:"vendor"`
	VendorKey string `json:"vendorKey"`
	EscrowID  string `json:"escrowId"`
	ProofHash string `json:"proofHash"`
}

func (c *RPCClient) CreateEscrow(ctx context.Context, req domain.CreateRequest) (string, domain.Receipt, error) {
	var out createResult
	err := c.call(ctx, MethodCreate, []createParams{{
		Sender:    req.SenderWallet,
		SenderKey: req.SenderKey,
		Vendor:    req.VendorWallet,
		Verifier:  req.VerifierWallet,
		Amount:    req.Amount.String(),
		Currency:  req.Currency,
		UnlockKey: req.UnlockKey,
	}}, &out)
	if err != nil {
		return "", domain.Receipt{}, err
	}
	if out.EscrowID == "" {
		return "", domain.Receipt{}, fmt.Errorf("%w: %s returned no escrow id", ErrRPC, MethodCreate)
	}
	return out.EscrowID, domain.Receipt{Digest: out.TxDigest}, nil
}

func (c *RPCClient) VerifyAndRelease(ctx context.Context, req domain.ReleaseRequest) (domain.Receipt, error) {
	var out domain.Receipt
	err := c.call(ctx, MethodVerifyAndRelease, []releaseParams{{
		Verifier:    req.VerifierWallet,
		VerifierKey: req.VerifierKey,
		EscrowID:    req.EscrowID,
		UnlockKey:   req.UnlockKey,
		Amount:      req.Amount.String(),
	}}, &out)
	return out, err
}

func (c *RPCClient) CancelEscrow(ctx context.Context, req domain.CancelRequest) (domain.Receipt, error) {
	var out domain.Receipt
	err := c.call(ctx, MethodCancel, []cancelParams{{
		Sender:    req.SenderWallet,
		SenderKey: req.SenderKey,
		EscrowID:  req.EscrowID,
	}}, &out)
	return out, err
}

func (c *RPCClient) UploadProof(ctx context.Context, req domain.ProofRequest) (domain.Receipt, error) {
	var out domain.Receipt
	err := c.call(ctx, MethodUploadProof, []proofParams{{
		Vendor:    req.VendorWallet,
		VendorKey: req.VendorKey,
		EscrowID:  req.EscrowID,
		ProofHash: req.ProofHash,
	}}, &out)
	return out, err
}

func (c *RPCClient) call(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)
	buf, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("escrow rpc %s failed: status=%d body=%s", method, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("escrow rpc %s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: %s: %s (code %d)", ErrRPC, method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if out == nil {
		return nil
	}
	if len(rpcResp.Result) == 0 {
		return fmt.Errorf("%w: %s returned empty result", ErrRPC, method)
	}
	return json.Unmarshal(rpcResp.Result, out)
}
