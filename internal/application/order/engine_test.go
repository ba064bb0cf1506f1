package order

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/escrow"
	dominv "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/escrowshop/internal/domain/outbox"
	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	"github.com/Zhima-Mochi/escrowshop/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice  = principal.Principal{ID: "alice", Role: principal.RoleSender, Name: "Alice", WalletAddress: "0xa11ce"}
	bob    = principal.Principal{ID: "bob", Role: principal.RoleSender, Name: "Bob", WalletAddress: "0xb0b"}
	acme   = principal.Principal{ID: "acme", Role: principal.RoleVendor, Name: "Acme", WalletAddress: "0xacme"}
	globex = principal.Principal{ID: "globex", Role: principal.RoleVendor, Name: "Globex", WalletAddress: "0x610"}
)

type fakeGateway struct {
	mu        sync.Mutex
	creates   int
	releases  int
	cancels   int
	proofs    int
	createErr error
	cancelErr error
	// hang makes create and cancel wait for the call deadline.
	hang     bool
	lastLock decimal.Decimal
}

func (g *fakeGateway) CreateEscrow(ctx context.Context, req escrow.CreateRequest) (string, escrow.Receipt, error) {
	if err := g.wait(ctx); err != nil {
		return "", escrow.Receipt{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	if g.createErr != nil {
		return "", escrow.Receipt{}, g.createErr
	}
	g.lastLock = req.Amount
	return "escrow-" + strconv.Itoa(g.creates), escrow.Receipt{Digest: "tx-create"}, nil
}

func (g *fakeGateway) VerifyAndRelease(context.Context, escrow.ReleaseRequest) (escrow.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releases++
	return escrow.Receipt{Digest: "tx-release"}, nil
}

func (g *fakeGateway) CancelEscrow(ctx context.Context, _ escrow.CancelRequest) (escrow.Receipt, error) {
	if err := g.wait(ctx); err != nil {
		return escrow.Receipt{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels++
	if g.cancelErr != nil {
		return escrow.Receipt{}, g.cancelErr
	}
	return escrow.Receipt{Digest: "tx-cancel"}, nil
}

func (g *fakeGateway) UploadProof(context.Context, escrow.ProofRequest) (escrow.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.proofs++
	return escrow.Receipt{Digest: "tx-proof"}, nil
}

func (g *fakeGateway) wait(ctx context.Context) error {
	g.mu.Lock()
	hang := g.hang
	g.mu.Unlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (g *fakeGateway) counts() (creates, releases, cancels int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creates, g.releases, g.cancels
}

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return "ord-" + strconv.FormatInt(s.n.Add(1), 10) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventName()
	}
	return out
}

type fixture struct {
	engine  *Engine
	orders  *memory.OrderRepository
	ledger  *memory.InventoryLedger
	gateway *fakeGateway
	events  *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithTimeout(t, time.Second)
}

func newFixtureWithTimeout(t *testing.T, escrowTimeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		orders:  memory.NewOrderRepository(),
		ledger:  memory.NewInventoryLedger(),
		gateway: &fakeGateway{},
		events:  &recordingPublisher{},
	}
	f.engine = NewEngine(Deps{
		Orders:     f.orders,
		Ledger:     f.ledger,
		Principals: memory.NewPrincipalDirectory(alice, bob, acme, globex),
		Gateway:    f.gateway,
		Publisher:  f.events,
		IDs:        &seqIDs{},
		Tel:        observability.Nop(),
	}, Config{
		DefaultVerifier: "0xverifier",
		VerifierKey:     "verifier-secret",
		EscrowTimeout:   escrowTimeout,
	})
	return f
}

func (f *fixture) product(t *testing.T, id, vendor string, price int64, qty int) {
	t.Helper()
	p, err := dominv.NewProduct(id, vendor, "product "+id, decimal.NewFromInt(price), qty)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Create(context.Background(), p))
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.ledger.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) place(t *testing.T, caller principal.Principal, items ...ItemInput) *domain.Order {
	t.Helper()
	res, err := f.engine.Place.Execute(context.Background(), PlaceOrderInput{Caller: caller, Items: items})
	require.NoError(t, err)
	return res.Order
}

func (f *fixture) fund(t *testing.T, o *domain.Order) *domain.Order {
	t.Helper()
	res, err := f.engine.Fund.Execute(context.Background(), FundOrderInput{
		Caller: alice, OrderID: o.ID, Amount: o.TotalPrice, SenderKey: "alice-key",
	})
	require.NoError(t, err)
	return res.Order
}

func TestPlaceOrderTotalsAndReservesStock(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	f.product(t, "p2", acme.ID, 200, 5)

	o := f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 2}, ItemInput{ProductID: "p2", Quantity: 1})

	assert.Equal(t, domain.StatusPending, o.Status)
	assert.True(t, decimal.NewFromInt(400).Equal(o.TotalPrice))
	assert.Equal(t, acme.ID, o.VendorID)
	assert.Equal(t, "0xverifier", o.VerifierAddress)
	assert.Equal(t, DefaultCurrency, o.Currency)
	assert.Len(t, o.UnlockKey, 2*UnlockKeyBytes)
	assert.Equal(t, 8, f.stock(t, "p1"))
	assert.Equal(t, 4, f.stock(t, "p2"))
	assert.Equal(t, []string{"order.placed"}, f.events.names())
}

func TestPlaceOrderMergesRepeatedProducts(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)

	o := f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 2}, ItemInput{ProductID: "p1", Quantity: 3})

	require.Len(t, o.Items, 1)
	assert.Equal(t, 5, o.Items[0].Quantity)
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestPlaceOrderRejections(t *testing.T) {
	cases := []struct {
		name   string
		caller principal.Principal
		items  []ItemInput
		kind   error
	}{
		{"no items", alice, nil, apperr.ErrValidation},
		{"zero quantity", alice, []ItemInput{{ProductID: "p1", Quantity: 0}}, apperr.ErrValidation},
		{"blank product", alice, []ItemInput{{ProductID: " ", Quantity: 1}}, apperr.ErrValidation},
		{"unknown product", alice, []ItemInput{{ProductID: "nope", Quantity: 1}}, apperr.ErrNotFound},
		{"mixed vendors", alice, []ItemInput{{ProductID: "p1", Quantity: 1}, {ProductID: "g1", Quantity: 1}}, apperr.ErrValidation},
		{"insufficient stock", alice, []ItemInput{{ProductID: "p1", Quantity: 11}}, apperr.ErrConflict},
		{"merged quantity overflows", alice, []ItemInput{
			{ProductID: "p1", Quantity: math.MaxInt},
			{ProductID: "p1", Quantity: math.MaxInt},
			{ProductID: "p1", Quantity: 3},
		}, apperr.ErrValidation},
		{"vendor as sender", acme, []ItemInput{{ProductID: "p1", Quantity: 1}}, apperr.ErrUnauthorized},
		{"unknown sender", principal.Principal{ID: "mallory", Role: principal.RoleSender}, []ItemInput{{ProductID: "p1", Quantity: 1}}, apperr.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.product(t, "p1", acme.ID, 100, 10)
			f.product(t, "g1", globex.ID, 50, 10)

			_, err := f.engine.Place.Execute(context.Background(), PlaceOrderInput{Caller: tc.caller, Items: tc.items})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)
			assert.Equal(t, 10, f.stock(t, "p1"))
			assert.Equal(t, 10, f.stock(t, "g1"))
			assert.Empty(t, f.events.names())
		})
	}
}

func TestPlaceOrderMixedVendorsReportsDomainCause(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	f.product(t, "g1", globex.ID, 50, 10)

	_, err := f.engine.Place.Execute(context.Background(), PlaceOrderInput{
		Caller: alice,
		Items:  []ItemInput{{ProductID: "p1", Quantity: 1}, {ProductID: "g1", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrMixedVendors)
}

func TestConcurrentPlacementsNeverOversell(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 1)

	const n = 10
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Place.Execute(context.Background(), PlaceOrderInput{
				Caller: alice,
				Items:  []ItemInput{{ProductID: "p1", Quantity: 1}},
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, apperr.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())
	assert.Equal(t, 0, f.stock(t, "p1"))
}

func TestPlaceOrderIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	cmd := PlaceOrderInput{Caller: alice, Items: []ItemInput{{ProductID: "p1", Quantity: 2}}, IdempotencyKey: "k-1"}

	first, err := f.engine.Place.Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.engine.Place.Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 8, f.stock(t, "p1"))

	cmd.Caller = bob
	third, err := f.engine.Place.Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, third.Replayed)
	assert.NotEqual(t, first.Order.ID, third.Order.ID)
	assert.Equal(t, 6, f.stock(t, "p1"))
}

func TestFundOrderLocksTotalAndMovesToReceived(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 3})

	res, err := f.engine.Fund.Execute(context.Background(), FundOrderInput{
		Caller: alice, OrderID: o.ID, Amount: decimal.RequireFromString("300.00"), SenderKey: "alice-key",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusReceived, res.Order.Status)
	assert.Equal(t, "escrow-1", res.Order.EscrowID)
	assert.Equal(t, "tx-create", res.Receipt.Digest)
	assert.True(t, decimal.NewFromInt(300).Equal(f.gateway.lastLock))
	assert.Equal(t, []string{"order.placed", "order.status_changed"}, f.events.names())
}

func TestFundOrderRejections(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 1})

	ctx := context.Background()

	_, err := f.engine.Fund.Execute(ctx, FundOrderInput{Caller: bob, OrderID: o.ID, Amount: o.TotalPrice, SenderKey: "k"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.engine.Fund.Execute(ctx, FundOrderInput{Caller: alice, OrderID: o.ID, Amount: decimal.NewFromInt(99), SenderKey: "k"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.Fund.Execute(ctx, FundOrderInput{Caller: alice, OrderID: o.ID, Amount: o.TotalPrice})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.Fund.Execute(ctx, FundOrderInput{Caller: alice, OrderID: "missing", Amount: o.TotalPrice, SenderKey: "k"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	creates, _, _ := f.gateway.counts()
	assert.Zero(t, creates)
}

func TestFundOrderTwiceIsConflictWithoutGatewayCall(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.fund(t, f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 1}))

	_, err := f.engine.Fund.Execute(context.Background(), FundOrderInput{
		Caller: alice, OrderID: o.ID, Amount: o.TotalPrice, SenderKey: "alice-key",
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	creates, _, _ := f.gateway.counts()
	assert.Equal(t, 1, creates)
}

func TestFundOrderGatewayFailureLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 1})
	f.gateway.createErr = errors.New("node unreachable")

	_, err := f.engine.Fund.Execute(context.Background(), FundOrderInput{
		Caller: alice, OrderID: o.ID, Amount: o.TotalPrice, SenderKey: "alice-key",
	})
	assert.ErrorIs(t, err, apperr.ErrExternal)

	stored, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Empty(t, stored.EscrowID)
}

func TestFundOrderGatewayTimeoutLeavesOrderPending(t *testing.T) {
	f := newFixtureWithTimeout(t, 50*time.Millisecond)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 1})
	f.gateway.hang = true

	start := time.Now()
	_, err := f.engine.Fund.Execute(context.Background(), FundOrderInput{
		Caller: alice, OrderID: o.ID, Amount: o.TotalPrice, SenderKey: "alice-key",
	})
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.ErrorIs(t, err, apperr.ErrExternal)
	assert.ErrorIs(t, err, escrow.ErrUnavailable)

	stored, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Empty(t, stored.EscrowID)
	assert.Equal(t, []string{"order.placed"}, f.events.names())
}

func TestConfirmReceiptWrongKeyIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.fund(t, f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 1}))

	_, err := f.engine.Confirm.Execute(context.Background(), ConfirmReceiptInput{Caller: alice, OrderID: o.ID, UnlockKey: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	stored, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, stored.Status)
	_, releases, _ := f.gateway.counts()
	assert.Zero(t, releases)
}

func TestConfirmReceiptBeforeProofIsConflict(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.fund(t, f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 1}))

	_, err := f.engine.Confirm.Execute(context.Background(), ConfirmReceiptInput{Caller: alice, OrderID: o.ID, UnlockKey: o.UnlockKey})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestConfirmReceiptReleasesAndDelivers(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.fund(t, f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 1}))

	ctx := context.Background()
	_, err := f.orders.Transition(ctx, o.ID, domain.StatusReceived, domain.StatusPrepared, domain.Changes{})
	require.NoError(t, err)
	_, err = f.orders.Transition(ctx, o.ID, domain.StatusPrepared, domain.StatusProofUploaded, domain.Changes{ProofURL: "bafy-proof"})
	require.NoError(t, err)

	res, err := f.engine.Confirm.Execute(ctx, ConfirmReceiptInput{Caller: alice, OrderID: o.ID, UnlockKey: o.UnlockKey})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, res.Order.Status)
	assert.Equal(t, "tx-release", res.Receipt.Digest)

	_, err = f.engine.Confirm.Execute(ctx, ConfirmReceiptInput{Caller: alice, OrderID: o.ID, UnlockKey: o.UnlockKey})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, releases, _ := f.gateway.counts()
	assert.Equal(t, 1, releases)
}

func TestCancelPendingOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 2})
	require.Equal(t, 8, f.stock(t, "p1"))

	res, err := f.engine.Cancel.Execute(context.Background(), CancelOrderInput{Caller: alice, OrderID: o.ID})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, res.Order.Status)
	assert.Empty(t, res.Receipt.Digest)
	assert.Empty(t, res.RestockFailures)
	assert.Equal(t, 10, f.stock(t, "p1"))
	_, _, cancels := f.gateway.counts()
	assert.Zero(t, cancels)
}

func TestFundedOrderScenario(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	f.product(t, "p2", acme.ID, 200, 5)
	ctx := context.Background()

	o := f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 2}, ItemInput{ProductID: "p2", Quantity: 1})
	require.True(t, decimal.NewFromInt(400).Equal(o.TotalPrice))

	o = f.fund(t, o)
	require.Equal(t, domain.StatusReceived, o.Status)

	_, err := f.engine.Confirm.Execute(ctx, ConfirmReceiptInput{Caller: alice, OrderID: o.ID, UnlockKey: o.UnlockKey})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.engine.Cancel.Execute(ctx, CancelOrderInput{Caller: alice, OrderID: o.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation, "funded orders need the sender key to refund")

	res, err := f.engine.Cancel.Execute(ctx, CancelOrderInput{Caller: alice, OrderID: o.ID, SenderKey: "alice-key"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, res.Order.Status)
	assert.Equal(t, "tx-cancel", res.Receipt.Digest)
	assert.Equal(t, 10, f.stock(t, "p1"))
	assert.Equal(t, 5, f.stock(t, "p2"))

	_, err = f.engine.Cancel.Execute(ctx, CancelOrderInput{Caller: alice, OrderID: o.ID, SenderKey: "alice-key"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	creates, releases, cancels := f.gateway.counts()
	assert.Equal(t, 1, creates)
	assert.Zero(t, releases)
	assert.Equal(t, 1, cancels)
}

func TestCancelEscrowFailureKeepsOrderFunded(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.fund(t, f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 2}))
	f.gateway.cancelErr = errors.New("rejected")

	_, err := f.engine.Cancel.Execute(context.Background(), CancelOrderInput{Caller: alice, OrderID: o.ID, SenderKey: "alice-key"})
	assert.ErrorIs(t, err, apperr.ErrExternal)

	stored, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, stored.Status)
	assert.Equal(t, 8, f.stock(t, "p1"))
}

func TestCancelEscrowTimeoutKeepsOrderFunded(t *testing.T) {
	f := newFixtureWithTimeout(t, 50*time.Millisecond)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.fund(t, f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 2}))
	f.gateway.hang = true

	_, err := f.engine.Cancel.Execute(context.Background(), CancelOrderInput{Caller: alice, OrderID: o.ID, SenderKey: "alice-key"})
	assert.ErrorIs(t, err, apperr.ErrExternal)
	assert.ErrorIs(t, err, escrow.ErrUnavailable)

	stored, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, stored.Status)
	assert.Equal(t, 8, f.stock(t, "p1"))
}

func TestCancelWithDeletedProductReportsRestockFailure(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	f.product(t, "p2", acme.ID, 100, 10)
	o := f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 1}, ItemInput{ProductID: "p2", Quantity: 1})
	require.NoError(t, f.ledger.Delete(context.Background(), "p2", acme.ID))

	res, err := f.engine.Cancel.Execute(context.Background(), CancelOrderInput{Caller: alice, OrderID: o.ID})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, res.Order.Status)
	require.Len(t, res.RestockFailures, 1)
	assert.Equal(t, "p2", res.RestockFailures[0].ProductID)
	assert.ErrorIs(t, res.RestockFailures[0].Err, dominv.ErrNotFound)
	assert.Equal(t, 10, f.stock(t, "p1"))
	assert.Contains(t, f.events.names(), "inventory.restock_failed")
}

func TestConcurrentCancelsRestockOnce(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 4})

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.Cancel.Execute(context.Background(), CancelOrderInput{Caller: alice, OrderID: o.ID}); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, 10, f.stock(t, "p1"))
}

func TestTrackOrderIsReadOnly(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	o := f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 2})
	before := f.events.names()

	tracked, err := f.engine.Track.Execute(context.Background(), TrackOrderInput{Caller: alice, OrderID: o.ID})
	require.NoError(t, err)

	assert.Equal(t, o.ID, tracked.Order.ID)
	assert.Equal(t, domain.StatusPending, tracked.Order.Status)
	require.Len(t, tracked.Items, 1)
	require.NotNil(t, tracked.Items[0].Product)
	assert.Equal(t, "product p1", tracked.Items[0].Product.Name)
	require.NotNil(t, tracked.Vendor)
	assert.Equal(t, acme.Name, tracked.Vendor.Name)

	assert.Equal(t, before, f.events.names())
	assert.Equal(t, 8, f.stock(t, "p1"))
	creates, releases, cancels := f.gateway.counts()
	assert.Zero(t, creates+releases+cancels)

	_, err = f.engine.Track.Execute(context.Background(), TrackOrderInput{Caller: bob, OrderID: o.ID})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestListOrdersReturnsOnlyCallersOrders(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", acme.ID, 100, 10)
	f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 1})
	f.place(t, alice, ItemInput{ProductID: "p1", Quantity: 1})
	f.place(t, bob, ItemInput{ProductID: "p1", Quantity: 1})

	orders, err := f.engine.List.Execute(context.Background(), ListOrdersInput{Caller: alice})
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, alice.ID, o.SenderID)
	}

	_, err = f.engine.List.Execute(context.Background(), ListOrdersInput{Caller: acme})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
