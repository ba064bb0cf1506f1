package redisledger

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	prefix := "test:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		_ = client.Close()
	})
	return New(client, prefix)
}

func seed(t *testing.T, l *Ledger, id string, qty int) {
	t.Helper()
	p, err := domain.NewProduct(id, "v1", "item "+id, decimal.RequireFromString("99.90"), qty)
	require.NoError(t, err)
	require.NoError(t, l.Create(context.Background(), p))
}

func TestReserveDecrementsAtomically(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	seed(t, l, "p1", 10)

	p, err := l.Reserve(ctx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Quantity)
	assert.Equal(t, "99.9", p.Price.String())

	_, err = l.Reserve(ctx, "p1", 8)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = l.Reserve(ctx, "nope", 1)
	require.ErrorIs(t, err, domain.ErrNotFound)

	p, err = l.Release(ctx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Quantity)
}

func TestConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	seed(t, l, "p1", 10)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Reserve(ctx, "p1", 6); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	p, err := l.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Quantity)
}

func TestCatalogueOps(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	seed(t, l, "p1", 1)
	seed(t, l, "p2", 1)

	p, err := l.SetPrice(ctx, "p1", decimal.NewFromInt(12))
	require.NoError(t, err)
	assert.Equal(t, "12", p.Price.String())

	p, err = l.SetQuantity(ctx, "p1", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Quantity)

	_, err = l.SetQuantity(ctx, "ghost", 1)
	require.ErrorIs(t, err, domain.ErrNotFound)

	owned, err := l.FindByOwner(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	require.ErrorIs(t, l.Delete(ctx, "p1", "v2"), domain.ErrNotFound)
	require.NoError(t, l.Delete(ctx, "p1", "v1"))

	owned, err = l.FindByOwner(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestWritesReturnStoredProduct(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	seed(t, l, "p1", 4)

	p, err := l.Release(ctx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Quantity)
	assert.Equal(t, "v1", p.VendorID)
	assert.Equal(t, "99.9", p.Price.String())

	p, err = l.Reserve(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Quantity)

	_, err = l.Release(ctx, "ghost", 1)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = l.Reserve(ctx, "p1", 6)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestCreateRequiresID(t *testing.T) {
	l := newTestLedger(t)
	err := l.Create(context.Background(), &domain.Product{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
