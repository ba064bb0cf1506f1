package redisledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	domain "github.com/Zhima-Mochi/escrowshop/internal/domain/inventory"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const DefaultPrefix = "escrowshop:"

// Write scripts reply with one of these codes on failure and with the product
// hash as written on success.
const (
	codeNotFound     = -1
	codeInsufficient = -2
)

var reserveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local qty = tonumber(ARGV[1])
local current = tonumber(redis.call('HGET', KEYS[1], 'quantity'))
if current < qty then
	return -2
end
redis.call('HSET', KEYS[1], 'quantity', current - qty, 'updated_at', ARGV[2])
return redis.call('HGETALL', KEYS[1])
`)

var releaseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
redis.call('HINCRBY', KEYS[1], 'quantity', ARGV[1])
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return redis.call('HGETALL', KEYS[1])
`)

var setFieldScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2], 'updated_at', ARGV[3])
return redis.call('HGETALL', KEYS[1])
`)

var deleteScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'vendor_id') ~= ARGV[1] then
	return -1
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[2])
return 0
`)

// Ledger keeps each product in a hash and runs every check-and-write as a Lua
// script, so Reserve is atomic across any number of service replicas.
type Ledger struct {
	client redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient, prefix string) *Ledger {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Ledger{client: client, prefix: prefix}
}

func (l *Ledger) productKey(id string) string { return l.prefix + "product:" + id }
func (l *Ledger) vendorKey(vendorID string) string {
	return l.prefix + "vendor:" + vendorID + ":products"
}

func (l *Ledger) Create(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID == "" {
		return errors.New("redisledger: product id is required")
	}
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, l.productKey(p.ID), map[string]any{
			"id":          p.ID,
			"vendor_id":   p.VendorID,
			"name":        p.Name,
			"description": p.Description,
			"category":    p.Category,
			"unit":        p.Unit,
			"price":       p.Price.String(),
			"quantity":    p.Quantity,
			"created_at":  p.CreatedAt.UTC().Format(time.RFC3339Nano),
			"updated_at":  p.UpdatedAt.UTC().Format(time.RFC3339Nano),
		})
		pipe.SAdd(ctx, l.vendorKey(p.VendorID), p.ID)
		return nil
	})
	return err
}

func (l *Ledger) Get(ctx context.Context, productID string) (*domain.Product, error) {
	fields, err := l.client.HGetAll(ctx, l.productKey(productID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return decodeProduct(fields)
}

func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return l.run(ctx, reserveScript, productID, quantity, now())
}

func (l *Ledger) Release(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return l.run(ctx, releaseScript, productID, quantity, now())
}

func (l *Ledger) SetPrice(ctx context.Context, productID string, price decimal.Decimal) (*domain.Product, error) {
	if err := domain.ValidatePrice(price); err != nil {
		return nil, err
	}
	return l.run(ctx, setFieldScript, productID, "price", price.String(), now())
}

func (l *Ledger) SetQuantity(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	return l.run(ctx, setFieldScript, productID, "quantity", quantity, now())
}

func (l *Ledger) FindByOwner(ctx context.Context, vendorID string) ([]*domain.Product, error) {
	ids, err := l.client.SMembers(ctx, l.vendorKey(vendorID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		p, err := l.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (l *Ledger) Delete(ctx context.Context, productID, vendorID string) error {
	res, err := deleteScript.Run(ctx, l.client,
		[]string{l.productKey(productID), l.vendorKey(vendorID)},
		vendorID, productID).Int()
	if err != nil {
		return err
	}
	if res == codeNotFound {
		return domain.ErrNotFound
	}
	return nil
}

// run executes a write script and decodes the product from its reply, so a
// committed write is never reported as failed by a follow-up read.
func (l *Ledger) run(ctx context.Context, script *redis.Script, productID string, args ...any) (*domain.Product, error) {
	reply, err := script.Run(ctx, l.client, []string{l.productKey(productID)}, args...).Result()
	if err != nil {
		return nil, err
	}
	switch v := reply.(type) {
	case int64:
		switch v {
		case codeNotFound:
			return nil, domain.ErrNotFound
		case codeInsufficient:
			return nil, domain.ErrInsufficientStock
		}
		return nil, fmt.Errorf("redisledger: unexpected script code %d for %s", v, productID)
	case []any:
		return decodeProduct(pairs(v))
	}
	return nil, fmt.Errorf("redisledger: unexpected script reply %T for %s", reply, productID)
}

// pairs turns a flat HGETALL reply into a field map.
func pairs(flat []any) map[string]string {
	m := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		m[k] = v
	}
	return m
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func decodeProduct(f map[string]string) (*domain.Product, error) {
	price, err := decimal.NewFromString(f["price"])
	if err != nil {
		return nil, fmt.Errorf("redisledger: price of %s: %w", f["id"], err)
	}
	qty, err := strconv.Atoi(f["quantity"])
	if err != nil {
		return nil, fmt.Errorf("redisledger: quantity of %s: %w", f["id"], err)
	}
	created, _ := time.Parse(time.RFC3339Nano, f["created_at"])
	updated, _ := time.Parse(time.RFC3339Nano, f["updated_at"])
	return &domain.Product{
		ID:          f["id"],
		VendorID:    f["vendor_id"],
		Name:        f["name"],
		Description: f["description"],
		Category:    f["category"],
		Unit:        f["unit"],
		Price:       price,
		Quantity:    qty,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}
