package id

import "github.com/google/uuid"

// UUIDGenerator hands out random (v4) UUID strings for orders, products and
// audit entries.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) NewID() string { return uuid.NewString() }
