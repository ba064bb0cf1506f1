// Package outbox defines how lifecycle events leave a use case. Delivery is
// asynchronous and at most once.
package outbox

import "context"

type Event interface {
	EventName() string
}

// Handler consumes one delivery. A returned error is logged by the bus; the
// event is not redelivered.
type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

type eventIDKey struct{}

// WithEventID tags a handler context with the id the bus assigned to the delivery.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDKey{}, id)
}

// EventID returns the delivery id, or "" outside a handler.
func EventID(ctx context.Context) string {
	id, _ := ctx.Value(eventIDKey{}).(string)
	return id
}
