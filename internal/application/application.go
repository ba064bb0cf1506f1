// Package application hosts the use cases and the instrumentation they share.
package application

import "context"

// UseCase is the shape of every single-command operation.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// Outcome label values of usecase_requests_total.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	// OutcomeIgnored marks events a worker received but has no handling for.
	OutcomeIgnored = "ignored"
)
