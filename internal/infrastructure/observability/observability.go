// Package observability assembles the concrete tracer, logger and metric set
// into the observability.Observability handed to every use case.
package observability

import (
	"github.com/Zhima-Mochi/escrowshop/internal/observability"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

// New fills any missing piece with its no-op counterpart.
func New(tracer observability.Tracer, logger observability.Logger, metrics observability.Metrics) observability.Observability {
	p := &provider{tracer: tracer, logger: logger, metrics: metrics}
	if p.tracer == nil {
		p.tracer = observability.NopTracer()
	}
	if p.logger == nil {
		p.logger = observability.NopLogger()
	}
	if p.metrics == nil {
		p.metrics = observability.NopMetrics()
	}
	return p
}

func (p *provider) Tracer() observability.Tracer   { return p.tracer }
func (p *provider) Logger() observability.Logger   { return p.logger }
func (p *provider) Metrics() observability.Metrics { return p.metrics }
