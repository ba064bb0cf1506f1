// Package prometrics backs the observability metric ports with Prometheus vectors.
package prometrics

import (
	"errors"
	"sync"

	"github.com/Zhima-Mochi/escrowshop/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry creates label-keyed instruments. Asking twice for the same name
// returns the vector registered first.
type Registry interface {
	Counter(name string, help string, labelKeys ...string) observability.Counter
	Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram
}

type registry struct {
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	reg        prometheus.Registerer
	namespace  string
	subsystem  string
}

// New returns a Registry on reg, or on the default registerer when reg is nil.
func New(reg prometheus.Registerer, namespace, subsystem string) Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &registry{
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		reg:        reg,
		namespace:  namespace,
		subsystem:  subsystem,
	}
}

func (r *registry) Counter(name string, help string, labelKeys ...string) observability.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cv, ok := r.counters[name]; ok {
		return counter{cv}
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help,
	}, labelKeys)
	cv = register(r.reg, cv)
	r.counters[name] = cv
	return counter{cv}
}

func (r *registry) Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hv, ok := r.histograms[name]; ok {
		return histogram{hv}
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labelKeys)
	hv = register(r.reg, hv)
	r.histograms[name] = hv
	return histogram{hv}
}

// register adopts a collector that another Registry already put on reg.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Set is the instrument set the service records into, looked up by key.
// Unknown keys resolve to no-op instruments.
type Set struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

// latencyBuckets cover escrow calls bounded by the 15s gateway timeout.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30}

// Instruments registers everything use cases, the HTTP layer and the escrow
// adapters record.
func Instruments(r Registry) *Set {
	counter := func(k observability.MetricKey, help string, labels ...string) observability.Counter {
		return r.Counter(string(k), help, labels...)
	}
	histogram := func(k observability.MetricKey, help string, buckets []float64, labels ...string) observability.Histogram {
		return r.Histogram(string(k), help, buckets, labels...)
	}
	return &Set{
		counters: map[observability.MetricKey]observability.Counter{
			observability.MUsecaseRequests: counter(observability.MUsecaseRequests,
				"Total number of use case invocations.", "use_case", "outcome"),
			observability.MHTTPRequests: counter(observability.MHTTPRequests,
				"Total number of HTTP requests.", "method", "route", "status"),
			observability.MExternalRequests: counter(observability.MExternalRequests,
				"Total number of calls to external peers.", "peer", "endpoint", "outcome"),
			observability.MStockRestoreFailures: counter(observability.MStockRestoreFailures,
				"Line items whose stock could not be restored on cancellation.", "reason"),
		},
		histograms: map[observability.MetricKey]observability.Histogram{
			observability.MUsecaseDuration: histogram(observability.MUsecaseDuration,
				"Duration of use case execution in seconds.", prometheus.DefBuckets, "use_case"),
			observability.MHTTPRequestDuration: histogram(observability.MHTTPRequestDuration,
				"Duration of HTTP requests in seconds.", prometheus.DefBuckets, "method", "route", "status"),
			observability.MExternalRequestDuration: histogram(observability.MExternalRequestDuration,
				"Duration of calls to external peers in seconds.", latencyBuckets, "peer", "endpoint"),
		},
	}
}

func (s *Set) Counter(k observability.MetricKey) observability.Counter {
	if c, ok := s.counters[k]; ok {
		return c
	}
	return observability.NopCounter()
}

func (s *Set) Histogram(k observability.MetricKey) observability.Histogram {
	if h, ok := s.histograms[k]; ok {
		return h
	}
	return observability.NopHistogram()
}

type counter struct{ v *prometheus.CounterVec }

func (c counter) Add(d float64, labels ...observability.Label) {
	c.v.With(labelMap(labels)).Add(d)
}

// Bind resolves the labelled child once; hot paths then skip the label lookup.
func (c counter) Bind(labels ...observability.Label) observability.BoundCounter {
	return c.v.With(labelMap(labels))
}

type histogram struct{ v *prometheus.HistogramVec }

func (h histogram) Observe(v float64, labels ...observability.Label) {
	h.v.With(labelMap(labels)).Observe(v)
}

func (h histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	return h.v.With(labelMap(labels))
}

func labelMap(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}
