package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aigateway/gateway/core"
)

// Registry implements core.MetricsRegistry on top of an OTEL metric.Meter,
// grounded on the teacher's deleted telemetry/framework_integration.go
// FrameworkMetricsRegistry: a thin adapter that lets core's ProductionLogger
// emit metrics without importing this package directly.
type Registry struct {
	meter metric.Meter
	log   core.Logger

	mu       sync.Mutex
	counters map[string]metric.Float64Counter
	gauges   map[string]metric.Float64Gauge
	hists    map[string]metric.Float64Histogram
}

// NewRegistry builds a Registry backed by meter. Pass a core.Logger to
// surface instrument-creation failures; nil is fine in tests.
func NewRegistry(meter metric.Meter, logger core.Logger) *Registry {
	return &Registry{
		meter:    meter,
		log:      logger,
		counters: make(map[string]metric.Float64Counter),
		gauges:   make(map[string]metric.Float64Gauge),
		hists:    make(map[string]metric.Float64Histogram),
	}
}

// Register wires r into core as the process-wide metrics sink, matching
// the teacher's EnableFrameworkIntegration entry point.
func Register(r *Registry) {
	core.SetMetricsRegistry(r)
}

func (r *Registry) Counter(name string, labels ...string) {
	r.EmitWithContext(context.Background(), name, 1, labels...)
}

func (r *Registry) EmitWithContext(ctx context.Context, name string, value float64, labels ...string) {
	counter, err := r.counter(name)
	if err != nil {
		r.logError("counter", name, err)
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(toAttributes(labels)...))
}

func (r *Registry) Gauge(name string, value float64, labels ...string) {
	gauge, err := r.gauge(name)
	if err != nil {
		r.logError("gauge", name, err)
		return
	}
	gauge.Record(context.Background(), value, metric.WithAttributes(toAttributes(labels)...))
}

func (r *Registry) Histogram(name string, value float64, labels ...string) {
	hist, err := r.histogram(name)
	if err != nil {
		r.logError("histogram", name, err)
		return
	}
	hist.Record(context.Background(), value, metric.WithAttributes(toAttributes(labels)...))
}

func (r *Registry) GetBaggage(ctx context.Context) map[string]string {
	return GetBaggage(ctx)
}

func (r *Registry) counter(name string) (metric.Float64Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c, nil
	}
	c, err := r.meter.Float64Counter(name)
	if err != nil {
		return nil, err
	}
	r.counters[name] = c
	return c, nil
}

func (r *Registry) gauge(name string) (metric.Float64Gauge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g, nil
	}
	g, err := r.meter.Float64Gauge(name)
	if err != nil {
		return nil, err
	}
	r.gauges[name] = g
	return g, nil
}

func (r *Registry) histogram(name string) (metric.Float64Histogram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hists[name]; ok {
		return h, nil
	}
	h, err := r.meter.Float64Histogram(name)
	if err != nil {
		return nil, err
	}
	r.hists[name] = h
	return h, nil
}

func (r *Registry) logError(kind, name string, err error) {
	if r.log == nil {
		return
	}
	r.log.Warn("telemetry: failed to create instrument", map[string]interface{}{
		"kind": kind, "name": name, "error": err.Error(),
	})
}

// toAttributes pairs up a flat key/value label list into OTEL attributes,
// dropping a trailing unpaired key.
func toAttributes(labels []string) []attribute.KeyValue {
	n := len(labels) / 2
	attrs := make([]attribute.KeyValue, 0, n)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	return attrs
}
