package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestBaggageRoundTrips(t *testing.T) {
	ctx := WithBaggage(context.Background(), "request_id", "abc123", "tenant", "acme")

	got := GetBaggage(ctx)
	assert.Equal(t, "abc123", got["request_id"])
	assert.Equal(t, "acme", got["tenant"])
}

func TestBaggageDropsOddTrailingLabel(t *testing.T) {
	ctx := WithBaggage(context.Background(), "request_id", "abc123", "orphan")

	got := GetBaggage(ctx)
	assert.Equal(t, "abc123", got["request_id"])
	_, present := got["orphan"]
	assert.False(t, present)
}

func TestBaggageDropsOversizedValue(t *testing.T) {
	oversized := make([]byte, maxBaggageValueLength+1)
	for i := range oversized {
		oversized[i] = 'x'
	}

	ctx := WithBaggage(context.Background(), "huge", string(oversized))

	got := GetBaggage(ctx)
	_, present := got["huge"]
	assert.False(t, present)
}

func TestRegistryDoesNotPanicWithoutOTLPEndpoint(t *testing.T) {
	meter := otel.GetMeterProvider().Meter("gateway-test")
	registry := NewRegistry(meter, nil)

	require.NotPanics(t, func() {
		registry.Counter("gateway.test_counter", "status", "ok")
		registry.Gauge("gateway.test_gauge", 1.5, "status", "ok")
		registry.Histogram("gateway.test_histogram", 0.2, "status", "ok")
		registry.EmitWithContext(context.Background(), "gateway.test_counter", 3, "status", "ok")
	})
}

func TestRegistryGetBaggageDelegatesToPackageHelper(t *testing.T) {
	meter := otel.GetMeterProvider().Meter("gateway-test")
	registry := NewRegistry(meter, nil)

	ctx := WithBaggage(context.Background(), "request_id", "xyz")
	assert.Equal(t, "xyz", registry.GetBaggage(ctx)["request_id"])
}
