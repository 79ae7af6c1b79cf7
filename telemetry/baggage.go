package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/baggage"
)

// Baggage size limits, grounded on the teacher's deleted telemetry/context.go
// (the same numbers: a request carries a handful of short correlation
// labels, not an arbitrary payload).
const (
	maxBaggageItems      = 16
	maxBaggageKeyLength  = 64
	maxBaggageValueLength = 256
)

// WithBaggage attaches key/value labels to ctx via the W3C baggage spec, so
// they propagate across goroutine and (if the HTTP client is instrumented)
// network boundaries. Labels beyond maxBaggageItems, or exceeding the
// key/value length limits, are silently dropped rather than rejected: a
// workflow step that forgets this limit should not fail because of it.
func WithBaggage(ctx context.Context, labels ...string) context.Context {
	if len(labels)%2 != 0 {
		labels = labels[:len(labels)-1]
	}

	bag := baggage.FromContext(ctx)
	count := bag.Len()

	for i := 0; i+1 < len(labels) && count < maxBaggageItems; i += 2 {
		key, value := labels[i], labels[i+1]
		if len(key) == 0 || len(key) > maxBaggageKeyLength || len(value) > maxBaggageValueLength {
			continue
		}
		member, err := baggage.NewMember(key, value)
		if err != nil {
			continue
		}
		updated, err := bag.SetMember(member)
		if err != nil {
			continue
		}
		bag = updated
		count++
	}

	return baggage.ContextWithBaggage(ctx, bag)
}

// GetBaggage returns every baggage member attached to ctx as a flat map.
func GetBaggage(ctx context.Context) map[string]string {
	bag := baggage.FromContext(ctx)
	members := bag.Members()
	result := make(map[string]string, len(members))
	for _, m := range members {
		result[m.Key()] = m.Value()
	}
	return result
}
