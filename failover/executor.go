// Package failover executes one logical operation against a category,
// cycling registered providers with exponential backoff on retryable
// classified errors (spec §4.3).
package failover

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/aigateway/gateway/classify"
	"github.com/aigateway/gateway/core"
	"github.com/aigateway/gateway/provider"
)

// Config mirrors spec §3's failover executor config, applied identically
// to every category.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig returns a reasonable retry policy for callers that don't
// need per-category tuning.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}
}

// Executor runs one logical operation against registry's providers for
// category, rotating through the registry's shared round-robin cursor
// (spec §4.3: "one executor value per category" is realized as the
// cursor living in the shared Registry, with a fresh, lightweight
// Executor value built around it per call).
type Executor[P provider.Provider, R any] struct {
	registry *provider.Registry
	category provider.Category
	config   Config
	logger   core.Logger
}

// New builds an Executor for category. P is the category-specific
// provider interface (e.g. provider.ChatProvider); R is its result type.
func New[P provider.Provider, R any](registry *provider.Registry, category provider.Category, config Config, logger core.Logger) *Executor[P, R] {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Executor[P, R]{registry: registry, category: category, config: config, logger: logger}
}

// Execute runs invoke against providers for the executor's category,
// cycling on retryable failures, per the algorithm in spec §4.3. It
// returns the successful result and the name of the provider that
// produced it, or a classified error if every attempt failed or a fatal
// (non-retryable) error was encountered.
func (e *Executor[P, R]) Execute(ctx context.Context, invoke func(ctx context.Context, p P) (R, error)) (R, string, error) {
	var zero R

	all := e.registry.GetAll(e.category)
	total := len(all)
	if total == 0 {
		return zero, "", &classify.Error{
			Message: fmt.Sprintf("no providers registered for category %s", e.category),
			Code:    classify.ServiceError,
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.config.BaseDelay
	bo.MaxInterval = e.config.MaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // attempts are bounded by MaxRetries, not elapsed time
	bo.Reset()

	attempted := make(map[string]bool, total)
	var attemptedOrder []string
	var errs []*classify.Error

	for attempt := 0; attempt < e.config.MaxRetries; {
		next, err := e.registry.GetNext(e.category)
		if err != nil {
			return zero, "", err
		}

		typed, ok := any(next).(P)
		if !ok {
			// A provider registered under this category doesn't satisfy the
			// category's typed interface; this is a registration bug, not a
			// retryable provider failure.
			return zero, "", &classify.Error{
				Message: fmt.Sprintf("provider %s registered for category %s does not implement the category's operation", next.Name(), e.category),
				Code:    classify.ServiceError,
			}
		}

		name := next.Name()
		if attempted[name] && len(attempted) < total {
			// Already attempted this provider and untried providers remain:
			// advance the cursor and try again without consuming an attempt.
			continue
		}

		attempted[name] = true
		attemptedOrder = append(attemptedOrder, name)
		attempt++

		result, invokeErr := invoke(ctx, typed)
		if invokeErr == nil {
			return result, name, nil
		}

		classified := classify.Classify(invokeErr, name)
		errs = append(errs, classified)

		if !classify.Retryable(classified.Code) {
			return zero, "", classified
		}

		if attempt >= e.config.MaxRetries {
			break
		}

		delay, _ := bo.NextBackOff()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, "", ctx.Err()
		case <-timer.C:
		}
	}

	return zero, "", synthesizeExhausted(attemptedOrder, errs)
}

// synthesizeExhausted builds the SERVICE_ERROR produced when the retry
// budget is exhausted without a non-retryable failure, carrying every
// attempted provider's name and underlying cause (spec §4.3 step 3).
func synthesizeExhausted(attempted []string, errs []*classify.Error) *classify.Error {
	causes := make([]string, 0, len(errs))
	for _, e := range errs {
		causes = append(causes, e.Error())
	}
	return &classify.Error{
		Message: fmt.Sprintf("all providers failed after attempting [%s]: %s",
			strings.Join(attempted, ", "), strings.Join(causes, "; ")),
		Code: classify.ServiceError,
	}
}
