package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/winterlabs/multichat/internal/chat"
	"github.com/winterlabs/multichat/internal/provider"
)

// breakerAdapter wraps an adapter with a circuit breaker. While the breaker
// is open, calls fail immediately as ProviderError instead of hitting a
// known-dead upstream. Adapter errors otherwise pass through untouched.
type breakerAdapter struct {
	inner provider.Adapter
	cb    *gobreaker.CircuitBreaker
}

func withBreaker(inner provider.Adapter) provider.Adapter {
	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// Credential and config failures never reach the network, so they
		// say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var credErr *provider.CredentialError
			var cfgErr *provider.ConfigError
			return errors.As(err, &credErr) || errors.As(err, &cfgErr)
		},
	}
	return &breakerAdapter{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *breakerAdapter) Generate(ctx context.Context, modelID string, history []chat.Turn, current []chat.Part, credential string) (*provider.Result, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Generate(ctx, modelID, history, current, credential)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &provider.ProviderError{Provider: b.Name(), Message: "upstream unavailable (circuit open)"}
		}
		return nil, err
	}
	return result.(*provider.Result), nil
}

func (b *breakerAdapter) Name() string {
	return b.inner.Name()
}
