// Package images holds the provider-independent pieces of the image
// pipeline: circuit breaker decorators around the searcher and
// generator ports. Meal images are optional, so once a provider
// starts failing the breaker turns its long timeouts into instant
// misses until the cooldown passes.
package images

import (
	"context"

	"github.com/mealsmith/v2/internal/ports/outbound"
	"github.com/mealsmith/v2/pkg/healthcheck"
)

// GuardedSearcher wraps an ImageSearcher with a circuit breaker.
type GuardedSearcher struct {
	inner   outbound.ImageSearcher
	breaker *healthcheck.Breaker
}

// GuardSearcher protects searches with the given breaker.
func GuardSearcher(inner outbound.ImageSearcher, breaker *healthcheck.Breaker) *GuardedSearcher {
	return &GuardedSearcher{inner: inner, breaker: breaker}
}

// Search runs the wrapped search unless the circuit is open. Breaker
// rejections surface as errors the resolver already treats as a soft
// no-result.
func (g *GuardedSearcher) Search(ctx context.Context, query string) (string, error) {
	var url string
	err := g.breaker.Execute(func() error {
		var innerErr error
		url, innerErr = g.inner.Search(ctx, query)
		return innerErr
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// Status exposes the breaker snapshot for health reporting.
func (g *GuardedSearcher) Status() healthcheck.BreakerStatus {
	return g.breaker.Status()
}

// GuardedGenerator wraps an ImageGenerator with a circuit breaker.
type GuardedGenerator struct {
	inner   outbound.ImageGenerator
	breaker *healthcheck.Breaker
}

// GuardGenerator protects generation with the given breaker.
func GuardGenerator(inner outbound.ImageGenerator, breaker *healthcheck.Breaker) *GuardedGenerator {
	return &GuardedGenerator{inner: inner, breaker: breaker}
}

// Generate runs the wrapped generation unless the circuit is open.
func (g *GuardedGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	var image []byte
	err := g.breaker.Execute(func() error {
		var innerErr error
		image, innerErr = g.inner.Generate(ctx, prompt)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return image, nil
}

// Status exposes the breaker snapshot for health reporting.
func (g *GuardedGenerator) Status() healthcheck.BreakerStatus {
	return g.breaker.Status()
}

var (
	_ outbound.ImageSearcher  = (*GuardedSearcher)(nil)
	_ outbound.ImageGenerator = (*GuardedGenerator)(nil)
)
