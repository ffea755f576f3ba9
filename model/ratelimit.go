package model

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Model
	limiter *rate.Limiter
}

// WithRateLimit throttles m to requestsPerMinute calls, allowing bursts of
// burst requests. A non-positive rate returns m unchanged.
func WithRateLimit(m Model, requestsPerMinute, burst int) Model {
	if requestsPerMinute <= 0 {
		return m
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{
		next:    m,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
	}
}

func (r *rateLimited) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if err := r.limiter.Wait(ctx); err != nil {
		respCh := make(chan Response)
		errCh := make(chan error, 1)
		errCh <- fmt.Errorf("model: rate limit wait: %w", err)
		close(respCh)
		close(errCh)
		return respCh, errCh
	}
	return r.next.Generate(ctx, req)
}

func (r *rateLimited) Info() Info { return r.next.Info() }
