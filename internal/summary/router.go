package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/searchwise/search-gateway/internal/provider"
)

// Router holds the configured completion backends behind per-provider circuit
// breakers so a flapping backend fails fast instead of eating the request
// timeout every time.
type Router struct {
	providers map[string]provider.Provider
	breakers  map[string]*gobreaker.CircuitBreaker
}

func NewRouter(providers ...provider.Provider) *Router {
	r := &Router{
		providers: make(map[string]provider.Provider, len(providers)),
		breakers:  make(map[string]*gobreaker.CircuitBreaker, len(providers)),
	}
	for _, p := range providers {
		settings := gobreaker.Settings{
			Name:        p.Name(),
			MaxRequests: 3,
			Interval:    5 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}
		r.providers[p.Name()] = p
		r.breakers[p.Name()] = gobreaker.NewCircuitBreaker(settings)
	}
	return r
}

// Provider returns the backend registered under name.
func (r *Router) Provider(name string) (provider.Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return p, nil
}

// Execute runs a non-streaming completion through the breaker.
func (r *Router) Execute(ctx context.Context, name string, req *provider.Request) (*provider.Response, error) {
	p, err := r.Provider(name)
	if err != nil {
		return nil, err
	}
	result, err := r.breakers[name].Execute(func() (interface{}, error) {
		return p.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*provider.Response), nil
}

// ExecuteStream opens a streaming completion, recording mid-stream errors
// against the provider's breaker as it forwards chunks.
func (r *Router) ExecuteStream(ctx context.Context, name string, req *provider.Request) (<-chan *provider.Chunk, error) {
	p, err := r.Provider(name)
	if err != nil {
		return nil, err
	}
	cb := r.breakers[name]
	if cb.State() == gobreaker.StateOpen {
		return nil, fmt.Errorf("circuit breaker is open for provider: %s", name)
	}

	origCh, err := p.CompleteStream(ctx, req)
	if err != nil {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, err
		})
		return nil, err
	}

	wrappedCh := make(chan *provider.Chunk)
	go func() {
		defer close(wrappedCh)
		for chunk := range origCh {
			if chunk.Err != nil {
				_, _ = cb.Execute(func() (interface{}, error) {
					return nil, chunk.Err
				})
			}
			select {
			case wrappedCh <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return wrappedCh, nil
}
