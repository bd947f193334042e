package llmclient

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Client is the generation interface the agent loop depends on.
// Implementations must be safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// pacer serializes outbound requests. The mutex is held for the whole
// request, so at most one is in flight per client, and the limiter
// spaces consecutive requests by the configured minimum interval.
type pacer struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// acquire takes the request slot and waits out the remainder of the
// interval since the previous request. The caller must release.
func (p *pacer) acquire(ctx context.Context) error {
	p.mu.Lock()
	if err := p.limiter.Wait(ctx); err != nil {
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *pacer) release() {
	p.mu.Unlock()
}
