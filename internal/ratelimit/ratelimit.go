package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out calls to a third-party service and counts them.
type Pacer struct {
	name    string
	limiter *rate.Limiter

	mu      sync.Mutex
	used    int
	waited  time.Duration
	lastUse time.Time
}

// NewPacer allows one call per interval. A zero interval disables pacing.
func NewPacer(name string, interval time.Duration) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{name: name, limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.used++
	p.waited += time.Since(start)
	p.lastUse = time.Now()
	return nil
}

// GetStats returns current pacer statistics
func (p *Pacer) GetStats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[string]interface{}{
		"name":       p.name,
		"used":       p.used,
		"waited_ms":  p.waited.Milliseconds(),
		"last_use":   p.lastUse,
		"rate_limit": float64(p.limiter.Limit()),
	}
}
