// Package ratelimit implements the Rate Limiter (C6): one token bucket per
// model, capacity 1, fractional refill rate, acquire(ctx) suspending until
// available while respecting cancellation. Grounded on the corpus's own use
// of golang.org/x/time/rate (internal/security/rbac.go in the
// jeranaias-rigrun example), generalized from a single fixed limiter to a
// per-model registry keyed by §3's ModelEntry.rate.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lsp-ai-go/lsp-ai-go/internal/metrics"
)

// Limiter owns one rate.Limiter per model name. Unset rate means unlimited
// (§4.6), represented by a nil *rate.Limiter entry that Acquire treats as
// an immediate pass.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New() *Limiter {
	return &Limiter{limiters: make(map[string]*rate.Limiter)}
}

// Configure installs or replaces the bucket for name. A nil or non-positive
// perSecond means unlimited. Capacity is always 1 (§4.6 "capacity 1"),
// which rate.Limiter.Wait already gives FCFS queuing and
// context-cancellation over for free (§9 design note).
func (l *Limiter) Configure(name string, perSecond *float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if perSecond == nil || *perSecond <= 0 {
		delete(l.limiters, name)
		return
	}
	l.limiters[name] = rate.NewLimiter(rate.Limit(*perSecond), 1)
}

func (l *Limiter) limiterFor(name string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiters[name]
}

// Acquire blocks until name's bucket has a token available. It returns an
// error instead if ctx is done first, or at once if ctx has a deadline that
// would pass before a token is due. A model with no configured rate
// returns immediately.
func (l *Limiter) Acquire(ctx context.Context, name string) error {
	lim := l.limiterFor(name)
	if lim == nil {
		return nil
	}
	start := time.Now()
	err := lim.Wait(ctx)
	metrics.RateLimitWait.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}
