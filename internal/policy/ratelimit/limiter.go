// Package ratelimit implements a token bucket limiter keyed by backend service
// so a burst of console activity cannot flood a single service behind the gateway.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/searchconsole/internal/metrics"
)

// Limiter manages per-service rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration. A non-positive RPS disables limiting.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for service, respecting the context.
func (l *Limiter) Wait(ctx context.Context, service string) error {
	if l == nil {
		return nil
	}
	limiter := l.limiterFor(service)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Tokens available immediately are not worth recording.
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(service, d)
	}
	return nil
}

// Allow reports whether a call to service may proceed right now without waiting.
func (l *Limiter) Allow(service string) bool {
	if l == nil {
		return true
	}
	return l.limiterFor(service).Allow()
}

func (l *Limiter) limiterFor(service string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists := l.limiters[service]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[service] = limiter
	}
	return limiter
}
