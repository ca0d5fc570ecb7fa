package gateway

import (
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/JakeFAU/searchconsole/internal/apierr"
)

const (
	defaultMaxRetries     = 3
	defaultBackoffInitial = time.Second
	defaultBackoffMax     = 30 * time.Second
)

// RetryPolicy decides whether a failed attempt is retried and how long to wait.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// ExponentialRetryPolicy retries network failures and 5xx responses with
// exponential backoff. The jitter added to each step stays below a quarter of
// the step, so delays strictly increase until maxDelay caps them.
type ExponentialRetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	jitter     bool
}

// NewExponentialRetryPolicy builds a policy; non-positive values fall back to
// defaults, except maxRetries where 0 disables retries.
func NewExponentialRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration, jitter bool) *ExponentialRetryPolicy {
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = defaultBackoffInitial
	}
	if maxDelay <= 0 {
		maxDelay = defaultBackoffMax
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &ExponentialRetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		jitter:     jitter,
	}
}

// MaxRetries returns the number of retries after the first attempt.
func (p *ExponentialRetryPolicy) MaxRetries() int {
	return p.maxRetries
}

// ShouldRetry reports whether attempt (0-based) may be followed by another.
// 4xx responses, validation failures and cancellations are never retried.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxRetries {
		return false
	}
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Retryable()
}

// Backoff returns the wait before the retry that follows attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay >= float64(p.maxDelay) {
		return p.maxDelay
	}
	step := time.Duration(delay)
	if p.jitter {
		step += randomJitter(step / 4)
		if step > p.maxDelay {
			step = p.maxDelay
		}
	}
	return step
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
