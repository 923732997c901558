// Package limiter enforces a tokens-per-minute bucket and a concurrency cap on model calls.
// Every generation-backed actor of a session shares one limiter.
package limiter

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimit is returned when the token bucket cannot cover a reservation.
var ErrRateLimit = errors.New("rate limit exceeded")

// Limits configures a Limiter. Zero values disable the corresponding check.
type Limits struct {
	TokensPerMinute int
	MaxConcurrent   int
}

// Limiter is safe for concurrent use.
type Limiter struct {
	limits Limits
	slots  chan struct{}
	now    func() time.Time

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// New creates a limiter with a full bucket.
func New(limits Limits) *Limiter {
	return newWithClock(limits, time.Now)
}

func newWithClock(limits Limits, now func() time.Time) *Limiter {
	l := &Limiter{
		limits:     limits,
		now:        now,
		tokens:     limits.TokensPerMinute,
		lastRefill: now(),
	}
	if limits.MaxConcurrent > 0 {
		l.slots = make(chan struct{}, limits.MaxConcurrent)
	}
	return l
}

// Acquire waits for a concurrency slot. The returned release must be called exactly once.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if l.slots == nil {
		return func() {}, nil
	}
	select {
	case l.slots <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-l.slots }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reserve takes tokens from the bucket or fails with ErrRateLimit. A request larger than the
// whole bucket is admitted when the bucket is full, otherwise it could never run.
func (l *Limiter) Reserve(tokens int) error {
	if l.limits.TokensPerMinute <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillTokens()
	if tokens > l.limits.TokensPerMinute && l.tokens == l.limits.TokensPerMinute {
		l.tokens = 0
		return nil
	}
	if l.tokens < tokens {
		return ErrRateLimit
	}
	l.tokens -= tokens
	return nil
}

// Status returns the tokens left in the bucket and the calls in flight.
func (l *Limiter) Status() (tokens, inFlight int) {
	l.mu.Lock()
	l.refillTokens()
	tokens = l.tokens
	l.mu.Unlock()
	return tokens, len(l.slots)
}

// refillTokens tops the bucket up for every whole minute elapsed. Callers hold mu.
func (l *Limiter) refillTokens() {
	elapsed := l.now().Sub(l.lastRefill)
	if elapsed < time.Minute {
		return
	}
	minutes := int(elapsed / time.Minute)
	l.tokens += minutes * l.limits.TokensPerMinute
	if l.tokens > l.limits.TokensPerMinute {
		l.tokens = l.limits.TokensPerMinute
	}
	l.lastRefill = l.lastRefill.Add(time.Duration(minutes) * time.Minute)
}
