// Package ratelimit admits requests against per-(tenant, route) token
// buckets held in memory.
//
// Buckets refill lazily on access. A bucket starts full, an admitted request
// consumes one token and a denied one consumes nothing. Buckets for different
// keys never share a lock.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/LucasEdu07/friday-agents/pkg/metrics"
)

type key struct {
	tenant string
	route  string
}

type bucket struct {
	mu      sync.Mutex
	lim     *rate.Limiter
	rule    Rule
	evicted bool
}

// Decision is the result of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter owns the bucket table. Construct one per process and pass it to the
// pipeline; tests build their own.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[key]*bucket
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates an empty limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{buckets: make(map[key]*bucket), now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Admit checks one request for (tenantID, route) under rule. A changed rule
// is applied to the existing bucket without resetting its tokens.
func (l *Limiter) Admit(tenantID, route string, rule Rule) Decision {
	k := key{tenant: tenantID, route: route}
	for {
		b := l.bucketFor(k, rule)
		b.mu.Lock()
		if b.evicted {
			// Swept between lookup and lock; the map no longer holds it.
			b.mu.Unlock()
			continue
		}
		d := b.admit(l.now(), rule)
		b.mu.Unlock()
		return d
	}
}

func (l *Limiter) bucketFor(k key, rule Rule) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[k]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[k]; ok {
		return b
	}
	b = &bucket{
		lim:  rate.NewLimiter(rate.Limit(rule.perSecond()), rule.capacity()),
		rule: rule,
	}
	l.buckets[k] = b
	return b
}

// admit must be called with b.mu held.
func (b *bucket) admit(now time.Time, rule Rule) Decision {
	if rule != b.rule {
		b.lim.SetLimitAt(now, rate.Limit(rule.perSecond()))
		b.lim.SetBurstAt(now, rule.capacity())
		b.rule = rule
	}

	if b.lim.AllowN(now, 1) {
		return Decision{
			Allowed:   true,
			Limit:     rule.RPM,
			Remaining: int(math.Floor(b.lim.TokensAt(now))),
		}
	}

	missing := 1 - b.lim.TokensAt(now)
	wait := time.Duration(missing / rule.perSecond() * float64(time.Second))
	return Decision{Limit: rule.RPM, RetryAfter: wait}
}

// Sweep drops buckets that have refilled to capacity. Such a bucket is
// indistinguishable from a fresh one, so eviction never changes a decision.
// It returns the number of buckets removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, b := range l.buckets {
		b.mu.Lock()
		if b.lim.TokensAt(now) >= float64(b.lim.Burst()) {
			b.evicted = true
			delete(l.buckets, k)
			removed++
		}
		b.mu.Unlock()
	}
	return removed
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// SweepEvery runs Sweep on a ticker until ctx is cancelled.
func (l *Limiter) SweepEvery(ctx context.Context, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Sweep(l.now()); n > 0 {
				log.Debug("ratelimit.sweep", "evicted", n, "live", l.Len())
			}
			metrics.RateLimitBuckets.Set(float64(l.Len()))
		}
	}
}
