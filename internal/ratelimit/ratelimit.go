package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles outbound requests with a global token bucket plus
// stricter per-host buckets for providers that publish their own budgets.
// A request waits on the global bucket first, then the host bucket.
type Limiter struct {
	mu     sync.RWMutex
	global *rate.Limiter
	hosts  map[string]*rate.Limiter
}

// New creates a limiter with a global requests-per-second budget
func New(globalPerSecond float64) *Limiter {
	return &Limiter{
		global: rate.NewLimiter(rate.Limit(globalPerSecond), 1),
		hosts:  make(map[string]*rate.Limiter),
	}
}

// SetHostLimit installs a per-host budget expressed as events per interval.
// For example SetHostLimit("api.example.com", 30, time.Minute) allows 30
// requests per minute to that host.
func (l *Limiter) SetHostLimit(host string, events float64, per time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts[host] = rate.NewLimiter(rate.Limit(events/per.Seconds()), 1)
}

// Wait blocks until both the global and the host budget allow one request
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if err := l.global.Wait(ctx); err != nil {
		return err
	}

	l.mu.RLock()
	hl := l.hosts[host]
	l.mu.RUnlock()

	if hl != nil {
		return hl.Wait(ctx)
	}
	return nil
}

// HostLimited reports whether host has a dedicated budget
func (l *Limiter) HostLimited(host string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.hosts[host]
	return ok
}
