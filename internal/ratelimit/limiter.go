// Package ratelimit enforces the minimum interval between oracle calls.
// One Limiter is shared by every role agent in a run: it is the single
// piece of genuinely shared mutable state in the system, so all clock
// mutation happens under its mutex.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeswarm/internal/logging"
)

// Limiter is a shared quota clock. Acquire blocks the caller until the
// configured interval has elapsed since the previous grant.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	nextAllowed time.Time

	// Metrics
	totalCalls    int64
	totalWaitNs   int64
	callerCounts  map[string]int64
	callerCountMu sync.Mutex

	start time.Time
}

// New creates a limiter with a fixed per-deployment interval.
// The interval is not renegotiated at runtime; backoff on throttling is
// the retry wrapper's job, not the limiter's.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval:     interval,
		callerCounts: make(map[string]int64),
		start:        time.Now(),
	}
}

// Interval returns the configured minimum spacing between grants.
func (l *Limiter) Interval() time.Duration { return l.interval }

// Acquire blocks until the quota clock permits another call, then records
// the grant. Concurrent callers are serialized: each grant reserves the
// next slot under the lock, so the spacing guarantee holds regardless of
// how many workflows share the limiter. Returns early only if ctx is done.
func (l *Limiter) Acquire(ctx context.Context, caller string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	now := time.Now()
	grant := l.nextAllowed
	if grant.Before(now) {
		grant = now
	}
	l.nextAllowed = grant.Add(l.interval)
	l.mu.Unlock()

	wait := time.Until(grant)
	if wait > 0 {
		logging.RateLimit("%s waiting %v for quota slot", caller, wait.Round(time.Millisecond))
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		atomic.AddInt64(&l.totalWaitNs, int64(wait))
	}

	atomic.AddInt64(&l.totalCalls, 1)
	l.callerCountMu.Lock()
	l.callerCounts[caller]++
	l.callerCountMu.Unlock()
	return nil
}

// Stats is a point-in-time snapshot of limiter activity.
type Stats struct {
	TotalCalls     int64
	TotalWait      time.Duration
	Elapsed        time.Duration
	CallsPerMinute float64
	ByCaller       map[string]int64
}

// Stats returns usage counters since the limiter was created.
func (l *Limiter) Stats() Stats {
	elapsed := time.Since(l.start)
	total := atomic.LoadInt64(&l.totalCalls)

	s := Stats{
		TotalCalls: total,
		TotalWait:  time.Duration(atomic.LoadInt64(&l.totalWaitNs)),
		Elapsed:    elapsed,
		ByCaller:   make(map[string]int64),
	}
	if elapsed > 0 {
		s.CallsPerMinute = float64(total) / elapsed.Minutes()
	}

	l.callerCountMu.Lock()
	for caller, n := range l.callerCounts {
		s.ByCaller[caller] = n
	}
	l.callerCountMu.Unlock()
	return s
}
