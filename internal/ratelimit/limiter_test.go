package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLimiter_EnforcesMinimumInterval(t *testing.T) {
	const interval = 20 * time.Millisecond
	const calls = 5
	limiter := New(interval)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < calls; i++ {
		if err := limiter.Acquire(ctx, "test"); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// N calls need at least (N-1) intervals between them.
	min := time.Duration(calls-1) * interval
	if elapsed < min {
		t.Errorf("%d calls completed in %v, want at least %v", calls, elapsed, min)
	}
}

func TestLimiter_SpacingHoldsUnderConcurrency(t *testing.T) {
	const interval = 15 * time.Millisecond
	const workers = 6
	limiter := New(interval)
	ctx := context.Background()

	var mu sync.Mutex
	var grants []time.Time

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(ctx, "worker"); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(grants) != workers {
		t.Fatalf("got %d grants, want %d", len(grants), workers)
	}

	// The reservation pattern spaces grants by one interval each, so the
	// span from first to last must cover (N-1) intervals. A small
	// tolerance absorbs scheduling jitter around the recorded times.
	first, last := grants[0], grants[0]
	for _, g := range grants[1:] {
		if g.Before(first) {
			first = g
		}
		if g.After(last) {
			last = g
		}
	}
	const tolerance = 5 * time.Millisecond
	min := time.Duration(workers-1)*interval - tolerance
	if span := last.Sub(first); span < min {
		t.Errorf("%d grants spanned %v, want at least %v", workers, span, min)
	}
}

func TestLimiter_AcquireHonorsContextCancel(t *testing.T) {
	limiter := New(time.Hour)
	ctx := context.Background()

	// First acquire is immediate and books the next slot an hour out.
	if err := limiter.Acquire(ctx, "first"); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Acquire(cancelCtx, "second")
	if err == nil {
		t.Fatal("second Acquire succeeded despite an hour-long wait")
	}
	if time.Since(start) > time.Second {
		t.Errorf("cancelled Acquire took %v, should return promptly", time.Since(start))
	}
}

func TestLimiter_Stats(t *testing.T) {
	limiter := New(time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Acquire(ctx, "Auditor"); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
	}
	if err := limiter.Acquire(ctx, "Judge"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	stats := limiter.Stats()
	if stats.TotalCalls != 4 {
		t.Errorf("TotalCalls = %d, want 4", stats.TotalCalls)
	}
	if stats.ByCaller["Auditor"] != 3 {
		t.Errorf("ByCaller[Auditor] = %d, want 3", stats.ByCaller["Auditor"])
	}
	if stats.ByCaller["Judge"] != 1 {
		t.Errorf("ByCaller[Judge] = %d, want 1", stats.ByCaller["Judge"])
	}
}
