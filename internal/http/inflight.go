package http

import (
	"context"
	"sync/atomic"
	"time"
)

// InFlightTracker counts requests that are still being served so shutdown can
// drain them after the listener closes.
type InFlightTracker struct {
	count atomic.Int64
}

// Increment marks a request as started.
func (t *InFlightTracker) Increment() { t.count.Add(1) }

// Decrement marks a request as finished.
func (t *InFlightTracker) Decrement() { t.count.Add(-1) }

// Count returns the number of requests currently in flight.
func (t *InFlightTracker) Count() int64 { return t.count.Load() }

// WaitForZero polls every checkInterval until no requests are in flight or ctx is done.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	if checkInterval <= 0 {
		checkInterval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for t.Count() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

var globalInFlightTracker = &InFlightTracker{}

// InFlightCount returns the number of API requests MetricsMiddleware is currently serving.
func InFlightCount() int64 {
	return globalInFlightTracker.Count()
}

// WaitForInFlight drains the process-wide tracker. Called from main after srv.Shutdown.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return globalInFlightTracker.WaitForZero(ctx, checkInterval)
}
