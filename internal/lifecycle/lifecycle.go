// Package lifecycle holds process-wide drain state read by /health.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// drainStarted is the unix-nano time draining began, or 0 while serving.
var drainStarted atomic.Int64

// SetShuttingDown marks the process as draining (true) or serving (false).
// The drain start time is kept from the first transition to true.
func SetShuttingDown(v bool) {
	if !v {
		drainStarted.Store(0)
		return
	}
	drainStarted.CompareAndSwap(0, time.Now().UnixNano())
}

// IsShuttingDown reports whether /health should answer shutting-down.
func IsShuttingDown() bool {
	return drainStarted.Load() != 0
}

// DrainingFor returns how long the process has been draining, or 0 while serving.
func DrainingFor() time.Duration {
	started := drainStarted.Load()
	if started == 0 {
		return 0
	}
	return time.Since(time.Unix(0, started))
}
