// Package degraded runs background recovery after the service reports an error-rate breach.
// Each attempt pings the store; on success the error events are cleared so /health
// stops reporting degraded without waiting for the window to slide past them.
package degraded

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/surfsup-climate-api/internal/observability"
	"github.com/kjstillabower/surfsup-climate-api/internal/traffic"
)

// attemptTimeout bounds a single check call.
const attemptTimeout = 10 * time.Second

var (
	recoveryChan   chan struct{}
	recoveryChanMu sync.Mutex
)

// CheckFunc reports whether the backing store is reachable again. Returns nil when recovered.
type CheckFunc func(ctx context.Context) error

// NotifyDegraded signals that the service is degraded. Triggers recovery if not already running.
// Safe to call from handlers; non-blocking. A no-op until StartRecoveryListener has run.
func NotifyDegraded() {
	recoveryChanMu.Lock()
	ch := recoveryChan
	recoveryChanMu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// StartRecoveryListener starts a goroutine that runs RunRecovery whenever NotifyDegraded
// is called. At most one recovery runs at a time. Call from main with the app context.
func StartRecoveryListener(ctx context.Context, check CheckFunc, initial, max time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ch := make(chan struct{}, 1)
	recoveryChanMu.Lock()
	recoveryChan = ch
	recoveryChanMu.Unlock()

	var running atomic.Bool
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				if running.Swap(true) {
					continue
				}
				go func() {
					defer running.Store(false)
					RunRecovery(ctx, check, initial, max, logger)
				}()
			}
		}
	}()
}

// RunRecovery waits through Fibonacci multiples of initial (1, 2, 3, 5, 8... up to max),
// calling check after each wait. Returns true once check succeeds and error events are
// cleared; returns false when ctx ends or every attempt failed.
func RunRecovery(ctx context.Context, check CheckFunc, initial, max time.Duration, logger *zap.Logger) bool {
	if logger == nil {
		logger = zap.NewNop()
	}
	delays := fibDelays(initial, max)
	for i, d := range delays {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		err := check(attemptCtx)
		cancel()
		if err == nil {
			traffic.ClearErrors()
			observability.RecoveryAttemptsTotal.WithLabelValues("recovered").Inc()
			logger.Info("recovered from degraded state", zap.Int("attempt", i+1))
			return true
		}
		observability.RecoveryAttemptsTotal.WithLabelValues("failed").Inc()
		logger.Warn("recovery attempt failed", zap.Int("attempt", i+1), zap.Duration("waited", d), zap.Error(err))
	}
	if len(delays) > 0 {
		observability.RecoveryAttemptsTotal.WithLabelValues("exhausted").Inc()
		logger.Error("recovery attempts exhausted", zap.Int("attempts", len(delays)))
	}
	return false
}

// fibDelays returns initial scaled by 1, 2, 3, 5, 8... while the result stays within max.
func fibDelays(initial, max time.Duration) []time.Duration {
	if initial <= 0 || max < initial {
		return nil
	}
	var out []time.Duration
	for a, b := time.Duration(1), time.Duration(2); a*initial <= max; a, b = b, a+b {
		out = append(out, a*initial)
	}
	return out
}
