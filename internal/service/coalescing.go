package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/surfsup-climate-api/internal/observability"
)

// call is one in-progress query that several requests may be waiting on.
type call struct {
	done    chan struct{}
	val     interface{}
	err     error
	waiters int
	cancel  context.CancelFunc

	panicked bool
	panicVal interface{}
}

// queryCoalescer merges concurrent identical queries into one store round trip.
// Nothing is kept once the query returns, so later requests always re-read the store.
type queryCoalescer struct {
	mu    sync.Mutex
	calls map[string]*call
}

func newQueryCoalescer() *queryCoalescer {
	return &queryCoalescer{calls: make(map[string]*call)}
}

// Do runs fn once per key among overlapping callers and hands every caller the same result.
// fn gets a context detached from any single caller; it is cancelled when every waiter has
// gone away, so one client disconnecting does not fail the others.
func (qc *queryCoalescer) Do(ctx context.Context, query, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	qc.mu.Lock()
	c, joined := qc.calls[key]
	if !joined {
		qctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{done: make(chan struct{}), cancel: cancel}
		qc.calls[key] = c
		go qc.run(c, key, qctx, fn)
	}
	c.waiters++
	waiters := c.waiters
	qc.mu.Unlock()

	if joined {
		observability.CoalescedQueriesTotal.WithLabelValues(query).Inc()
		observability.LoggerFromContext(ctx).Debug("joined in-flight query",
			zap.String("query", query), zap.Int("waiters", waiters))
	}

	select {
	case <-c.done:
		if c.panicked {
			panic(c.panicVal)
		}
		return c.val, c.err
	case <-ctx.Done():
		qc.leave(c, key)
		return nil, ctx.Err()
	}
}

// run executes fn and publishes its outcome. A panic in fn is handed to every waiter so it
// surfaces on the request goroutines, where the HTTP recovery middleware can see it.
func (qc *queryCoalescer) run(c *call, key string, qctx context.Context, fn func(ctx context.Context) (interface{}, error)) {
	defer func() {
		if rec := recover(); rec != nil {
			c.panicked, c.panicVal = true, rec
		}
		qc.mu.Lock()
		if qc.calls[key] == c {
			delete(qc.calls, key)
		}
		qc.mu.Unlock()
		c.cancel()
		close(c.done)
	}()
	c.val, c.err = fn(qctx)
}

// leave drops a waiter whose context ended. The last one out cancels the query and
// unregisters it so a new caller starts fresh instead of joining a cancelled call.
func (qc *queryCoalescer) leave(c *call, key string) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	c.waiters--
	if c.waiters > 0 {
		return
	}
	c.cancel()
	if qc.calls[key] == c {
		delete(qc.calls, key)
	}
}

// inFlight returns how many distinct queries are running. Used by tests.
func (qc *queryCoalescer) inFlight() int {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	return len(qc.calls)
}

// coalesce is the typed front of queryCoalescer.Do.
func coalesce[T any](ctx context.Context, qc *queryCoalescer, query, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := qc.Do(ctx, query, key, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
