// Package traffic keeps a short sliding window of request outcomes. The health handler
// reads it for overload (rate-limit denials) and degraded (error rate) decisions.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a finished request.
type Outcome int

const (
	Success Outcome = iota
	Error
	Denied
)

// retention bounds memory; windows longer than this see at most this much history.
const retention = 5 * time.Minute

var defaultTracker = NewTracker(time.Now)

// RecordSuccess records a request answered without an internal error (4xx counts as success).
func RecordSuccess() { defaultTracker.Record(Success, 1) }

// RecordError records a request answered with 5xx.
func RecordError() { defaultTracker.Record(Error, 1) }

// RecordDenied records a rate-limit denial (429).
func RecordDenied() { defaultTracker.Record(Denied, 1) }

// RecordErrorN records n errors at once. Used by testing mode to force the degraded state.
func RecordErrorN(n int) { defaultTracker.Record(Error, n) }

// RequestCount returns success + error + denied within the window.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns denials within the window.
func DenialCount(window time.Duration) int { return defaultTracker.Count(Denied, window) }

// ErrorRate returns (errors, successes+errors) within the window.
func ErrorRate(window time.Duration) (errors, total int) { return defaultTracker.ErrorRate(window) }

// Reset clears the default tracker.
func Reset() { defaultTracker.Reset() }

// ClearErrors drops error events from the default tracker.
func ClearErrors() { defaultTracker.ClearErrors() }

type event struct {
	at      time.Time
	outcome Outcome
}

// Tracker is a mutex-guarded, time-ordered list of outcome events.
type Tracker struct {
	mu     sync.Mutex
	now    func() time.Time
	events []event
}

// NewTracker returns a Tracker that reads the clock from now.
func NewTracker(now func() time.Time) *Tracker {
	return &Tracker{now: now}
}

// Record appends n events of the given outcome at the current time.
func (t *Tracker) Record(o Outcome, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for i := 0; i < n; i++ {
		t.events = append(t.events, event{at: now, outcome: o})
	}
	t.pruneLocked(now)
}

// Count returns the number of events of outcome o within the window.
func (t *Tracker) Count(o Outcome, window time.Duration) int {
	counts := t.counts(window)
	return counts[o]
}

// RequestCount returns all events within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	c := t.counts(window)
	return c[Success] + c[Error] + c[Denied]
}

// ErrorRate returns (errors, successes+errors) within the window; denials are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	c := t.counts(window)
	return c[Error], c[Error] + c[Success]
}

// Reset drops all events.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

// ClearErrors drops error events and keeps successes and denials, closing the degraded
// window without hiding overload.
func (t *Tracker) ClearErrors() {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.events[:0]
	for _, e := range t.events {
		if e.outcome != Error {
			kept = append(kept, e)
		}
	}
	t.events = kept
}

func (t *Tracker) counts(window time.Duration) [3]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.pruneLocked(now)
	cutoff := now.Add(-window)
	var c [3]int
	for i := len(t.events) - 1; i >= 0 && !t.events[i].at.Before(cutoff); i-- {
		c[t.events[i].outcome]++
	}
	return c
}

// pruneLocked drops events older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
