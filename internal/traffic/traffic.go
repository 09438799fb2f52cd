// Package traffic keeps sliding windows of API outcomes for /health.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a finished API request.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Denied
)

// retention bounds how long events are kept regardless of the queried window.
const retention = 30 * time.Minute

var defaultTracker = NewTracker()

// Record records an outcome on the process-wide tracker.
func Record(o Outcome) {
	defaultTracker.Record(o)
}

// RequestCount returns the number of outcomes of any kind within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of rate-limit denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// ErrorRate returns (failures, successes+failures) within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Default returns the process-wide tracker.
func Default() *Tracker {
	return defaultTracker
}

// Reset clears the process-wide tracker. For tests only.
func Reset() {
	defaultTracker.Reset()
}

type event struct {
	at   time.Time
	kind Outcome
}

// Tracker holds timestamped outcomes in arrival order.
type Tracker struct {
	mu     sync.Mutex
	events []event
	now    func() time.Time
}

// NewTracker returns an empty tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Record appends an outcome stamped with the current time.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.events = append(t.events, event{at: now, kind: o})
	t.pruneLocked(now)
}

// RecordN appends n identical outcomes.
func (t *Tracker) RecordN(o Outcome, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for i := 0; i < n; i++ {
		t.events = append(t.events, event{at: now, kind: o})
	}
	t.pruneLocked(now)
}

// RequestCount returns the number of outcomes of any kind within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	counts := t.count(window)
	return counts[Success] + counts[Failure] + counts[Denied]
}

// DenialCount returns the number of denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	return t.count(window)[Denied]
}

// ErrorRate returns (failures, successes+failures). Denials are not errors.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	counts := t.count(window)
	return counts[Failure], counts[Failure] + counts[Success]
}

// Reset drops every recorded outcome.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

func (t *Tracker) count(window time.Duration) [3]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var counts [3]int
	cutoff := t.now().Add(-window)
	for i := len(t.events) - 1; i >= 0; i-- {
		e := t.events[i]
		if e.at.Before(cutoff) {
			break
		}
		counts[e.kind]++
	}
	return counts
}

// pruneLocked drops events older than retention. Caller holds mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
