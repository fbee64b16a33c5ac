/*
Package concurrencytracker keeps track of how many concurrent operations are
active against some bounded resource, reporting peak concurrency over a
reporting period. This engine uses two independent instances: the API
surface's per-request concurrency (internal/api.Server.ccTrk, labelled "API
Concurrency") and the Run Scheduler's cross-resolver fan-out concurrency
(internal/engine.Scheduler.concTrk, labelled "Resolver Concurrency") — the
latter doubling as a live check on whether a run's max_concurrent_servers
bound (spec.md §3) is actually being saturated. Typical usage:

 var cct = concurrencytracker.New("Resolver Concurrency")

 func ServeSomething() {
   cct.Add()
   defer cct.Done()
   ... do some work
 }

and in some reporting function

 fmt.Println(cct.Name(), "Peak Concurrency", cct.Peak(true))
*/
package concurrencytracker

import (
	"fmt"
	"sync"
)

// Counter tracks current and peak concurrency for one named resource.
// Satisfies internal/reporter.Reporter.
type Counter struct {
	sync.Mutex
	name    string
	current int // Count of pending Done() calls
	peak    int // Max 'current' has ever reached
}

// New constructs a Counter labelled name, the label surfaced by Report.
func New(name string) *Counter {
	return &Counter{name: name}
}

// Add increments 'current' and if a new peak has been reached, the peak value is updated. Return
// true if the peak has increased as a result of this call.
func (t *Counter) Add() (increased bool) {
	t.Lock()
	defer t.Unlock() // A tad silly to defer for a tiny func, but "idioms aint idioms for nuthin', Sol!"
	t.current++
	if t.current > t.peak {
		t.peak = t.current
		increased = true
	}

	return
}

// Done decrements 'current'. Done() must only be called after an Add() call, otherwise a panic
// ensues.
func (t *Counter) Done() {
	t.Lock()
	defer t.Unlock()
	if t.current == 0 {
		panic("concurrencytracker.Done() lacks matching .Add()") // Someone goofed
	}
	t.current--
}

// Peak returns the peak concurrency count and optionally resets the peak value to the current
// concurrency value. Note that the current counter is *not* reset by this call. In fact that value
// is never rest. The reset occurs *after* the return value is set so the impact of the reset is not
// visible until a subsequent call to Peak().
func (t *Counter) Peak(resetCounters bool) (peak int) {
	t.Lock()
	defer t.Unlock()
	peak = t.peak
	if resetCounters {
		t.peak = t.current
	}

	return
}

// Name implements reporter.Reporter.
func (t *Counter) Name() string {
	return t.name
}

// Report implements reporter.Reporter.
func (t *Counter) Report(resetCounters bool) string {
	return fmt.Sprintf("peak=%d", t.Peak(resetCounters))
}
