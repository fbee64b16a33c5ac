// Package engine implements the Run Scheduler (C2) and Run Registry (C4):
// the in-memory bookkeeping and fan-out logic that drives a benchmark run
// from pending through to a terminal status.
//
// The registry's mutex-guarded state machine is grounded on the teacher's
// cmd/trustydns-server/state.go mainState()/isMain() pattern, generalized
// from one global state variable to a map keyed by run_id.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/markdingo/dnsbench/internal/model"
)

// terminalRetention is how long a terminal run stays in the in-memory
// registry after completion before eviction (spec.md §4.4); its durable
// form is already in the store by then.
const terminalRetention = 2 * time.Minute

// Snapshot is the read-only view returned by Observe.
type Snapshot struct {
	Status         model.RunStatus
	CompletedCount int
	TotalProbes    int
}

type runEntry struct {
	run            model.Run
	completedCount int
	totalProbes    int
	cancelled      bool
	cancelFunc     func()
}

var allowedTransitions = map[model.RunStatus]map[model.RunStatus]bool{
	model.StatusPending: {
		model.StatusRunning:   true,
		model.StatusCancelled: true,
		model.StatusFailed:    true,
	},
	model.StatusRunning: {
		model.StatusCompleted: true,
		model.StatusCancelled: true,
		model.StatusFailed:    true,
	},
}

// Registry holds the set of runs that are not yet evicted.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*runEntry

	// now is overridable in tests so eviction timing is deterministic.
	now func() time.Time
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[string]*runEntry),
		now:  time.Now,
	}
}

// Create registers a new pending run and returns nothing — run.ID is
// assigned by the caller (the scheduler) before Create is invoked, since
// the ID must be known to build the cancellation context first.
func (r *Registry) Create(run model.Run, totalProbes int, cancelFunc func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = &runEntry{
		run:         run,
		totalProbes: totalProbes,
		cancelFunc:  cancelFunc,
	}
}

// Transition enforces the allowed status edges in spec.md §4.4.
func (r *Registry) Transition(runID string, newStatus model.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.runs[runID]
	if !ok {
		return fmt.Errorf("engine: unknown run %q", runID)
	}
	if !allowedTransitions[e.run.Status][newStatus] {
		return fmt.Errorf("engine: illegal transition %s -> %s for run %q", e.run.Status, newStatus, runID)
	}
	e.run.Status = newStatus
	if newStatus == model.StatusCompleted || newStatus == model.StatusCancelled || newStatus == model.StatusFailed {
		e.run.CompletedAt = r.now()
		r.scheduleEviction(runID)
	}
	return nil
}

// Fail is a convenience wrapper recording a failure reason alongside the
// transition to failed.
func (r *Registry) Fail(runID, reason string) error {
	r.mu.Lock()
	e, ok := r.runs[runID]
	if ok {
		e.run.FailureReason = reason
	}
	r.mu.Unlock()
	return r.Transition(runID, model.StatusFailed)
}

// Cancel flags the run for cancellation and invokes its cancel func (which
// cancels the context threaded through in-flight probes). It does not
// itself transition status — the scheduler transitions to cancelled once
// it has stopped issuing new probes.
func (r *Registry) Cancel(runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.runs[runID]
	if !ok {
		return fmt.Errorf("engine: unknown run %q", runID)
	}
	if e.run.Status != model.StatusPending && e.run.Status != model.StatusRunning {
		return fmt.Errorf("engine: run %q is already terminal", runID)
	}
	e.cancelled = true
	if e.cancelFunc != nil {
		e.cancelFunc()
	}
	return nil
}

// IsCancelled reports whether Cancel has been called for runID.
func (r *Registry) IsCancelled(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.runs[runID]
	return ok && e.cancelled
}

// IncrementCompleted atomically bumps the completed-probe counter and
// returns the new value.
func (r *Registry) IncrementCompleted(runID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.runs[runID]
	if !ok {
		return 0
	}
	e.completedCount++
	return e.completedCount
}

// Observe returns a point-in-time snapshot of a run's status and progress.
func (r *Registry) Observe(runID string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.runs[runID]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{Status: e.run.Status, CompletedCount: e.completedCount, TotalProbes: e.totalProbes}, true
}

// Run returns a copy of the run snapshot held by the registry.
func (r *Registry) Run(runID string) (model.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.runs[runID]
	if !ok {
		return model.Run{}, false
	}
	return e.run, true
}

// scheduleEviction removes a terminal run from the registry after
// terminalRetention. Must be called with r.mu held.
func (r *Registry) scheduleEviction(runID string) {
	time.AfterFunc(terminalRetention, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.runs, runID)
	})
}
