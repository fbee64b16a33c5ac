package engine

import (
	"fmt"

	"github.com/markdingo/dnsbench/internal/model"
)

// Name implements the reporter interface.
func (r *Registry) Name() string {
	return "Registry"
}

// Report implements the reporter interface, tallying runs by status. There
// is nothing to reset: status counts reflect current registry occupancy,
// not an accumulating counter.
func (r *Registry) Report(resetCounters bool) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := map[model.RunStatus]int{}
	for _, e := range r.runs {
		counts[e.run.Status]++
	}
	return fmt.Sprintf("tracked=%d pending=%d running=%d completed=%d cancelled=%d failed=%d",
		len(r.runs), counts[model.StatusPending], counts[model.StatusRunning],
		counts[model.StatusCompleted], counts[model.StatusCancelled], counts[model.StatusFailed])
}

// Name implements the reporter interface.
func (s *Scheduler) Name() string {
	return "Scheduler"
}

// Report implements the reporter interface, exposing the peak number of
// resolvers probed at once since the last reset, summed across all runs
// in flight (one counter is shared by every run).
func (s *Scheduler) Report(resetCounters bool) string {
	return fmt.Sprintf("concurrentResolversPeak=%d", s.concTrk.Peak(resetCounters))
}
