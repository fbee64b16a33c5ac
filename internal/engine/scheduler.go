package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/markdingo/dnsbench/internal/concurrencytracker"
	"github.com/markdingo/dnsbench/internal/eventbus"
	"github.com/markdingo/dnsbench/internal/model"
	"github.com/markdingo/dnsbench/internal/rank"
	"github.com/markdingo/dnsbench/internal/stats"
)

// persistRetryAttempts/persistRetryBaseDelay bound the store-write retry of
// spec.md §7 kind-3 ("a store write that fails on first attempt... retry
// the store write with bounded backoff") before a run is escalated to the
// kind-4 fatal/store_write_failed path.
const (
	persistRetryAttempts  = 3
	persistRetryBaseDelay = 50 * time.Millisecond
)

// Persister is the subset of the Result Store (C6) the scheduler needs: one
// atomic write at the end of a run. Declared here, not in internal/store,
// so the scheduler depends only on the shape it uses — the concrete
// sqlite-backed store satisfies it without an import cycle.
type Persister interface {
	PersistRun(run model.Run, summaries []model.ServerSummary, probes []model.ProbeResult, analysis model.RunAnalysis) error
}

// Prober is the subset of *probe.Prober the scheduler drives.
type Prober interface {
	Probe(ctx context.Context, resolverAddress, domain string, deadline time.Duration) model.ProbeResult
}

// Scheduler implements the Run Scheduler (C2): it fans out probes for one
// run with bounded cross-resolver concurrency and strictly serial
// per-resolver dispatch.
type Scheduler struct {
	registry *Registry
	bus      *eventbus.Bus
	prober   Prober
	store    Persister
	tracker  *rank.Tracker
	concTrk  *concurrencytracker.Counter // peak concurrently-probed resolvers, across all runs

	wallclockCap time.Duration
}

// NewScheduler wires a Scheduler from its collaborators. wallclockCap is
// the run-level safety cap of spec.md §5 (default constants.Get().DefaultRunWallclockCap).
func NewScheduler(registry *Registry, bus *eventbus.Bus, prober Prober, store Persister, wallclockCap time.Duration) *Scheduler {
	return &Scheduler{
		registry:     registry,
		bus:          bus,
		prober:       prober,
		store:        store,
		tracker:      rank.New(rank.DefaultConfig),
		concTrk:      concurrencytracker.New("Resolver Concurrency"),
		wallclockCap: wallclockCap,
	}
}

// Start creates and launches a run (spec.md §4.2 `run(resolvers, domains,
// profile) -> run_id`). It returns immediately; the run executes on its own
// goroutine.
func (s *Scheduler) Start(resolvers []model.Resolver, domains []string, kind model.RunKind, profile model.TestProfile) (string, error) {
	runID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), s.wallclockCap)

	run := model.Run{
		ID:        runID,
		Kind:      kind,
		StartedAt: time.Now(),
		Status:    model.StatusPending,
		Resolvers: resolvers,
		Domains:   domains,
		Profile:   profile,
	}
	totalProbes := len(resolvers) * len(domains)
	s.registry.Create(run, totalProbes, cancel)

	if err := s.registry.Transition(runID, model.StatusRunning); err != nil {
		cancel()
		return "", err
	}

	s.bus.Publish(runID, eventbus.Event{
		Type: eventbus.KindRunStarted,
		Payload: map[string]any{
			"run_id":       runID,
			"total_probes": totalProbes,
			"resolvers":    resolvers,
			"domains":      domains,
		},
	})

	go s.run(ctx, cancel, run, profile)

	return runID, nil
}

// Cancel implements spec.md §4.2 cancel(run_id): it is a thin pass-through
// to the registry, which both flags cancellation and cancels the run's
// context — every in-flight probe observes that through its deadline.
func (s *Scheduler) Cancel(runID string) error {
	return s.registry.Cancel(runID)
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, run model.Run, profile model.TestProfile) {
	defer cancel()

	probes := s.fanOut(ctx, run)

	finalStatus := model.StatusCompleted
	if s.registry.IsCancelled(run.ID) {
		finalStatus = model.StatusCancelled
	}
	if ctx.Err() == context.DeadlineExceeded {
		_ = s.registry.Fail(run.ID, "run_wallclock_exceeded")
		s.persistAndEmit(run, probes, model.StatusFailed)
		return
	}

	summaries, failures := stats.Summarize(run.Resolvers, probes)
	fullAnalysis := model.RunAnalysis{
		RepeatOffenders:  stats.RepeatOffenders(probes),
		FailureBreakdown: stats.FailureBreakdown(probes),
		ErrorTypeCounts:  stats.ErrorTypeCounts(probes),
		Failures:         failures,
	}

	if err := s.persistWithBackoff(withStatus(run, finalStatus), summaries, probes, fullAnalysis); err != nil {
		_ = s.registry.Fail(run.ID, "store_write_failed")
		s.emitError(run.ID, "failed to persist run results")
		return
	}

	if err := s.registry.Transition(run.ID, finalStatus); err != nil {
		s.emitError(run.ID, err.Error())
		return
	}

	switch finalStatus {
	case model.StatusCancelled:
		s.bus.Publish(run.ID, eventbus.Event{Type: eventbus.KindRunCancelled, Payload: map[string]any{"run_id": run.ID}})
	default:
		s.bus.Publish(run.ID, eventbus.Event{
			Type: eventbus.KindRunComplete,
			Payload: map[string]any{
				"run_id":      run.ID,
				"duration_ms": time.Since(run.StartedAt).Seconds() * 1000,
				"summaries":   summaries,
			},
		})
	}
}

// fanOut spawns one worker per resolver, each driving its domain list
// strictly serially (spec.md §4.2, §5). Workers share a
// max_concurrent_servers semaphore so at most that many resolvers are
// probed at once, independent of how many resolvers there are in total.
func (s *Scheduler) fanOut(ctx context.Context, run model.Run) []model.ProbeResult {
	maxConcurrent := run.Profile.Performance.MaxConcurrentServers
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	sem := make(chan struct{}, maxConcurrent)

	resultsCh := make(chan model.ProbeResult, len(run.Resolvers)*len(run.Domains))
	done := make(chan struct{}, len(run.Resolvers))

	for _, resolver := range run.Resolvers {
		resolver := resolver
		go func() {
			sem <- struct{}{}
			defer func() { <-sem }()
			s.concTrk.Add()
			defer s.concTrk.Done()
			s.driveResolver(ctx, run, resolver, resultsCh)
			done <- struct{}{}
		}()
	}

	for range run.Resolvers {
		<-done
	}
	close(resultsCh)

	probes := make([]model.ProbeResult, 0, len(run.Resolvers)*len(run.Domains))
	for r := range resultsCh {
		probes = append(probes, r)
	}
	return probes
}

// driveResolver issues one probe per domain against resolver, strictly
// serially, honoring inter_query_delay_ms between probes and retrying on
// failure up to max_retries times (spec.md §4.1, §4.2).
func (s *Scheduler) driveResolver(ctx context.Context, run model.Run, resolver model.Resolver, out chan<- model.ProbeResult) {
	perf := run.Profile.Performance
	timeout := time.Duration(perf.QueryTimeoutMs) * time.Millisecond
	delay := time.Duration(perf.InterQueryDelayMs) * time.Millisecond

	for i, domain := range run.Domains {
		if s.registry.IsCancelled(run.ID) {
			return
		}
		if ctx.Err() != nil {
			return
		}

		result := s.probeWithRetries(ctx, run.ID, resolver.Address, domain, timeout, perf.MaxRetries, delay)
		result.RunID = run.ID
		out <- result

		completed := s.registry.IncrementCompleted(run.ID)
		snap := s.tracker.Snapshot(resolver.Address)
		s.emitProbeResult(run, resolver, result, completed)
		s.emitServerProgress(run.ID, resolver, snap, i == len(run.Domains)-1)

		if i < len(run.Domains)-1 && delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
	}
}

// probeWithRetries invokes the Prober up to maxRetries+1 times. Per
// spec.md §4.1: elapsed time reported downstream is always the last
// attempt's; success is true if any attempt succeeded; inter_query_delay
// also separates retries (spec.md §9 open-question decision).
func (s *Scheduler) probeWithRetries(ctx context.Context, runID, resolverAddress, domain string, timeout time.Duration, maxRetries int, delay time.Duration) model.ProbeResult {
	var last model.ProbeResult
	anySucceeded := false
	var succeededResult model.ProbeResult

	for attempt := 0; attempt <= maxRetries; attempt++ {
		last = s.prober.Probe(ctx, resolverAddress, domain, timeout)
		s.tracker.Record(resolverAddress, last.Success, time.Duration(last.ElapsedMs*float64(time.Millisecond)))
		if last.Success {
			anySucceeded = true
			succeededResult = last
			break
		}
		if attempt < maxRetries {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					break
				}
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	if anySucceeded {
		return succeededResult
	}
	return last
}

func (s *Scheduler) emitProbeResult(run model.Run, resolver model.Resolver, result model.ProbeResult, completed int) {
	s.bus.Publish(run.ID, eventbus.Event{
		Type: eventbus.KindProbeResult,
		Payload: map[string]any{
			"run_id":                  run.ID,
			"resolver_address":        resolver.Address,
			"resolver_display_name":   resolver.DisplayName,
			"domain":                  result.Domain,
			"success":                 result.Success,
			"elapsed_ms":              result.ElapsedMs,
			"timing_source":           result.TimingSource,
			"error_kind":              result.ErrorKind,
			"response_code":           result.ResponseCode,
			"resolved_ip":             result.ResolvedIP,
			"completed_count":         completed,
			"total_probes":            len(run.Resolvers) * len(run.Domains),
		},
	})
}

func (s *Scheduler) emitServerProgress(runID string, resolver model.Resolver, snap rank.Snapshot, lastForResolver bool) {
	s.bus.Publish(runID, eventbus.Event{
		Type: eventbus.KindServerProgress,
		Payload: map[string]any{
			"run_id":           runID,
			"resolver_address": resolver.Address,
			"running_avg_ms":   snap.RunningAvgMs,
			"successful":       snap.Successful,
			"total":            snap.Total,
			"in_flight":        !lastForResolver,
		},
	})
}

func (s *Scheduler) emitError(runID, message string) {
	s.bus.Publish(runID, eventbus.Event{
		Type:    eventbus.KindRunError,
		Payload: map[string]any{"run_id": runID, "message": message},
	})
}

func (s *Scheduler) persistAndEmit(run model.Run, probes []model.ProbeResult, status model.RunStatus) {
	summaries, failures := stats.Summarize(run.Resolvers, probes)
	analysis := model.RunAnalysis{
		RepeatOffenders:  stats.RepeatOffenders(probes),
		FailureBreakdown: stats.FailureBreakdown(probes),
		ErrorTypeCounts:  stats.ErrorTypeCounts(probes),
		Failures:         failures,
	}
	if err := s.persistWithBackoff(withStatus(run, status), summaries, probes, analysis); err != nil {
		_ = s.registry.Fail(run.ID, "store_write_failed")
	}
	s.emitError(run.ID, "run_wallclock_exceeded")
}

// persistWithBackoff retries a failed PersistRun up to persistRetryAttempts
// times with doubling backoff (spec.md §7 kind-3) before returning the last
// error to the caller, which then escalates to the kind-4 fatal path.
func (s *Scheduler) persistWithBackoff(run model.Run, summaries []model.ServerSummary, probes []model.ProbeResult, analysis model.RunAnalysis) error {
	var err error
	for attempt := 0; attempt < persistRetryAttempts; attempt++ {
		if err = s.store.PersistRun(run, summaries, probes, analysis); err == nil {
			return nil
		}
		if attempt < persistRetryAttempts-1 {
			time.Sleep(persistRetryBaseDelay * time.Duration(1<<attempt))
		}
	}
	return err
}

func withStatus(run model.Run, status model.RunStatus) model.Run {
	run.Status = status
	run.CompletedAt = time.Now()
	return run
}
