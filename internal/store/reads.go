package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/markdingo/dnsbench/internal/model"
)

// GetRun returns the full, persisted Run (snapshots + ranked summaries +
// failure analyses), or ok=false if no such run exists.
func (s *Store) GetRun(runID string) (model.Run, []model.ServerSummary, []model.FailureAnalysis, bool, error) {
	ctx := context.Background()

	var (
		kind, status, startedAt                                 string
		completedAt, failureReason                              sql.NullString
		resolverBlob, domainBlob, profileBlob                   string
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, status, started_at, completed_at, failure_reason, resolver_snapshot_blob, domain_snapshot_blob, profile_snapshot_blob
		FROM runs WHERE id = ?`, runID)
	err := row.Scan(&kind, &status, &startedAt, &completedAt, &failureReason, &resolverBlob, &domainBlob, &profileBlob)
	if err == sql.ErrNoRows {
		return model.Run{}, nil, nil, false, nil
	}
	if err != nil {
		return model.Run{}, nil, nil, false, fmt.Errorf("store: get run: %w", err)
	}

	run := model.Run{
		ID:            runID,
		Kind:          model.RunKind(kind),
		Status:        model.RunStatus(status),
		StartedAt:     parseISO(startedAt),
		CompletedAt:   parseISO(completedAt.String),
		FailureReason: failureReason.String,
	}
	if err := json.Unmarshal([]byte(resolverBlob), &run.Resolvers); err != nil {
		return model.Run{}, nil, nil, false, fmt.Errorf("store: unmarshal resolvers: %w", err)
	}
	if err := json.Unmarshal([]byte(domainBlob), &run.Domains); err != nil {
		return model.Run{}, nil, nil, false, fmt.Errorf("store: unmarshal domains: %w", err)
	}
	if err := json.Unmarshal([]byte(profileBlob), &run.Profile); err != nil {
		return model.Run{}, nil, nil, false, fmt.Errorf("store: unmarshal profile: %w", err)
	}

	summaries, err := s.serverSummaries(ctx, runID)
	if err != nil {
		return model.Run{}, nil, nil, false, err
	}
	failures, err := s.failureAnalyses(ctx, runID)
	if err != nil {
		return model.Run{}, nil, nil, false, err
	}
	return run, summaries, failures, true, nil
}

func (s *Store) serverSummaries(ctx context.Context, runID string) ([]model.ServerSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT resolver_address, display_name, total, successful, failed, success_rate_pct, avg_ms, min_ms, max_ms, median_ms, timing_precision
		FROM server_summaries WHERE run_id = ? ORDER BY rank_order ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: query server_summaries: %w", err)
	}
	defer rows.Close()

	var out []model.ServerSummary
	for rows.Next() {
		var s2 model.ServerSummary
		s2.RunID = runID
		var precision string
		if err := rows.Scan(&s2.ResolverAddress, &s2.DisplayName, &s2.Total, &s2.Successful, &s2.Failed,
			&s2.SuccessRatePct, &s2.AvgMs, &s2.MinMs, &s2.MaxMs, &s2.MedianMs, &precision); err != nil {
			return nil, fmt.Errorf("store: scan server_summary: %w", err)
		}
		s2.TimingPrecision = model.TimingPrecision(precision)
		out = append(out, s2)
	}
	return out, rows.Err()
}

func (s *Store) failureAnalyses(ctx context.Context, runID string) ([]model.FailureAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, failed_on_all_resolvers, failure_pattern, upstream_hint
		FROM failure_analyses WHERE run_id = ? ORDER BY domain ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: query failure_analyses: %w", err)
	}
	defer rows.Close()

	var out []model.FailureAnalysis
	for rows.Next() {
		var fa model.FailureAnalysis
		fa.RunID = runID
		var pattern, hint string
		if err := rows.Scan(&fa.Domain, &fa.FailedOnAllResolvers, &pattern, &hint); err != nil {
			return nil, fmt.Errorf("store: scan failure_analysis: %w", err)
		}
		fa.FailurePattern = model.FailurePattern(pattern)
		fa.UpstreamHint = model.UpstreamHint(hint)
		out = append(out, fa)
	}
	return out, rows.Err()
}

// GetProbes returns every ProbeResult recorded for runID.
func (s *Store) GetProbes(runID string) ([]model.ProbeResult, error) {
	ctx := context.Background()
	rows, err := s.db.QueryContext(ctx, `
		SELECT resolver_address, domain, success, elapsed_ms, timing_source, response_code, error_kind, resolved_ip, raw_summary, observed_at
		FROM probe_results WHERE run_id = ? ORDER BY observed_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: query probe_results: %w", err)
	}
	defer rows.Close()

	var out []model.ProbeResult
	for rows.Next() {
		var p model.ProbeResult
		p.RunID = runID
		var timingSource, responseCode, errorKind, observedAt string
		if err := rows.Scan(&p.ResolverAddress, &p.Domain, &p.Success, &p.ElapsedMs, &timingSource,
			&responseCode, &errorKind, &p.ResolvedIP, &p.RawSummary, &observedAt); err != nil {
			return nil, fmt.Errorf("store: scan probe_result: %w", err)
		}
		p.TimingSource = model.TimingSource(timingSource)
		p.ResponseCode = model.ResponseCode(responseCode)
		p.ErrorKind = model.ErrorKind(errorKind)
		p.ObservedAt = parseISO(observedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetFailures returns the persisted FailureAnalysis rows for runID.
func (s *Store) GetFailures(runID string) ([]model.FailureAnalysis, error) {
	return s.failureAnalyses(context.Background(), runID)
}

// RunListItem is one row of a paginated run listing.
type RunListItem struct {
	Run       model.Run
	Summaries []model.ServerSummary
}

// ListRuns returns up to limit runs ordered by started_at desc, starting
// at offset, plus the total row count (spec.md §4.6).
func (s *Store) ListRuns(limit, offset int) ([]model.Run, int, error) {
	ctx := context.Background()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, status, started_at, completed_at, failure_reason
		FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		var run model.Run
		var kind, status, startedAt string
		var completedAt, failureReason sql.NullString
		if err := rows.Scan(&run.ID, &kind, &status, &startedAt, &completedAt, &failureReason); err != nil {
			return nil, 0, fmt.Errorf("store: scan run: %w", err)
		}
		run.Kind = model.RunKind(kind)
		run.Status = model.RunStatus(status)
		run.StartedAt = parseISO(startedAt)
		run.CompletedAt = parseISO(completedAt.String)
		run.FailureReason = failureReason.String
		out = append(out, run)
	}
	return out, total, rows.Err()
}
