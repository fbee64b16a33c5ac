// Package store implements the Result Store (C6): a sqlite-backed,
// single-writer-per-run durable store with a small relational API for
// runs, server summaries, probe results, and failure analyses.
//
// The database/sql + modernc.org/sqlite open/schema pattern is grounded on
// the pack sibling go-mizu-mizu/blueprints/bot/store/sqlite (Store.New /
// Store.createSchema): WAL mode, a single *sql.DB, migrations expressed as
// a slice of CREATE TABLE/INDEX IF NOT EXISTS statements run at startup.
// modernc.org/sqlite itself is also the driver the domain pack's own DNS
// benchmark reference (other_examples' james-gonzalez-dns-benchmark)
// depends on for exactly this purpose.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/markdingo/dnsbench/internal/model"
)

// Store is the durable backing for run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and ensures
// its schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id                    TEXT PRIMARY KEY,
			kind                  TEXT NOT NULL,
			status                TEXT NOT NULL,
			started_at            TEXT NOT NULL,
			completed_at          TEXT,
			failure_reason        TEXT NOT NULL DEFAULT '',
			resolver_snapshot_blob TEXT NOT NULL,
			domain_snapshot_blob   TEXT NOT NULL,
			profile_snapshot_blob  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,

		`CREATE TABLE IF NOT EXISTS server_summaries (
			run_id            TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			resolver_address  TEXT NOT NULL,
			display_name      TEXT NOT NULL,
			total             INTEGER NOT NULL,
			successful        INTEGER NOT NULL,
			failed            INTEGER NOT NULL,
			success_rate_pct  REAL NOT NULL,
			avg_ms            REAL,
			min_ms            REAL,
			max_ms            REAL,
			median_ms         REAL,
			timing_precision  TEXT NOT NULL,
			rank_order        INTEGER NOT NULL,
			PRIMARY KEY (run_id, resolver_address)
		)`,

		`CREATE TABLE IF NOT EXISTS probe_results (
			run_id            TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			resolver_address  TEXT NOT NULL,
			domain            TEXT NOT NULL,
			success           INTEGER NOT NULL,
			elapsed_ms        REAL NOT NULL,
			timing_source     TEXT NOT NULL,
			response_code     TEXT NOT NULL,
			error_kind        TEXT NOT NULL,
			resolved_ip       TEXT NOT NULL DEFAULT '',
			raw_summary       TEXT NOT NULL DEFAULT '',
			observed_at       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_probes_run ON probe_results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_probes_run_domain ON probe_results(run_id, domain)`,
		`CREATE INDEX IF NOT EXISTS idx_probes_run_resolver ON probe_results(run_id, resolver_address)`,

		`CREATE TABLE IF NOT EXISTS failure_analyses (
			run_id                  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			domain                  TEXT NOT NULL,
			failed_on_all_resolvers INTEGER NOT NULL,
			failure_pattern         TEXT NOT NULL,
			upstream_hint           TEXT NOT NULL,
			PRIMARY KEY (run_id, domain)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

// PersistRun writes every row for one run inside a single transaction.
// Re-persisting a run id replaces its prior rows (spec.md §4.6: "an
// idempotent replace").
func (s *Store) PersistRun(run model.Run, summaries []model.ServerSummary, probes []model.ProbeResult, analysis model.RunAnalysis) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	for _, table := range []string{"server_summaries", "probe_results", "failure_analyses"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE run_id = ?", table), run.ID); err != nil {
			return fmt.Errorf("store: clear %s: %w", table, err)
		}
	}

	resolverBlob, err := json.Marshal(run.Resolvers)
	if err != nil {
		return fmt.Errorf("store: marshal resolvers: %w", err)
	}
	domainBlob, err := json.Marshal(run.Domains)
	if err != nil {
		return fmt.Errorf("store: marshal domains: %w", err)
	}
	profileBlob, err := json.Marshal(run.Profile)
	if err != nil {
		return fmt.Errorf("store: marshal profile: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, status, started_at, completed_at, failure_reason, resolver_snapshot_blob, domain_snapshot_blob, profile_snapshot_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind, status=excluded.status, started_at=excluded.started_at,
			completed_at=excluded.completed_at, failure_reason=excluded.failure_reason,
			resolver_snapshot_blob=excluded.resolver_snapshot_blob, domain_snapshot_blob=excluded.domain_snapshot_blob,
			profile_snapshot_blob=excluded.profile_snapshot_blob`,
		run.ID, run.Kind, run.Status, isoOrNull(run.StartedAt), isoOrNull(run.CompletedAt), run.FailureReason,
		string(resolverBlob), string(domainBlob), string(profileBlob))
	if err != nil {
		return fmt.Errorf("store: upsert run: %w", err)
	}

	for rank, summary := range summaries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO server_summaries (run_id, resolver_address, display_name, total, successful, failed, success_rate_pct, avg_ms, min_ms, max_ms, median_ms, timing_precision, rank_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, summary.ResolverAddress, summary.DisplayName, summary.Total, summary.Successful, summary.Failed,
			summary.SuccessRatePct, summary.AvgMs, summary.MinMs, summary.MaxMs, summary.MedianMs, summary.TimingPrecision, rank)
		if err != nil {
			return fmt.Errorf("store: insert server_summary: %w", err)
		}
	}

	for _, probe := range probes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO probe_results (run_id, resolver_address, domain, success, elapsed_ms, timing_source, response_code, error_kind, resolved_ip, raw_summary, observed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, probe.ResolverAddress, probe.Domain, probe.Success, probe.ElapsedMs, probe.TimingSource,
			probe.ResponseCode, probe.ErrorKind, probe.ResolvedIP, probe.RawSummary, isoOrNull(probe.ObservedAt))
		if err != nil {
			return fmt.Errorf("store: insert probe_result: %w", err)
		}
	}

	for _, fa := range analysis.Failures {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO failure_analyses (run_id, domain, failed_on_all_resolvers, failure_pattern, upstream_hint)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, fa.Domain, fa.FailedOnAllResolvers, fa.FailurePattern, fa.UpstreamHint)
		if err != nil {
			return fmt.Errorf("store: insert failure_analysis: %w", err)
		}
	}

	return tx.Commit()
}
