package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdingo/dnsbench/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun() (model.Run, []model.ServerSummary, []model.ProbeResult, model.RunAnalysis) {
	avg := 12.5
	run := model.Run{
		ID:        "run-1",
		Kind:      model.KindCustom,
		Status:    model.StatusCompleted,
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Resolvers: []model.Resolver{{Address: "8.8.8.8", DisplayName: "Google"}},
		Domains:   []string{"example.com"},
		Profile:   model.TestProfile{},
	}
	summaries := []model.ServerSummary{{
		ResolverAddress: "8.8.8.8", DisplayName: "Google", Total: 1, Successful: 1, SuccessRatePct: 100,
		AvgMs: &avg, MinMs: &avg, MaxMs: &avg, MedianMs: &avg, TimingPrecision: model.PrecisionHigh,
	}}
	probes := []model.ProbeResult{{
		ResolverAddress: "8.8.8.8", Domain: "example.com", Success: true, ElapsedMs: 12.5,
		TimingSource: model.TimingHighPrecision, ResponseCode: model.RcodeNOERROR, ErrorKind: model.ErrNone,
		ResolvedIP: "93.184.216.34", ObservedAt: time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}}
	analysis := model.RunAnalysis{}
	return run, summaries, probes, analysis
}

func TestPersistAndGetRun(t *testing.T) {
	s := openTestStore(t)
	run, summaries, probes, analysis := sampleRun()

	require.NoError(t, s.PersistRun(run, summaries, probes, analysis))

	got, gotSummaries, gotFailures, ok, err := s.GetRun("run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Status, got.Status)
	require.Len(t, gotSummaries, 1)
	assert.Equal(t, "8.8.8.8", gotSummaries[0].ResolverAddress)
	assert.Empty(t, gotFailures)
}

func TestPersistRunIsIdempotentReplace(t *testing.T) {
	s := openTestStore(t)
	run, summaries, probes, analysis := sampleRun()

	require.NoError(t, s.PersistRun(run, summaries, probes, analysis))
	require.NoError(t, s.PersistRun(run, summaries, probes, analysis))

	gotProbes, err := s.GetProbes("run-1")
	require.NoError(t, err)
	assert.Len(t, gotProbes, 1, "re-persisting must replace, not duplicate, rows")
}

func TestGetRunUnknown(t *testing.T) {
	s := openTestStore(t)
	_, _, _, ok, err := s.GetRun("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListRunsPagination(t *testing.T) {
	s := openTestStore(t)
	run, summaries, probes, analysis := sampleRun()
	for i := 0; i < 3; i++ {
		run.ID = "run-" + string(rune('a'+i))
		run.StartedAt = run.StartedAt.Add(time.Hour)
		require.NoError(t, s.PersistRun(run, summaries, probes, analysis))
	}

	rows, total, err := s.ListRuns(2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, rows, 2)
}

func TestExportRunJSONRoundTrips(t *testing.T) {
	s := openTestStore(t)
	run, summaries, probes, analysis := sampleRun()
	require.NoError(t, s.PersistRun(run, summaries, probes, analysis))

	data, err := s.ExportRun("run-1", FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"run_id\"")
	assert.Contains(t, string(data), "example.com")
}

func TestExportRunCSVShape(t *testing.T) {
	s := openTestStore(t)
	run, summaries, probes, analysis := sampleRun()
	require.NoError(t, s.PersistRun(run, summaries, probes, analysis))

	data, err := s.ExportRun("run-1", FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(string(data), "\r\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "rank,server_address,display_name,success_rate_pct,avg_ms,min_ms,max_ms,median_ms,successful,total,timing_precision", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,8.8.8.8,Google,100,12.5,12.5,12.5,12.5,1,1,high_precision"))
}
