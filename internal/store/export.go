package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/markdingo/dnsbench/internal/model"
)

// Format selects the export encoding of GET /results/{id}/export (spec.md §4.6).
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// exportedRun is the full nested JSON export shape (spec.md §6): the Run
// object plus its summaries, probes, and failure analyses.
type exportedRun struct {
	Run       model.Run                `json:"run"`
	Summaries []model.ServerSummary     `json:"summaries"`
	Probes    []model.ProbeResult       `json:"probes"`
	Failures  []model.FailureAnalysis   `json:"failures"`
}

// ExportRun is a pure projection of the stored rows for runID into either
// a JSON or CSV byte stream (spec.md §4.6, §6).
func (s *Store) ExportRun(runID string, format Format) ([]byte, error) {
	run, summaries, failures, ok, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("store: no such run %q", runID)
	}
	probes, err := s.GetProbes(runID)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		return json.Marshal(exportedRun{Run: run, Summaries: summaries, Probes: probes, Failures: failures})
	case FormatCSV:
		return exportSummariesCSV(summaries)
	default:
		return nil, fmt.Errorf("store: unknown export format %q", format)
	}
}

// exportSummariesCSV writes the CSV column set of spec.md §6: rank,
// server_address, display_name, success_rate_pct, avg_ms, min_ms, max_ms,
// median_ms, successful, total, timing_precision — CRLF line endings, no
// BOM, header row present, sorted by rank (summaries already arrive ranked).
func exportSummariesCSV(summaries []model.ServerSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	header := []string{"rank", "server_address", "display_name", "success_rate_pct", "avg_ms", "min_ms", "max_ms", "median_ms", "successful", "total", "timing_precision"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("store: write csv header: %w", err)
	}

	for i, s := range summaries {
		row := []string{
			strconv.Itoa(i + 1),
			s.ResolverAddress,
			s.DisplayName,
			formatFloat(s.SuccessRatePct),
			formatFloatPtr(s.AvgMs),
			formatFloatPtr(s.MinMs),
			formatFloatPtr(s.MaxMs),
			formatFloatPtr(s.MedianMs),
			strconv.Itoa(s.Successful),
			strconv.Itoa(s.Total),
			string(s.TimingPrecision),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("store: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("store: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}
