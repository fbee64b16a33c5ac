package store

import "time"

// isoOrNull formats t as RFC3339 (spec.md §6 "Timestamps are ISO-8601 with
// timezone offset"), or returns nil for the zero value so the column reads
// NULL rather than a bogus 0001-01-01 timestamp.
func isoOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseISO(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
