package store

import "fmt"

// Name implements the reporter interface.
func (s *Store) Name() string {
	return "Result Store"
}

// Report implements the reporter interface. There is nothing to reset:
// the run count reflects durable storage occupancy, not an accumulating
// counter.
func (s *Store) Report(resetCounters bool) string {
	var runs int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&runs); err != nil {
		return fmt.Sprintf("runs=? (%s)", err)
	}
	return fmt.Sprintf("runs=%d", runs)
}
