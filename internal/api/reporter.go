package api

import "fmt"

// Name implements the reporter interface.
func (s *Server) Name() string {
	return "API"
}

// Report implements the reporter interface. It folds in the connection
// tracker's own report line rather than registering it separately, since
// both describe the same listener.
func (s *Server) Report(resetCounters bool) string {
	return fmt.Sprintf("reqConcurrencyPeak=%d %s", s.ccTrk.Peak(resetCounters), s.connTrk.Report(resetCounters))
}
