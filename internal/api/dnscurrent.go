package api

import (
	"net/http"

	"github.com/miekg/dns"
)

// resolvConfPath is the conventional Unix resolver config location; tests
// override it to a fixture file.
var resolvConfPath = "/etc/resolv.conf"

// handleDNSCurrent implements GET /dns/current (spec.md §4.8): a
// best-effort, never-authoritative hint of the host's default resolvers,
// parsed the same way the teacher's internal/resolver/local loads
// nameservers for its own fallback path. Failure to read or parse the file
// yields an empty list, never an error — this endpoint never blocks or
// fails a caller (spec.md §1 Non-goals).
func (s *Server) handleDNSCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}

	servers := []string{}
	if cc, err := dns.ClientConfigFromFile(resolvConfPath); err == nil {
		servers = cc.Servers
	}

	writeJSON(w, http.StatusOK, map[string]any{"servers": servers})
}
