package api

import (
	"net"
	"net/http"
	"net/url"

	"github.com/markdingo/dnsbench/internal/apierr"
)

// withPolicy wraps handler with the network-policy pre-check of spec.md
// §4.8: every request's Origin header is matched against
// allow_ip_access/allow_hostname_access/custom_origins before the handler
// runs. Localhost is always permitted; requests with no Origin header
// (same-origin, curl, server-to-server) are also permitted — only
// cross-origin browser requests carry Origin.
func (s *Server) withPolicy(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.ccTrk.Add()
		defer s.ccTrk.Done()

		origin := r.Header.Get("Origin")
		if origin != "" && !s.originAllowed(origin) {
			s.error(w, r.RemoteAddr, apierr.Forbidden("origin %q is not permitted by network policy", origin))
			return
		}
		handler(w, r)
	}
}

// originAllowed evaluates an Origin header against the persisted
// network_policy document.
func (s *Server) originAllowed(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := u.Hostname()

	if isLocalhost(host) {
		return true
	}

	policy := s.cfg.NetworkPolicy()
	for _, custom := range policy.CustomOrigins {
		if custom == origin {
			return true
		}
	}

	ip := net.ParseIP(host)
	if ip != nil {
		return policy.AllowIPAccess
	}
	return policy.AllowHostnameAccess
}

func isLocalhost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
