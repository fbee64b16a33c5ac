package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/markdingo/dnsbench/internal/apierr"
	"github.com/markdingo/dnsbench/internal/config"
	"github.com/markdingo/dnsbench/internal/model"
	"github.com/markdingo/dnsbench/internal/store"
)

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, apierr.Invalid("method", "method %s is not supported on %s", r.Method, r.URL.Path))
}

// handleHealth implements GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLocalDNS implements GET/PUT /settings/local-dns.
func (s *Server) handleLocalDNS(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.LocalResolvers())
	case http.MethodPut:
		var doc config.LocalResolvers
		if apiErr := decodeJSON(r, &doc); apiErr != nil {
			s.error(w, r.RemoteAddr, apiErr)
			return
		}
		if err := s.cfg.PutLocalResolvers(doc); err != nil {
			s.error(w, r.RemoteAddr, apierr.Invalid("servers", "%s", err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, doc)
	default:
		methodNotAllowed(w, r)
	}
}

// handlePublicDNS implements GET/PUT /settings/public-dns.
func (s *Server) handlePublicDNS(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.PublicResolvers())
	case http.MethodPut:
		var doc config.PublicResolvers
		if apiErr := decodeJSON(r, &doc); apiErr != nil {
			s.error(w, r.RemoteAddr, apiErr)
			return
		}
		if err := s.cfg.PutPublicResolvers(doc); err != nil {
			s.error(w, r.RemoteAddr, apierr.Invalid("servers", "%s", err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, doc)
	default:
		methodNotAllowed(w, r)
	}
}

// handleTestConfig implements GET/PUT /settings/test-config.
func (s *Server) handleTestConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.TestProfile())
	case http.MethodPut:
		var doc model.TestProfile
		if apiErr := decodeJSON(r, &doc); apiErr != nil {
			s.error(w, r.RemoteAddr, apiErr)
			return
		}
		if err := s.cfg.PutTestProfile(doc); err != nil {
			s.error(w, r.RemoteAddr, apierr.Invalid("profile", "%s", err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, doc)
	default:
		methodNotAllowed(w, r)
	}
}

// handleNetworkPolicy implements GET/PUT /settings/network-policy.
func (s *Server) handleNetworkPolicy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.NetworkPolicy())
	case http.MethodPut:
		var doc config.NetworkPolicy
		if apiErr := decodeJSON(r, &doc); apiErr != nil {
			s.error(w, r.RemoteAddr, apiErr)
			return
		}
		if err := s.cfg.PutNetworkPolicy(doc); err != nil {
			s.error(w, r.RemoteAddr, apierr.Invalid("policy", "%s", err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, doc)
	default:
		methodNotAllowed(w, r)
	}
}

// benchmarkStartRequest is the POST /benchmark/start body (spec.md §4.8).
type benchmarkStartRequest struct {
	Kind             model.RunKind      `json:"kind"`
	Resolvers        []model.Resolver   `json:"resolvers,omitempty"`
	Domains          []string           `json:"domains,omitempty"`
	ProfileOverrides *model.TestProfile `json:"profile_overrides,omitempty"`
}

// handleBenchmarkStart implements POST /benchmark/start.
func (s *Server) handleBenchmarkStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}

	var req benchmarkStartRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		s.error(w, r.RemoteAddr, apiErr)
		return
	}

	if len(req.Domains) == 0 {
		s.error(w, r.RemoteAddr, apierr.Invalid("domains", "domains must not be empty"))
		return
	}

	resolvers, err := s.cfg.SelectResolvers(req.Kind, req.Resolvers)
	if err != nil {
		s.error(w, r.RemoteAddr, apierr.Invalid("resolvers", "%s", err.Error()))
		return
	}
	if len(resolvers) == 0 {
		s.error(w, r.RemoteAddr, apierr.Invalid("resolvers", "resolver list must not be empty"))
		return
	}

	profile := s.cfg.TestProfile()
	if req.ProfileOverrides != nil {
		profile = *req.ProfileOverrides
	}
	if err := config.ValidateTestProfile(profile); err != nil {
		s.error(w, r.RemoteAddr, apierr.Invalid("profile_overrides", "%s", err.Error()))
		return
	}

	runID, err := s.scheduler.Start(resolvers, req.Domains, req.Kind, profile)
	if err != nil {
		s.error(w, r.RemoteAddr, apierr.Invalid("kind", "%s", err.Error()))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": runID, "status": "started"})
}

// handleBenchmarkByID dispatches /benchmark/{id}/status and
// /benchmark/{id}/cancel.
func (s *Server) handleBenchmarkByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/benchmark/")
	runID, action, ok := splitLast(rest)
	if !ok {
		s.error(w, r.RemoteAddr, apierr.NotFound("unknown path %s", r.URL.Path))
		return
	}

	switch action {
	case "status":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r)
			return
		}
		snap, ok := s.registry.Observe(runID)
		if !ok {
			s.error(w, r.RemoteAddr, apierr.NotFound("no such run %q", runID))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          snap.Status,
			"completed_count": snap.CompletedCount,
			"total_probes":    snap.TotalProbes,
		})
	case "cancel":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		if err := s.scheduler.Cancel(runID); err != nil {
			s.error(w, r.RemoteAddr, apierr.Conflict("%s", err.Error()))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelled"})
	default:
		s.error(w, r.RemoteAddr, apierr.NotFound("unknown path %s", r.URL.Path))
	}
}

// handleResultsList implements GET /results?limit&offset.
func (s *Server) handleResultsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	runs, total, err := s.results.ListRuns(limit, offset)
	if err != nil {
		s.error(w, r.RemoteAddr, apierr.Internal())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": runs, "total": total})
}

// handleResultsByID dispatches /results/{id}, /results/{id}/domains,
// /results/{id}/failures, and /results/{id}/export.
func (s *Server) handleResultsByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/results/")
	runID, suffix, hasSuffix := splitLast(rest)
	if !hasSuffix {
		runID = rest
	}

	switch {
	case !hasSuffix:
		run, summaries, failures, ok, err := s.results.GetRun(runID)
		if err != nil {
			s.error(w, r.RemoteAddr, apierr.Internal())
			return
		}
		if !ok {
			s.error(w, r.RemoteAddr, apierr.NotFound("no such run %q", runID))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"run": run, "summaries": summaries, "failures": failures})

	case suffix == "domains":
		probes, err := s.results.GetProbes(runID)
		if err != nil {
			s.error(w, r.RemoteAddr, apierr.Internal())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"probes": probes})

	case suffix == "failures":
		analyses, err := s.results.GetFailures(runID)
		if err != nil {
			s.error(w, r.RemoteAddr, apierr.Internal())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"analyses": analyses})

	case suffix == "export":
		format := store.Format(r.URL.Query().Get("format"))
		if format == "" {
			format = store.FormatJSON
		}
		data, err := s.results.ExportRun(runID, format)
		if err != nil {
			s.error(w, r.RemoteAddr, apierr.NotFound("no such run %q", runID))
			return
		}
		contentType := "application/json"
		if format == store.FormatCSV {
			contentType = "text/csv"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", "attachment; filename=\""+runID+"."+string(format)+"\"")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)

	default:
		s.error(w, r.RemoteAddr, apierr.NotFound("unknown path %s", r.URL.Path))
	}
}

// splitLast splits "a/b" into ("a", "b", true); "a" alone returns
// ("", "", false).
func splitLast(path string) (head, tail string, ok bool) {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "", "", false
	}
	return path[:idx], path[idx+1:], true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
