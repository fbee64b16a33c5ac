package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdingo/dnsbench/internal/config"
	"github.com/markdingo/dnsbench/internal/engine"
	"github.com/markdingo/dnsbench/internal/eventbus"
	"github.com/markdingo/dnsbench/internal/model"
	"github.com/markdingo/dnsbench/internal/store"
)

// testProber always succeeds instantly, so scheduler runs started in tests
// reach a terminal status quickly.
type testProber struct{}

func (testProber) Probe(ctx context.Context, resolverAddress, domain string, deadline time.Duration) model.ProbeResult {
	return model.ProbeResult{ResolverAddress: resolverAddress, Domain: domain, Success: true, ElapsedMs: 1, ResponseCode: model.RcodeNOERROR}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Open(t.TempDir())
	require.NoError(t, err)

	results, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { results.Close() })

	registry := engine.NewRegistry()
	bus := eventbus.New()
	scheduler := engine.NewScheduler(registry, bus, testProber{}, results, time.Minute)

	return New(nil, cfg, registry, scheduler, bus, results, ":0")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSettingsLocalDNSRoundTrip(t *testing.T) {
	s := newTestServer(t)
	router := s.newRouter()

	body, _ := json.Marshal(config.LocalResolvers{Servers: []config.LocalServer{{Address: "192.168.1.1", Enabled: true}}})
	req := httptest.NewRequest(http.MethodPut, "/settings/local-dns", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/settings/local-dns", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "192.168.1.1")
}

func TestSettingsLocalDNSRejectsInvalidAddress(t *testing.T) {
	s := newTestServer(t)
	router := s.newRouter()

	body, _ := json.Marshal(config.LocalResolvers{Servers: []config.LocalServer{{Address: "not-an-ip", Enabled: true}}})
	req := httptest.NewRequest(http.MethodPut, "/settings/local-dns", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBenchmarkStartRejectsEmptyDomains(t *testing.T) {
	s := newTestServer(t)
	router := s.newRouter()

	body, _ := json.Marshal(benchmarkStartRequest{Kind: model.KindCustom, Resolvers: []model.Resolver{{Address: "8.8.8.8"}}})
	req := httptest.NewRequest(http.MethodPost, "/benchmark/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBenchmarkStartStatusAndResults(t *testing.T) {
	s := newTestServer(t)
	router := s.newRouter()

	body, _ := json.Marshal(benchmarkStartRequest{
		Kind:      model.KindCustom,
		Resolvers: []model.Resolver{{Address: "8.8.8.8", DisplayName: "Google"}},
		Domains:   []string{"example.com"},
	})
	req := httptest.NewRequest(http.MethodPost, "/benchmark/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	runID := started["run_id"]
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/benchmark/"+runID+"/status", nil)
		router.ServeHTTP(rec, req)
		return rec.Code == http.StatusOK && bytes.Contains(rec.Body.Bytes(), []byte(`"completed"`))
	}, 2*time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/results/"+runID, nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "example.com")
}

func TestBenchmarkCancelUnknownRunConflicts(t *testing.T) {
	s := newTestServer(t)
	router := s.newRouter()
	req := httptest.NewRequest(http.MethodPost, "/benchmark/no-such-run/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResultsListPagination(t *testing.T) {
	s := newTestServer(t)
	router := s.newRouter()
	req := httptest.NewRequest(http.MethodGet, "/results?limit=5&offset=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}

func TestPolicyForbidsDisallowedOrigin(t *testing.T) {
	s := newTestServer(t)
	router := s.newRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPolicyAllowsLocalhostOrigin(t *testing.T) {
	s := newTestServer(t)
	router := s.newRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDNSCurrentNeverFailsOnMissingFile(t *testing.T) {
	old := resolvConfPath
	resolvConfPath = "/nonexistent/resolv.conf"
	defer func() { resolvConfPath = old }()

	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/dns/current", nil)
	rec := httptest.NewRecorder()
	s.newRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"servers":[]`)
}
