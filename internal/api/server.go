// Package api implements the Request/Event Surface (C8): the HTTP+WebSocket
// front door onto the Configuration Store, Run Scheduler/Registry, and
// Result Store.
//
// The server struct and its newRouter()/start()/stop() shape are grounded
// on the teacher's cmd/trustydns-server/server.go: a plain
// http.NewServeMux(), ConnState wired to a connectiontracker.Tracker, a
// concurrencytracker.Counter tracking peak concurrent requests, and a
// generic error() responder.
package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/markdingo/dnsbench/internal/apierr"
	"github.com/markdingo/dnsbench/internal/concurrencytracker"
	"github.com/markdingo/dnsbench/internal/config"
	"github.com/markdingo/dnsbench/internal/connectiontracker"
	"github.com/markdingo/dnsbench/internal/constants"
	"github.com/markdingo/dnsbench/internal/engine"
	"github.com/markdingo/dnsbench/internal/eventbus"
	"github.com/markdingo/dnsbench/internal/store"
)

// Server holds every collaborator the HTTP surface drives: the
// configuration documents, the run registry/scheduler, the event bus, and
// the durable result store.
type Server struct {
	log *zap.Logger

	cfg       *config.Store
	registry  *engine.Registry
	scheduler *engine.Scheduler
	bus       *eventbus.Bus
	results   *store.Store

	listenAddress string
	httpServer    *http.Server
	ccTrk         *concurrencytracker.Counter
	connTrk       *connectiontracker.Tracker

	upgrader websocket.Upgrader
}

// New constructs a Server. listenAddress follows constants.Get().DefaultListenAddress
// convention (":8787").
func New(log *zap.Logger, cfg *config.Store, registry *engine.Registry, scheduler *engine.Scheduler,
	bus *eventbus.Bus, results *store.Store, listenAddress string) *Server {
	return &Server{
		log:           log,
		cfg:           cfg,
		registry:      registry,
		scheduler:     scheduler,
		bus:           bus,
		results:       results,
		listenAddress: listenAddress,
		ccTrk:         concurrencytracker.New("API Concurrency"),
		connTrk:       connectiontracker.New("API"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // network policy already gated this request
		},
	}
}

// Start launches the HTTP listener in its own goroutine and sends any
// terminal error to errorChan, mirroring the teacher's server.start().
func (s *Server) Start(errorChan chan error, wg *sync.WaitGroup) {
	s.httpServer = &http.Server{
		Addr:    s.listenAddress,
		Handler: s.newRouter(),
	}
	s.httpServer.ConnState = func(c net.Conn, state http.ConnState) {
		s.connTrk.ConnState(c.RemoteAddr().String(), time.Now(), state)
	}

	wg.Add(1)
	go func() {
		errorChan <- s.httpServer.ListenAndServe()
		wg.Done()
	}()
}

// Stop performs an orderly shutdown, mainly for tests.
func (s *Server) Stop() {
	if s.httpServer != nil {
		_ = s.httpServer.Shutdown(context.Background())
	}
}

// newRouter builds the routing table independently of Start for ease of
// testing (the teacher does the same with newRouter()).
func (s *Server) newRouter() http.Handler {
	mux := http.NewServeMux()
	c := constants.Get()

	mux.HandleFunc(c.HealthPath, s.withPolicy(s.handleHealth))
	mux.HandleFunc(c.DNSCurrentPath, s.withPolicy(s.handleDNSCurrent))

	mux.HandleFunc(c.SettingsLocalDNSPath, s.withPolicy(s.handleLocalDNS))
	mux.HandleFunc(c.SettingsPublicDNSPath, s.withPolicy(s.handlePublicDNS))
	mux.HandleFunc(c.SettingsTestConfigPath, s.withPolicy(s.handleTestConfig))
	mux.HandleFunc(c.SettingsNetworkPolicyPath, s.withPolicy(s.handleNetworkPolicy))

	mux.HandleFunc(c.BenchmarkStartPath, s.withPolicy(s.handleBenchmarkStart))
	mux.HandleFunc("/benchmark/", s.withPolicy(s.handleBenchmarkByID)) // {id}/status, {id}/cancel

	mux.HandleFunc(c.ResultsPath, s.withPolicy(s.handleResultsList))
	mux.HandleFunc("/results/", s.withPolicy(s.handleResultsByID))

	mux.HandleFunc(c.WebSocketPath, s.withPolicy(s.handleWebSocket))

	return mux
}

// error is the generic structured-error responder; every handler funnels
// its failures through here (spec.md §7).
func (s *Server) error(w http.ResponseWriter, remoteAddr string, err *apierr.Error) {
	writeError(w, err)
	if s.log != nil {
		s.log.Debug("api error", zap.String("remote", remoteAddr), zap.String("code", string(err.Code)), zap.String("message", err.Message))
	}
}
