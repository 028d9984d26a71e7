// Package api exposes the orchestrator's two external surfaces (spec §6): a
// JSON request/response control plane over HTTP and a websocket push
// channel for mission events.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cuemby/aegis/internal/events"
	"github.com/cuemby/aegis/internal/log"
	"github.com/cuemby/aegis/internal/mission"
	"github.com/cuemby/aegis/internal/swarm"
)

// Version is the orchestrator build version reported by the health
// operation. Overwritten at link time in release builds via -ldflags.
var Version = "dev"

// defaultMaxRequestBody is used when NewServer is given a zero
// maxRequestBody (e.g. tests that don't care about the limit).
const defaultMaxRequestBody = 1 << 20 // 1MB

// Server is the HTTP control plane and websocket push channel.
type Server struct {
	httpServer *http.Server
	router     *mux.Router

	registry *mission.Registry
	swarm    *swarm.Swarm
	bus      *events.Bus

	maxRequestBody int64
	startTime      time.Time
}

// NewServer wires a control plane around an already-started Registry,
// Swarm, and Bus. maxRequestBody caps incoming JSON bodies (spec §6
// api.maxRequestBodyBytes); zero falls back to defaultMaxRequestBody. Start
// runs the HTTP listener; it does not start any of the dependencies
// themselves.
func NewServer(registry *mission.Registry, sw *swarm.Swarm, bus *events.Bus, maxRequestBody int64) *Server {
	if maxRequestBody <= 0 {
		maxRequestBody = defaultMaxRequestBody
	}
	s := &Server{
		registry:       registry,
		swarm:          sw,
		bus:            bus,
		maxRequestBody: maxRequestBody,
		startTime:      time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers the control operations table (spec §6) and the
// websocket subscription endpoint.
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(SecurityHeadersMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/missions", s.handleSubmitMission).Methods(http.MethodPost)
	api.HandleFunc("/missions", s.handleListMissions).Methods(http.MethodGet)
	api.HandleFunc("/missions/{id}", s.handleGetMission).Methods(http.MethodGet)
	api.HandleFunc("/missions/{id}/cancel", s.handleCancelMission).Methods(http.MethodPost)
	api.HandleFunc("/swarm", s.handleGetSwarm).Methods(http.MethodGet)

	s.router.HandleFunc("/ws", s.handleSubscribe)
}

// Start binds the HTTP listener at addr and blocks until it exits.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	log.WithComponent("api").Info().Str("addr", addr).Msg("control plane listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
