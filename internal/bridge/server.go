// Package bridge optionally republishes mission events onto an embedded
// NATS server so out-of-process subscribers can consume them without
// speaking the orchestrator's own HTTP/websocket control plane.
package bridge

import (
	"fmt"
	"sync"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Port      int
	JetStream bool
	DataDir   string
}

// EmbeddedServer wraps an in-process NATS server instance.
type EmbeddedServer struct {
	mu      sync.RWMutex
	srv     *natsserver.Server
	config  ServerConfig
	running bool
}

// NewEmbeddedServer creates (but does not start) an embedded NATS server.
func NewEmbeddedServer(cfg ServerConfig) (*EmbeddedServer, error) {
	if cfg.Port <= 0 {
		cfg.Port = 4222
	}
	if cfg.JetStream && cfg.DataDir == "" {
		return nil, fmt.Errorf("DataDir is required when JetStream is enabled")
	}
	return &EmbeddedServer{config: cfg}, nil
}

// Start launches the NATS server and blocks until it is ready for
// connections.
func (e *EmbeddedServer) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("nats server already running")
	}

	opts := &natsserver.Options{
		Host:       "127.0.0.1",
		Port:       e.config.Port,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	}
	if e.config.JetStream {
		opts.JetStream = true
		opts.StoreDir = e.config.DataDir
	}

	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return fmt.Errorf("failed to create nats server: %w", err)
	}
	e.srv = srv

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		return fmt.Errorf("nats server not ready for connections")
	}
	e.running = true
	return nil
}

// Shutdown gracefully stops the embedded server.
func (e *EmbeddedServer) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || e.srv == nil {
		return
	}
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
	e.running = false
	e.srv = nil
}

// URL returns the embedded server's client connection URL.
func (e *EmbeddedServer) URL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fmt.Sprintf("nats://127.0.0.1:%d", e.config.Port)
}

// IsRunning reports whether the embedded server is currently up.
func (e *EmbeddedServer) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}
