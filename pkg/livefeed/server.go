package livefeed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tinyland-inc/mediassist/pkg/logger"
)

type Config struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"` // default: 127.0.0.1:8765
}

// Server serves a Hub over HTTP. A disabled server starts as a no-op.
type Server struct {
	config   Config
	hub      *Hub
	listener net.Listener
	srv      *http.Server
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

func NewServer(cfg Config, hub *Hub) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8765"
	}
	return &Server{config: cfg, hub: hub}
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("live feed already running")
	}
	if !s.config.Enabled {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Addr, err)
	}

	s.listener = ln
	s.srv = &http.Server{Handler: s.hub.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.done = make(chan struct{})
	s.running = true

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("livefeed", "Live feed server stopped", map[string]any{"error": err})
		}
	}(s.srv, s.done)

	logger.InfoCF("livefeed", "Live feed listening", map[string]any{"addr": ln.Addr().String()})
	return nil
}

// Stop closes the listener and every websocket client.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		logger.WarnCF("livefeed", "Live feed shutdown incomplete", map[string]any{"error": err})
	}
	s.hub.Close()
	<-s.done
	s.running = false
	logger.InfoC("livefeed", "Live feed stopped")
}

// Addr returns the bound address, or "" when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
