package gsi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lixenwraith/killsound/constant"
	"github.com/lixenwraith/killsound/status"
)

// ServerConfig configures the listener
type ServerConfig struct {
	Addr              string
	RequestTimeout    time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Logger            *log.Logger
	Status            *status.Registry // served on GET /status when set
}

// Server hosts the game-state endpoint and implements service.Service
type Server struct {
	config  ServerConfig
	handler http.Handler
	logger  *log.Logger

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
	failed   chan error
}

// NewServer creates a listener serving handler on POST /
func NewServer(config ServerConfig, handler http.Handler) *Server {
	if config.Addr == "" {
		config.Addr = constant.DefaultListenAddr
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = constant.RequestTimeout
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = constant.ReadHeaderTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = constant.ShutdownTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		config:  config,
		handler: handler,
		logger:  logger,
		failed:  make(chan error, 1),
	}
}

// Routes sets up the HTTP routes with middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))

	r.Get("/health", s.handleHealth)
	if s.config.Status != nil {
		r.Get("/status", s.handleStatus)
	}
	r.Post("/", s.handler.ServeHTTP)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok\n")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(s.config.Status.Snapshot()); err != nil {
		s.logger.Printf("encode status: %v", err)
	}
}

// Name implements Service
func (s *Server) Name() string {
	return "gsi"
}

// Dependencies implements Service
func (s *Server) Dependencies() []string {
	return []string{"playback"}
}

// Init implements Service
// Binds the listen address so port conflicts fail startup
func (s *Server) Init(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	s.mu.Unlock()
	return nil
}

// Start implements Service
func (s *Server) Start() error {
	s.mu.Lock()
	srv, ln := s.srv, s.listener
	s.mu.Unlock()
	if srv == nil {
		return errors.New("gsi server not initialized")
	}

	s.logger.Printf("listening on http://%s", ln.Addr())
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.failed <- fmt.Errorf("serve http: %w", err)
		}
	}()
	return nil
}

// Stop implements Service
// Waits for in-flight requests up to the shutdown timeout
func (s *Server) Stop() error {
	s.mu.Lock()
	srv, ln := s.srv, s.listener
	s.srv, s.listener = nil, nil
	s.mu.Unlock()

	if ln != nil {
		// Serve may never have run
		defer ln.Close()
	}
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Failures implements service.Failer
func (s *Server) Failures() <-chan error {
	return s.failed
}

// Addr returns the bound address, nil before Init
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
