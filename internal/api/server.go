package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/internal/websocket"
	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/logger"
)

// RouteRegistrar is implemented by every handler group
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	checks    map[string]HealthCheck
	wsManager *websocket.Manager
	groups    []RouteRegistrar
	started   time.Time
}

// NewServer creates a new API server. wsManager may be nil when WebSocket
// sessions are disabled.
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	checks map[string]HealthCheck,
	wsManager *websocket.Manager,
	groups ...RouteRegistrar,
) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		checks:    checks,
		wsManager: wsManager,
		groups:    groups,
		started:   time.Now(),
	}

	s.setupRoutes()
	return s
}

// Router exposes the configured router (tests drive it through httptest)
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(logger.Middleware(s.logger))
	s.router.Use(s.recoveryMiddleware)

	if s.cfg.Security.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.wsManager != nil {
		apiV1.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
		s.router.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
	}

	for _, g := range s.groups {
		g.RegisterRoutes(s.router)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		if strings.Contains(err.Error(), "address already in use") {
			return fmt.Errorf("port %d is already in use, set SERVER_PORT or pass --port", s.cfg.Server.Port)
		}
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
		handlers.AllowedMethods(s.cfg.Security.CORSMethods),
		handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
	)(next)
}

// handleHealth checks the health status of all configured dependencies
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	services := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			s.logger.WithError(err).WithField("service", name).Warn("Health check failed")
			services[name] = err.Error()
			status = "degraded"
			continue
		}
		services[name] = "ok"
	}

	health := map[string]interface{}{
		"status":    status,
		"services":  services,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().Unix(),
	}
	if s.wsManager != nil {
		health["websocket_clients"] = s.wsManager.GetConnectionCount()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsManager.HandleWebSocket(w, r)
}
