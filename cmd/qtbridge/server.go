package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"qtbridge/internal/constants"
	"qtbridge/internal/metrics"
	"qtbridge/internal/middleware"
	"qtbridge/pkg/circuitbreaker"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Status is the body of GET /status
type Status struct {
	Version      string                 `json:"version"`
	Uptime       string                 `json:"uptime"`
	Routes       int                    `json:"routes"`
	Correlations int                    `json:"correlations"`
	PendingEcho  int                    `json:"pending_echoes"`
	CachedFiles  int                    `json:"cached_files"`
	InFlight     int64                  `json:"in_flight"`
	Receivers    map[string]bool        `json:"receivers"`
	Breakers     []circuitbreaker.Stats `json:"circuit_breakers"`
}

type StatusProvider interface {
	Status() Status
}

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	status   StatusProvider
	registry *metrics.Registry
	server   *http.Server
}

func NewServer(status StatusProvider, registry *metrics.Registry, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		status:   status,
		registry: registry,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.registry, s.logger))
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting status server on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, "/metrics", s.registry.Snapshot())
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, "/status", s.status.Status())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, endpoint string, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).WithField("endpoint", endpoint).Error("Failed to encode response")
	}
}
