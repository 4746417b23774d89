// Package server exposes the engine over HTTP: the recommendation
// query and approve/reject API, the summary projection, the websocket
// event channel, health and prometheus metrics. It is a thin surface;
// all decisions live in the approval service, the store and the
// aggregator.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/opscart/cloud-cost-optimizer/pkg/approval"
	"github.com/opscart/cloud-cost-optimizer/pkg/auth"
	"github.com/opscart/cloud-cost-optimizer/pkg/events"
	"github.com/opscart/cloud-cost-optimizer/pkg/metrics"
	"github.com/opscart/cloud-cost-optimizer/pkg/storage"
	"github.com/opscart/cloud-cost-optimizer/pkg/telemetry"
)

type Config struct {
	ListenAddr string

	// AuthDisabled maps every request to an administrative dev user.
	// Local development only.
	AuthDisabled bool

	ShutdownTimeout time.Duration
}

// Deps carries the collaborators the HTTP surface serves. Tokens may be
// nil when AuthDisabled is set; Collectors may be nil to disable the
// /metrics endpoint.
type Deps struct {
	Store      storage.Store
	Telemetry  telemetry.Provider
	Approvals  *approval.Service
	Aggregator *metrics.Aggregator
	Collectors *metrics.Collectors
	Hub        *events.Hub
	Tokens     *auth.TokenManager
	Logger     *zap.Logger
}

type Server struct {
	cfg        Config
	store      storage.Store
	telemetry  telemetry.Provider
	approvals  *approval.Service
	aggregator *metrics.Aggregator
	collectors *metrics.Collectors
	hub        *events.Hub
	tokens     *auth.TokenManager
	logger     *zap.Logger

	handler http.Handler
	http    *http.Server
}

func New(cfg Config, deps Deps) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:        cfg,
		store:      deps.Store,
		telemetry:  deps.Telemetry,
		approvals:  deps.Approvals,
		aggregator: deps.Aggregator,
		collectors: deps.Collectors,
		hub:        deps.Hub,
		tokens:     deps.Tokens,
		logger:     logger,
	}
	s.routes()

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(s.loggingMiddleware)
	if s.collectors != nil {
		router.Use(s.metricsMiddleware)
	}

	// Unauthenticated probes, same as every scraper expects.
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.collectors != nil {
		router.Handle("/metrics", s.collectors.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/recommendations", s.handleListRecommendations).Methods(http.MethodGet)
	api.HandleFunc("/recommendations/{id}", s.handleGetRecommendation).Methods(http.MethodGet)
	api.HandleFunc("/recommendations/{id}/approve", s.handleApprove).Methods(http.MethodPost)
	api.HandleFunc("/recommendations/{id}/reject", s.handleReject).Methods(http.MethodPost)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/resources", s.handleResources).Methods(http.MethodGet)

	if s.hub != nil {
		router.Handle("/ws", s.authMiddleware(s.hub)).Methods(http.MethodGet)
	}

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	s.handler = c.Handler(router)
}

// Handler returns the fully wired HTTP handler. Tests mount it on
// httptest servers instead of binding a port.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully:
// websocket clients are disconnected and in-flight requests get
// ShutdownTimeout to finish.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening",
			zap.String("addr", s.cfg.ListenAddr),
			zap.Bool("auth_disabled", s.cfg.AuthDisabled))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("HTTP server shutting down")
	if s.hub != nil {
		s.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
