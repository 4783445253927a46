package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tickengine/internal/config"
)

// EventProvider is the extra capability Server needs beyond StatsProvider:
// a channel of live decision/kill events to broadcast to WebSocket clients.
// Engine satisfies this by returning nil when the dashboard is disabled.
type EventProvider interface {
	StatsProvider
	DashboardEvents() <-chan DashboardEvent
}

// Server runs the HTTP/WebSocket monitoring API: a JSON snapshot endpoint,
// a Prometheus /metrics endpoint, and a WebSocket stream of recently
// published decisions.
type Server struct {
	cfg      config.DashboardConfig
	provider EventProvider
	fullCfg  config.Config
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a new dashboard server. registry is served over
// /metrics via promhttp; it is the same registry passed to
// telemetry.NewExporter so the two stay in sync.
func NewServer(
	cfg config.DashboardConfig,
	provider EventProvider,
	fullCfg config.Config,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(provider, fullCfg, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		provider: provider,
		fullCfg:  fullCfg,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start starts the WebSocket hub, the event consumer, and the HTTP server.
// It blocks until the server is shut down.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.consumeEvents()

	s.logger.Info("dashboard server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// consumeEvents relays the engine's decision/kill events to the hub.
func (s *Server) consumeEvents() {
	eventsCh := s.provider.DashboardEvents()
	if eventsCh == nil {
		return
	}
	for evt := range eventsCh {
		s.hub.BroadcastEvent(evt)
	}
}
