// Package http serves the player's control API, the stream proxy, and the
// usual health and metrics endpoints.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ragam/internal/core"
	"ragam/internal/history"
	"ragam/internal/resolver"
	"ragam/internal/store"
)

// Deps are the collaborators the HTTP surface drives.
type Deps struct {
	Engine      *core.Engine
	Settings    *store.Settings
	Search      *resolver.SearchClient
	Streams     *resolver.StreamClient
	Instances   *store.InstanceLister
	History     *history.Recorder
	Recommender core.Recommender
}

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
	deps    Deps

	proxyClient *http.Client
}

func NewServer(config *core.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	s := &Server{
		config:  config,
		logger:  logger,
		metrics: newMetrics(),
		deps:    deps,
		// No overall timeout: audio streams run long. Dialing still times out.
		proxyClient: &http.Client{},
	}

	s.server = createHTTPServer(config, s.setupRoutes())
	return s
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"ragam"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"ragam"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/proxy", s.handleProxy)
	mux.HandleFunc("/scrape", s.handleScrape)

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/play", s.handlePlay)
	mux.HandleFunc("/api/pause", s.handlePause)
	mux.HandleFunc("/api/next", s.handleNext)
	mux.HandleFunc("/api/previous", s.handlePrevious)
	mux.HandleFunc("/api/seek", s.handleSeek)
	mux.HandleFunc("/api/volume", s.handleVolume)
	mux.HandleFunc("/api/queue", s.handleQueue)
	mux.HandleFunc("/api/shuffle", s.handleShuffle)
	mux.HandleFunc("/api/repeat", s.handleRepeat)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/instances", s.handleInstances)
	mux.HandleFunc("/api/recommendations", s.handleRecommendations)

	mux.HandleFunc("/", homeHandler())

	return mux
}

func homeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Ragam</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
    </style>
</head>
<body>
    <h1>Ragam</h1>
    <p>Personal music player backend</p>

    <h2>Endpoints</h2>
    <div class="endpoint"><a href="/api/status">Status</a> - Player state</div>
    <div class="endpoint"><a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint"><a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint"><a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`))
	}
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}
