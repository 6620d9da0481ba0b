package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/geoloc/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/geoloc/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/geoloc/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

// Options wires the server's collaborators. Store, Exporter and Feed are
// optional; their routes are only mounted when set.
type Options struct {
	Addr           string
	Geo            ports.Geolocation
	Store          ports.PositionStore
	Exporter       handlers.TrackExporter
	Feed           handlers.FixSink
	TokenHash      []byte
	RateLimit      int // requests per minute per client, 0 disables
	AllowedOrigins []string
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr      string
	TokenHash []byte

	PositionHandler      *handlers.PositionHandler
	ConfigHandler        *handlers.ConfigHandler
	AuthorizationHandler *handlers.AuthorizationHandler
	WatchHandler         *handlers.WatchHandler
	HistoryHandler       *handlers.HistoryHandler
	FeedHandler          *handlers.FeedHandler
	WSManager            *websocket.WSManager
	Limiter              *middleware.RateLimiter

	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a new web server.
func NewServer(opts Options) *Server {
	s := &Server{
		Addr:                 opts.Addr,
		TokenHash:            opts.TokenHash,
		PositionHandler:      handlers.NewPositionHandler(opts.Geo),
		ConfigHandler:        handlers.NewConfigHandler(opts.Geo),
		AuthorizationHandler: handlers.NewAuthorizationHandler(opts.Geo),
		WatchHandler:         handlers.NewWatchHandler(opts.Geo),
		WSManager:            websocket.NewWSManager(opts.Geo, opts.AllowedOrigins),
		logger:               slog.Default().With("component", "web"),
	}
	if opts.Store != nil && opts.Exporter != nil {
		s.HistoryHandler = handlers.NewHistoryHandler(opts.Store, opts.Exporter, opts.Geo.Platform())
	}
	if opts.Feed != nil {
		s.FeedHandler = handlers.NewFeedHandler(opts.Feed)
	}
	if opts.RateLimit > 0 {
		s.Limiter = middleware.NewRateLimiter(opts.RateLimit, time.Minute)
	}
	return s
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(SetupRoutes(s), "geoloc-http")
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.Limiter != nil {
		go s.Limiter.Run(ctx)
	}

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("Web server shutting down")
		s.WSManager.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Web server shutdown error", "error", err)
		}
	}()

	s.logger.Info("Web server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
