// Package web serves the dashboard API and the live update stream used by
// display clients.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/kipmarine/kipdash/internal/dashboard"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8766"

// Config holds configuration for the server.
type Config struct {
	Addr      string
	Store     *dashboard.Store
	Actions   *dashboard.WidgetActionBus
	Static    *dashboard.StaticFlag
	Navigator *Navigator
	Logger    *slog.Logger
}

// Server is the HTTP server.
type Server struct {
	addr     string
	handlers *Handlers
	nav      *Navigator
	logger   *slog.Logger
}

// NewServer creates a server. Missing collaborators get fresh instances.
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Actions == nil {
		cfg.Actions = dashboard.NewWidgetActionBus()
	}
	if cfg.Static == nil {
		cfg.Static = dashboard.NewStaticFlag()
	}
	if cfg.Navigator == nil {
		cfg.Navigator = NewNavigator()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		addr:     cfg.Addr,
		handlers: NewHandlers(cfg.Store, cfg.Actions, cfg.Static, cfg.Navigator),
		nav:      cfg.Navigator,
		logger:   cfg.Logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
	)
	SetupRoutes(r, s.handlers)
	return r
}

// SetupRoutes registers the API on router.
func SetupRoutes(router chi.Router, h *Handlers) {
	router.Get("/updates", h.Updates)

	router.Route("/api", func(r chi.Router) {
		r.Route("/dashboards", func(r chi.Router) {
			r.Get("/", h.ListDashboards)
			r.Post("/", h.CreateDashboard)
			r.Get("/{index}", h.GetDashboard)
			r.Put("/{index}", h.UpdateDashboard)
			r.Delete("/{index}", h.DeleteDashboard)
			r.Post("/{index}/duplicate", h.DuplicateDashboard)
			r.Put("/{index}/configuration", h.UpdateConfiguration)
		})

		r.Get("/active", h.GetActive)
		r.Put("/active", h.SetActive)
		r.Post("/active/next", h.NextActive)
		r.Post("/active/previous", h.PreviousActive)

		r.Post("/navigate/active", h.NavigateActive)
		r.Post("/navigate/next", h.NavigateNext)
		r.Post("/navigate/previous", h.NavigatePrevious)
		r.Post("/navigate/{index}", h.NavigateTo)

		r.Post("/widgets/{id}/delete", h.RequestWidgetDelete)
		r.Post("/widgets/{id}/duplicate", h.RequestWidgetDuplicate)

		r.Get("/layout/static", h.GetStatic)
		r.Put("/layout/static", h.SetStatic)
		r.Post("/layout/static/toggle", h.ToggleStatic)
	})
}

// requestLogger logs requests through slog. The SSE stream is only logged
// at debug level since it stays open.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if r.URL.Path == "/updates" {
			level = slog.LevelDebug
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Serve starts the server and the navigator and blocks until ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		return s.nav.Run(egctx)
	})

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down HTTP server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
