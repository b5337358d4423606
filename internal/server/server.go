package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/ohcupload/ohcupload/internal/errors"
	"github.com/ohcupload/ohcupload/internal/observability"
	"github.com/ohcupload/ohcupload/internal/server/handlers"
	servermw "github.com/ohcupload/ohcupload/internal/server/middleware"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second
)

// Options wires the uploader into the watch-mode HTTP surface.
type Options struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AdminToken   string
	Health       *handlers.HealthManager
	Status       handlers.StatusSource
	Quota        handlers.QuotaSource
	HourlyCap    int
	Trigger      handlers.Trigger
}

// Server exposes health, status, metrics and the upload trigger.
type Server struct {
	router *chi.Mux
	server *http.Server
	opts   Options
}

func New(opts Options) *Server {
	if opts.Health == nil {
		opts.Health = handlers.NewHealthManager(handlers.AppVersion)
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	// Recovery sits innermost so the metrics middleware records the 500.
	r.Use(servermw.RequestID, servermw.RequestMetrics, servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("no route for "+req.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError(req.Method+" not allowed on "+req.URL.Path))
	})

	s := &Server{router: r, opts: opts}
	s.registerRoutes()
	return s
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  orDefault(s.opts.ReadTimeout, defaultReadTimeout),
		WriteTimeout: orDefault(s.opts.WriteTimeout, defaultWriteTimeout),
		IdleTimeout:  orDefault(s.opts.IdleTimeout, defaultIdleTimeout),
	}

	if logger := observability.Logger(); logger != nil {
		logger.Info("Watch server listening", zap.String("addr", s.server.Addr))
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests. Safe to call before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if logger := observability.Logger(); logger != nil {
		logger.Info("Watch server shutting down")
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Port() int {
	return s.opts.Port
}

// Addr is the host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
