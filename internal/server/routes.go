package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/observability"
	"github.com/ohcupload/ohcupload/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.opts.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	s.router.Method("GET", "/status", &handlers.StatusHandler{
		Source:    s.opts.Status,
		Quota:     s.opts.Quota,
		HourlyCap: s.opts.HourlyCap,
	})
	s.router.Method("POST", "/trigger", &handlers.TriggerHandler{Trigger: s.opts.Trigger})

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes the gofulmen signal endpoint when an admin
// token is configured.
func (s *Server) registerAdminEndpoint() {
	logger := observability.Logger()

	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,  // requests per minute
		RateBurst: 5,
		Manager:   nil, // default global manager
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
