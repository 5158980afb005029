package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rehanbawakhan/vdetection/internal/web/handlers"
	"github.com/rehanbawakhan/vdetection/internal/web/middleware"
)

const alertLimitMessage = "Too many detection alerts. Slow down."

func (s *Server) setupRoutes() {
	cfg := s.config
	store := s.deps.Store

	// Create handlers
	authHandler := handlers.NewAuthHandler(cfg, store, s.tokens, s.log)
	facesHandler := handlers.NewFacesHandler(cfg, store, s.deps.Matcher, s.deps.Metrics, s.log)
	historyHandler := handlers.NewHistoryHandler(cfg, store, s.log)
	alertsHandler := handlers.NewAlertsHandler(cfg, store, s.deps.Notifier, s.deps.Metrics, s.log)
	pushHandler := handlers.NewPushHandler(cfg, store, s.log)
	settingsHandler := handlers.NewSettingsHandler(cfg, store, s.log)

	authLimiter := middleware.NewRateLimiter("auth", cfg.Limits.AuthRequests, cfg.Limits.AuthWindow, "").
		WithMetrics(s.deps.Metrics)
	alertLimiter := middleware.NewRateLimiter("alert", cfg.Limits.AlertRequests, cfg.Limits.AlertWindow, alertLimitMessage).
		WithMetrics(s.deps.Metrics)
	requireAuth := middleware.RequireAuth(s.tokens)

	// Health check and metrics (no auth required)
	s.router.Get("/health", handlers.HealthCheck)
	s.router.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	s.router.NotFound(handlers.NotFound)
	s.router.MethodNotAllowed(handlers.MethodNotAllowed)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Handler)

			r.Post("/login", authHandler.Login)
			r.Post("/face-login", authHandler.FaceLogin)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
				r.Post("/pin", authHandler.VerifyPIN)
			})
		})

		// Face-login page needs the admin descriptor before anyone is signed in
		r.Get("/public-faces", facesHandler.PublicFaces)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			// Known faces
			r.Get("/known-faces", facesHandler.List)
			r.Post("/known-faces", facesHandler.Create)
			r.Put("/known-faces/{id}", facesHandler.Update)
			r.Delete("/known-faces/{id}", facesHandler.Delete)
			r.Post("/match", facesHandler.Match)

			// History
			r.Get("/history", historyHandler.List)
			r.Post("/history", historyHandler.Create)
			r.Delete("/history", historyHandler.Clear)
			r.Get("/history/{id}/thumbnail", historyHandler.Thumbnail)

			// Alerts
			r.With(alertLimiter.Handler).Post("/alert", alertsHandler.Create)
			r.Get("/alerts", alertsHandler.List)

			// Web Push
			r.Post("/subscribe", pushHandler.Subscribe)
			r.Get("/push-key", pushHandler.PublicKey)

			// Settings (/config is the older name)
			r.Get("/settings", settingsHandler.Get)
			r.Post("/settings", settingsHandler.UpdateSettings)
			r.Get("/config", settingsHandler.Get)
			r.Post("/config", settingsHandler.UpdateConfig)
		})
	})
}
