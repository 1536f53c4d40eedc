// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tvshim/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router sets up HTTP routes using Chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all routes. Paths are flat because existing clients
// call them that way.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // must be global to answer OPTIONS preflight
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	h := router.handler

	// Health and Prometheus
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitHealth))
		r.Get("/health", h.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Television operations
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())

		r.Get("/test-adb", h.TestADB)
		r.Get("/devices", h.Devices)
		r.Post("/connect-tv", h.ConnectTV)
		r.Post("/disconnect-tv", h.DisconnectTV)
		r.Post("/test-connection", h.TestConnection)
		r.Post("/test-all-connections", h.TestAllConnections)
		r.Post("/switch-to-hdmi2", h.SwitchToHDMI2)
		r.Post("/set-hdmi-input", h.SetHDMIInput)
		r.Post("/play-timeout-video", h.PlayTimeoutVideo)
		r.Post("/send-key", h.SendKey)
		r.Post("/tv-control", h.TVControl)
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitDaemon)).Post("/restart-adb", h.RestartADB)
	})

	// Rental monitor
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())

		r.Post("/start-rental-monitor", h.StartRentalMonitor)
		r.Post("/stop-rental-monitor/{rentalID}", h.StopRentalMonitor)
		r.Post("/rental-timeout", h.RentalTimeout)
		r.Get("/monitors", h.Monitors)
		r.Get("/audit", h.AuditEvents)
	})

	// Long-lived streams
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitStream))
		r.Get("/events/{rentalID}", h.RentalEvents)
		r.Get("/ws", h.WebSocket)
	})

	return r
}
