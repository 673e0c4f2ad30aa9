// Package http provides HTTP routing and middleware configuration
// for the fixture server.
package http

import (
	"net/http"

	"github.com/atinyakov/binfixture/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP handler serving the fixture API.
//
// Routes:
//
//	POST /api/devices                   → deviceHandler.Create
//	GET  /api/devices                   → deviceHandler.List
//	POST /api/devices/{id}/scan         → deviceHandler.Refresh
//	GET  /api/devices/{id}/register.png → deviceHandler.RegisterQR
//	GET  /api/devices/{id}/scan.png     → deviceHandler.ScanQR
//	GET  /api/invalid.png               → deviceHandler.InvalidQR
//	GET  /metrics                       → metrics (when non-nil)
func NewRouter(
	deviceHandler *DeviceHandler,
	metrics http.Handler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			// JSON bodies only; empty bodies pass through.
			r.With(chiMiddleware.AllowContentType("application/json")).Post("/", deviceHandler.Create)
			r.Get("/", deviceHandler.List)
			r.Post("/{id}/scan", deviceHandler.Refresh)
			r.Get("/{id}/register.png", deviceHandler.RegisterQR)
			r.Get("/{id}/scan.png", deviceHandler.ScanQR)
		})
		r.Get("/invalid.png", deviceHandler.InvalidQR)
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	return r
}
