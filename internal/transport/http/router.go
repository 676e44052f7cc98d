// Package httptransport is the thin HTTP layer over the reconciliation
// services. Handlers delegate to domain services without embedding
// business logic so transport concerns remain isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"domainwatch/internal/platform/middleware"
)

// NewRouter wires all endpoints. Trigger endpoints sit behind bearer
// auth; health and metrics stay open for probes and scrapers.
func NewRouter(h *Handler, signingKey string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(signingKey, logger))
		r.Post("/reconcile", h.handleReconcile)
		r.Post("/jobs/enqueue", h.handleEnqueue)
		r.Post("/jobs/run", h.handleRunBatch)
		r.Post("/notifications/sweep", h.handleSweep)
		r.Post("/reminders/run", h.handleReminders)
	})

	return r
}
