// Package http provides the HTTP server and API routing.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/K4R7IK/vulnmanage/internal/infra/http/handler"
	"github.com/K4R7IK/vulnmanage/internal/infra/http/middleware"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// Handlers bundles the API handlers the router mounts.
type Handlers struct {
	Company *handler.CompanyHandler
	Import  *handler.ImportHandler
	Summary *handler.SummaryHandler
	Finding *handler.FindingHandler
	SLA     *handler.SLAHandler
	Health  *handler.HealthHandler
}

// NewRouter builds the chi router with the full middleware stack and
// API routes.
func NewRouter(h Handlers, maxBodySize int64, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.BodyLimit(maxBodySize),
		middleware.Metrics(),
		middleware.Logger(log),
	)

	r.Get("/healthz", h.Health.Live)
	r.Get("/readyz", h.Health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/companies", func(r chi.Router) {
			r.Post("/", h.Company.Create)
			r.Get("/", h.Company.List)

			r.Route("/{companyID}", func(r chi.Router) {
				r.Get("/", h.Company.Get)
				r.Patch("/", h.Company.Rename)
				r.Delete("/", h.Company.Delete)

				r.Post("/imports", h.Import.Upload)

				r.Get("/periods", h.Finding.Periods)
				r.Get("/periods/{periodLabel}/findings", h.Finding.ListInPeriod)
				r.Get("/periods/{periodLabel}/overdue", h.SLA.Overdue)

				r.Get("/summaries", h.Summary.List)
				r.Post("/summaries/recalculate", h.Summary.Recalculate)
				r.Get("/summaries/{periodLabel}", h.Summary.Get)

				r.Post("/sla-policies", h.SLA.Create)
				r.Get("/sla-policies", h.SLA.List)
			})
		})

		r.Get("/imports/{operationID}", h.Import.Progress)

		r.Put("/sla-policies/{policyID}", h.SLA.Update)
		r.Delete("/sla-policies/{policyID}", h.SLA.Delete)
	})

	return r
}
