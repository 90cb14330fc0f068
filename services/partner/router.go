package partner

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the HTTP surface of the service. Extra middleware (request
// logging, tracing) is applied outermost.
func (a *API) Router(extra ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	for _, mw := range extra {
		r.Use(mw)
	}
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	if len(a.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   a.corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// The public endpoints absorb wizard traffic and emailed links, so
		// they are rate limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(60, time.Minute))
			r.Post("/applications", a.handleCreateApplication)
			r.Get("/terms", a.handleValidateTerms)
			r.Post("/terms/accept", a.handleAcceptTerms)
		})

		r.Get("/applications", a.handleListApplications)
		r.Get("/applications/{id}", a.handleGetApplication)
		r.Post("/applications/{id}/approve", a.handleApproveApplication)
		r.Get("/applications/{id}/tokens", a.handleListApplicationTokens)
	})

	return r
}
