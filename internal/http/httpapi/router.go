package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Hakan2211/cinevido-sub002/internal/http/handlers"
	"github.com/Hakan2211/cinevido-sub002/internal/infra"
	"github.com/Hakan2211/cinevido-sub002/internal/middleware"
)

// NewRouter wires the HTTP surface. Everything under /v1 except healthz
// requires a bearer token.
func NewRouter(app *handlers.App, cfg *infra.Config, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.CORS(cfg.CORSOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))

		r.Route("/v1/generations", func(r chi.Router) {
			r.Post("/", app.SubmitGeneration)
			r.Get("/", app.ListGenerations)
			r.Get("/{job_id}", app.GenerationStatus)
			r.Post("/{job_id}/cancel", app.CancelGeneration)
			r.Get("/{job_id}/archive", app.ArchiveGeneration)
		})

		r.Route("/v1/assets", func(r chi.Router) {
			r.Get("/", app.ListAssets)
			r.Post("/import", app.ImportAsset)
			r.Get("/{id}", app.GetAsset)
			r.Delete("/{id}", app.DeleteAsset)
		})

		r.Get("/v1/credits", app.CreditsBalance)
	})

	return r
}
