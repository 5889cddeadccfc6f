/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through zerolog
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/assessments/*   Scoring
  /api/patients/*      Classification and evaluation per patient
  /api/templates/*     Catalog listing and matching
  /api/evaluations     Full pipeline
  /api/rates/*         Rate records
  /api/previews        Snapshot repricing
  /metrics             Prometheus
  /healthz             Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/assessments/score", h.ScoreAssessment)

		r.Route("/patients/{id}", func(r chi.Router) {
			r.Post("/classifications", h.Classify)
			r.Get("/classifications", h.ClassificationHistory)
			r.Get("/classifications/current", h.CurrentClassification)
			r.Post("/evaluations", h.EvaluateCurrent)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/match", h.MatchTemplates)
		})

		r.Post("/evaluations", h.Evaluate)
		r.Post("/previews", h.Preview)

		r.Route("/rates", func(r chi.Router) {
			r.Post("/", h.CreateRate)
			r.Get("/effective", h.EffectiveRate)
		})
	})

	return r
}

// requestLogger logs one line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("took", time.Since(start)).
				Msg("request")
		})
	}
}
