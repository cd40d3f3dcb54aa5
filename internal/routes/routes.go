package routes

import (
	"net/http"

	"github.com/AnshRaj112/tripjournal-backend/internal/handlers"
	"github.com/AnshRaj112/tripjournal-backend/internal/metrics"
	"github.com/AnshRaj112/tripjournal-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Options carries everything the router needs.
type Options struct {
	Production     bool
	AllowedOrigins []string
	RateLimitRPM   int

	Journals    *handlers.JournalHandler
	Events      *handlers.EventStream
	Health      http.Handler
	Auth        *middleware.Authenticator
	RateLimiter *middleware.RedisRateLimiter
}

// NewRouter builds the HTTP surface. Production uses the in-process security
// chain; other environments use the shared Redis limiter.
func NewRouter(opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(opts.AllowedOrigins))

	if opts.Health != nil {
		r.Method(http.MethodGet, "/health", opts.Health)
	}
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if opts.Production {
			r.Use(middleware.ProductionSecurity(opts.RateLimitRPM)...)
		} else if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Middleware)
		}
		r.Use(opts.Auth.Require)

		SetupJournalRoutes(r, opts.Journals)
		if opts.Events != nil {
			r.Method(http.MethodGet, "/ws/journals", opts.Events)
		}
	})

	return r
}

func SetupJournalRoutes(r chi.Router, h *handlers.JournalHandler) {
	r.Route("/api/journals", func(r chi.Router) {
		r.Get("/", h.ListJournals)
		r.Post("/", h.CreateJournal)
		r.Get("/search", h.SearchJournals)
		r.Get("/{id}", h.GetJournal)
		r.Put("/{id}", h.UpdateJournal)
		r.Patch("/{id}", h.PatchJournal)
		r.Delete("/{id}", h.DeleteJournal)
	})
}
