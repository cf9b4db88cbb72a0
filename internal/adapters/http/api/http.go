// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/okian/shaker/internal/adapters/repository"
	"github.com/okian/shaker/internal/domain/dedupe"
	"github.com/okian/shaker/internal/domain/model"
	"github.com/okian/shaker/internal/domain/recommend"
	"github.com/okian/shaker/internal/domain/search"
	"github.com/okian/shaker/pkg/logger"
)

// CatalogReader serves catalog browsing.
type CatalogReader interface {
	Browse(ctx context.Context, f model.Filters, page, pageSize int) (search.Page, error)
	Search(ctx context.Context, q string, f model.Filters, page, pageSize int) (search.Page, error)
	Facets(ctx context.Context) (model.Facets, error)
	Get(ctx context.Context, id string) (model.Drink, error)
}

// Recommender ranks drinks for users and neighbors for drinks.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (recommend.Result, error)
	Similar(ctx context.Context, id string, k int) (model.Drink, []model.Neighbor, error)
}

// RatingWriter records rating events.
type RatingWriter interface {
	dedupe.Deduper
	SubmitRating(ctx context.Context, ev model.RatingEvent) (model.RatingEvent, error)
}

// ProfileStore reads derived profiles and writes onboarding preferences.
type ProfileStore interface {
	Profile(ctx context.Context, userID string) (model.UserProfile, error)
	SavePreferences(ctx context.Context, p model.Preferences) (model.Preferences, error)
}

// PopularityReader exposes the popularity ranking.
type PopularityReader interface {
	TopN(ctx context.Context, n int) ([]repository.Entry, error)
	Rank(ctx context.Context, drinkID string) (repository.Entry, error)
}

// CatalogReloader swaps in a freshly loaded catalog.
type CatalogReloader interface {
	ReloadCatalog(ctx context.Context) (int, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CatalogReader
	Recommender
	RatingWriter
	ProfileStore
	PopularityReader
	CatalogReloader
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps  Dependencies
	stats StatsProvider

	logger          logger.Logger
	defaultUserID   string
	defaultK        int
	defaultSimilarK int
	defaultPageSize int
	corsOrigins     []string
	rateLimit       int
	rateWindow      time.Duration
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:            deps,
		stats:           stats,
		logger:          logger.Get().Named("api"),
		defaultUserID:   "local",
		defaultK:        48,
		defaultSimilarK: 20,
		defaultPageSize: 24,
		corsOrigins: []string{
			"http://localhost:5173", "http://127.0.0.1:5173",
			"http://localhost:3000", "http://127.0.0.1:3000",
		},
		rateLimit:  120,
		rateWindow: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds a chi router carrying the global middleware stack and every
// API route. Callers may register further routes on it.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// CORS is global so preflight requests reach it on every path.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.Register(ctx, r)
	return r
}

// Register attaches all API routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.With(MetricsMiddleware("root")).Get("/", s.handleRoot)
	r.With(MetricsMiddleware("healthz")).Get("/healthz", s.handleHealth)
	r.With(MetricsMiddleware("stats")).Get("/stats", s.handleStats)

	r.With(MetricsMiddleware("facets")).Get("/facets", s.handleFacets)
	r.With(MetricsMiddleware("drinks")).Get("/drinks", s.handleBrowse)
	r.With(MetricsMiddleware("drink")).Get("/drinks/{id}", s.handleGetDrink)
	r.With(MetricsMiddleware("search")).Get("/search", s.handleSearch)
	r.With(MetricsMiddleware("similar")).Get("/similar/{id}", s.handleSimilar)
	r.With(MetricsMiddleware("profile")).Get("/profile", s.handleProfile)
	r.With(MetricsMiddleware("popular")).Get("/popular", s.handlePopular)
	r.With(MetricsMiddleware("popular_rank")).Get("/popular/{id}", s.handlePopularRank)

	r.Group(func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.Limit(s.rateLimit, s.rateWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeJSON(w, http.StatusTooManyRequests, errorResponse{Code: "rate_limited", Message: "too many requests"})
				}),
			))
		}
		r.With(MetricsMiddleware("recs")).Post("/recs", s.handleRecs)
		r.With(MetricsMiddleware("ratings")).Post("/ratings", s.handlePostRating)
		r.With(MetricsMiddleware("preferences")).Put("/preferences", s.handlePutPreferences)
		r.With(MetricsMiddleware("catalog_reload")).Post("/admin/catalog/reload", s.handleReload)
	})
}
