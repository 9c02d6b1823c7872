package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/reviewrank/pkg/health"
	"github.com/utafrali/reviewrank/pkg/middleware"
)

// RouterConfig carries the HTTP-level settings of the review service.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
	// RatingCacheMaxAge is the Cache-Control max-age of rating responses.
	RatingCacheMaxAge int
}

// NewRouter creates a chi router with all review service routes registered.
func NewRouter(
	reviews ReviewService,
	scorer ScoringService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.Identity)
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	reviewHandler := NewReviewHandler(reviews, logger)
	scoringHandler := NewScoringHandler(scorer, logger)

	// Review API endpoints (nested under products)
	r.Route("/api/v1/products/{productId}", func(r chi.Router) {
		r.Get("/reviews", reviewHandler.ListReviews)
		r.Get("/reviews/top", scoringHandler.TopReviews)
		r.With(middleware.CacheControl(cfg.RatingCacheMaxAge)).Get("/rating", scoringHandler.ProductRating)

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Post("/reviews", reviewHandler.CreateReview)
			r.Post("/reviews/{reviewId}/votes", reviewHandler.Vote)
		})
	})

	// Stateless scoring of caller-supplied collections
	r.Route("/api/v1/scoring", func(r chi.Router) {
		r.Get("/wilson", scoringHandler.Wilson)

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Post("/rating", scoringHandler.RateRecords)
			r.Post("/rank", scoringHandler.RankRecords)
		})
	})

	return r
}
