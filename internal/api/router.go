// Package api provides the HTTP API for CityWander.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/api/handler"
	"github.com/citywander/citywander/internal/api/middleware"
	"github.com/citywander/citywander/internal/auth"
	"github.com/citywander/citywander/internal/discovery"
	"github.com/citywander/citywander/internal/featureflags"
	"github.com/citywander/citywander/internal/history"
	"github.com/citywander/citywander/internal/provider/resilience"
	"github.com/citywander/citywander/internal/tour"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version            string
	BuildTime          string
	Logger             zerolog.Logger
	ServiceName        string
	Metrics            *middleware.Metrics
	AuthService        *auth.Service
	Planner            *tour.Planner
	DiscoveryService   *discovery.Service
	HistoryService     *history.Service
	FeatureFlagService *featureflags.Service

	// DB answers readiness pings (optional).
	DB handler.Pinger

	// ProviderRegistry reports live provider health on /v1/ops/status
	// (optional).
	ProviderRegistry *resilience.Registry

	// Providers are the static provider names reported by /v1/ops/status
	// when no registry is wired.
	Providers []string
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "citywander-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB, cfg.DiscoveryService, cfg.ProviderRegistry, cfg.Providers)
	authHandler := handler.NewAuthHandler(cfg.AuthService)
	meHandler := handler.NewMeHandler(cfg.AuthService)
	tourHandler := handler.NewTourHandler(cfg.Planner, cfg.DiscoveryService, cfg.FeatureFlagService)
	placesHandler := handler.NewPlacesHandler(cfg.DiscoveryService)
	historyHandler := handler.NewHistoryHandler(cfg.HistoryService)
	metadataHandler := handler.NewMetadataHandler()

	var flagCaches []handler.CacheInvalidator
	if cfg.DiscoveryService != nil {
		flagCaches = append(flagCaches, cfg.DiscoveryService)
	}
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, flagCaches...)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.AuthService)

	// Create rate limit middleware for different endpoint categories
	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)           // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Auth endpoints (public) - strict rate limiting
		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit) // 10 requests per minute per IP
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)
			// logout-all requires authentication
			r.With(authMiddleware).Post("/logout-all", authHandler.LogoutAll)
		})

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Metadata endpoints (public) - standard rate limiting
		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/enums", metadataHandler.GetEnums)
		})

		// Place discovery (public) - standard rate limiting
		r.With(standardRateLimit).Get("/places", placesHandler.ListPlaces)

		// Tour planning and editing - expensive compute, strict rate limiting
		r.Group(func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Post("/tours:plan", tourHandler.PlanTour)
			r.Post("/tours:plan-manual", tourHandler.PlanManualTour)
			r.Post("/tours:alternatives", tourHandler.Alternatives)
			r.Post("/tours:replace-stop", tourHandler.ReplaceStop)
		})

		// Me endpoints (authenticated) - user-based rate limiting
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit)) // 100 req/min per user
			r.Get("/", meHandler.GetMe)

			// Saved tours
			r.Route("/tours", func(r chi.Router) {
				r.Get("/", historyHandler.ListTours)
				r.Post("/", historyHandler.SaveTour)
				r.Route("/{tourId}", func(r chi.Router) {
					r.Get("/", historyHandler.GetTour)
					r.Patch("/", historyHandler.UpdateTour)
					r.Delete("/", historyHandler.DeleteTour)
				})
			})
		})

		// Admin endpoints (authenticated) - for internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)

			// Feature flags management
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
