// Package main provides the entrypoint for the CityWander API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/api"
	"github.com/citywander/citywander/internal/api/middleware"
	"github.com/citywander/citywander/internal/auth"
	"github.com/citywander/citywander/internal/database"
	"github.com/citywander/citywander/internal/discovery"
	"github.com/citywander/citywander/internal/discovery/geoapify"
	"github.com/citywander/citywander/internal/distance"
	"github.com/citywander/citywander/internal/distance/openrouteservice"
	"github.com/citywander/citywander/internal/enrichment"
	"github.com/citywander/citywander/internal/enrichment/wikipedia"
	"github.com/citywander/citywander/internal/featureflags"
	"github.com/citywander/citywander/internal/history"
	"github.com/citywander/citywander/internal/provider/resilience"
	"github.com/citywander/citywander/internal/telemetry"
	"github.com/citywander/citywander/internal/tour"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "citywander-api"

	// Load .env in local development; in production config comes from the
	// environment directly.
	_ = godotenv.Load()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting CityWander API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize auth repositories and service
	authUserRepo := auth.NewPostgresUserRepository(pool)
	authRefreshRepo := auth.NewPostgresRefreshTokenRepository(pool)

	// Initialize JWT service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     os.Getenv("JWT_ISSUER"),
		Audience:   os.Getenv("JWT_AUDIENCE"),
	})

	authService := auth.NewService(auth.ServiceConfig{
		JWTService:  jwtService,
		UserRepo:    authUserRepo,
		RefreshRepo: authRefreshRepo,
	})
	log.Info().Msg("auth service initialized")

	// Initialize feature flags repository and service
	ffRepo := featureflags.NewPostgresRepository(pool)
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository:   ffRepo,
		Logger:       log,
		CacheTTL:     1 * time.Minute,
		DefaultFlags: featureflags.DefaultFlags(),
	})
	log.Info().Msg("feature flags service initialized")

	// Provider registry for /v1/ops/status circuit visibility
	providerRegistry := resilience.NewRegistry()

	// Initialize place discovery
	geoapifyKey := os.Getenv("GEOAPIFY_API_KEY")
	if geoapifyKey == "" {
		log.Warn().Msg("GEOAPIFY_API_KEY not set - place discovery will fail")
	}
	geoapifyHTTP := resilience.NewClient(resilience.DefaultClientConfig(geoapify.ProviderName))
	providerRegistry.Register(geoapify.ProviderName, geoapifyHTTP)
	discoveryService := discovery.NewService(discovery.ServiceConfig{
		Provider: geoapify.NewClient(geoapify.ClientConfig{
			APIKey:     geoapifyKey,
			HTTPClient: geoapifyHTTP,
			Logger:     log,
		}),
		FeatureFlags: ffService,
		Logger:       log,
	})
	log.Info().Msg("discovery service initialized")

	// Initialize the walking distance provider
	orsKey := os.Getenv("ORS_API_KEY")
	if orsKey == "" {
		log.Warn().Msg("ORS_API_KEY not set - distance lookups will fail")
	}
	orsClientCfg := resilience.DefaultClientConfig(openrouteservice.ProviderName)
	orsClientCfg.MinCallInterval = openrouteservice.DefaultCallSpacing
	orsHTTP := resilience.NewClient(orsClientCfg)
	providerRegistry.Register(openrouteservice.ProviderName, orsHTTP)
	distanceProvider := openrouteservice.NewClient(openrouteservice.ClientConfig{
		APIKey:     orsKey,
		HTTPClient: orsHTTP,
		Logger:     log,
	})

	// Optional shared distance tier backed by Redis
	var sharedDistances distance.SharedStore
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		defer redisClient.Close()
		sharedDistances = distance.NewRedisStore(distance.RedisStoreConfig{
			Client: redisClient,
		})
		log.Info().Str("addr", redisAddr).Msg("shared distance tier enabled")
	} else {
		log.Info().Msg("REDIS_ADDR not set - shared distance tier disabled")
	}

	// Initialize description enrichment
	wikipediaHTTP := resilience.NewClient(resilience.DefaultClientConfig(wikipedia.ProviderName))
	providerRegistry.Register(wikipedia.ProviderName, wikipediaHTTP)
	enrichmentService := enrichment.NewService(enrichment.ServiceConfig{
		Provider: wikipedia.NewClient(wikipedia.ClientConfig{
			Language:   os.Getenv("WIKIPEDIA_LANGUAGE"),
			HTTPClient: wikipediaHTTP,
			Logger:     log,
		}),
		FeatureFlags: ffService,
		Logger:       log,
	})

	// Initialize the tour planner
	planner := tour.NewPlanner(tour.PlannerConfig{
		Provider:     distanceProvider,
		Shared:       sharedDistances,
		POIs:         discoveryService,
		Enricher:     enrichmentService,
		FeatureFlags: ffService,
		Logger:       log,
	})
	log.Info().Msg("tour planner initialized")

	// Initialize saved tour history
	historyService := history.NewService(history.NewPostgresRepository(pool))
	log.Info().Msg("history service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		AuthService:        authService,
		Planner:            planner,
		DiscoveryService:   discoveryService,
		HistoryService:     historyService,
		FeatureFlagService: ffService,
		DB:                 pool,
		ProviderRegistry:   providerRegistry,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
