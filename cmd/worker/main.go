// Package main provides the entrypoint for the CityWander cache prewarm
// worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/discovery"
	"github.com/citywander/citywander/internal/discovery/geoapify"
	"github.com/citywander/citywander/internal/distance"
	"github.com/citywander/citywander/internal/distance/openrouteservice"
	"github.com/citywander/citywander/internal/enrichment"
	"github.com/citywander/citywander/internal/enrichment/wikipedia"
	"github.com/citywander/citywander/internal/telemetry"
	"github.com/citywander/citywander/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "citywander-worker"

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
		Msg("starting CityWander worker")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	// Initialize OpenTelemetry
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Initialize place discovery
	geoapifyKey := os.Getenv("GEOAPIFY_API_KEY")
	if geoapifyKey == "" {
		log.Warn().Msg("GEOAPIFY_API_KEY not set - place discovery will fail")
	}
	discoveryService := discovery.NewService(discovery.ServiceConfig{
		Provider: geoapify.NewClient(geoapify.ClientConfig{
			APIKey: geoapifyKey,
			Logger: log,
		}),
		Logger: log,
	})

	// Initialize the walking distance provider
	orsKey := os.Getenv("ORS_API_KEY")
	if orsKey == "" {
		log.Warn().Msg("ORS_API_KEY not set - distance warmups will fail")
	}
	distanceProvider := openrouteservice.NewClient(openrouteservice.ClientConfig{
		APIKey: orsKey,
		Logger: log,
	})

	// The shared tier is the whole point of warming distances; without Redis
	// the warmed pairs die with the job.
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
		log.Warn().Msg("REDIS_ADDR not set - distance warmups stay local to the job")
	}

	// Initialize description enrichment
	enrichmentService := enrichment.NewService(enrichment.ServiceConfig{
		Provider: wikipedia.NewClient(wikipedia.ClientConfig{
			Language: os.Getenv("WIKIPEDIA_LANGUAGE"),
			Logger:   log,
		}),
		Logger: log,
	})

	prewarmJob := worker.NewPrewarmJob(worker.PrewarmJobConfig{
		Config:           worker.DefaultPrewarmConfig(),
		Logger:           log,
		DiscoveryService: discoveryService,
		DistanceProvider: distanceProvider,
		SharedDistances:  sharedDistances,
		Enricher:         enrichmentService,
	})

	// Create HTTP server for health checks
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Prefer Pub/Sub triggered jobs; fall back to a local interval schedule
	// when no subscription is configured.
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")

	if projectID != "" && subscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			PrewarmJob:       prewarmJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		interval := 6 * time.Hour
		if raw := os.Getenv("PREWARM_INTERVAL"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil {
				log.Fatal().Err(err).Str("value", raw).Msg("invalid PREWARM_INTERVAL")
			}
			interval = parsed
		}
		log.Info().
			Dur("interval", interval).
			Msg("PUBSUB_SUBSCRIPTION not set - running on a local schedule")

		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			// Warm once at startup, then on the interval.
			prewarmJob.Run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					prewarmJob.Run(ctx)
				}
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
