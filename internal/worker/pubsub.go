package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	prewarmJob       *PrewarmJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	PrewarmJob       *PrewarmJob
	Logger           zerolog.Logger
}

// PrewarmMessage represents a cache prewarm job message.
type PrewarmMessage struct {
	JobType string `json:"job_type"`
	// Cities restricts the run to the named targets. Empty warms all.
	Cities []string `json:"cities,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		prewarmJob:       cfg.PrewarmJob,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	// Parse message.
	var prewarmMsg PrewarmMessage
	if err := json.Unmarshal(msg.Data, &prewarmMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	// Handle based on job type.
	var err error
	switch prewarmMsg.JobType {
	case "city_prewarm":
		err = h.handleCityPrewarm(ctx, prewarmMsg)
	case "health_check":
		err = h.handleHealthCheck(ctx)
	default:
		logger.Warn().Str("job_type", prewarmMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("job_type", prewarmMsg.JobType).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleCityPrewarm(ctx context.Context, msg PrewarmMessage) error {
	job := h.prewarmJob
	if len(msg.Cities) > 0 {
		job = h.scopedJob(msg.Cities)
		if job == nil {
			h.logger.Warn().Strs("cities", msg.Cities).Msg("no configured targets match requested cities")
			return nil
		}
	}

	h.logger.Info().
		Strs("cities", msg.Cities).
		Msg("starting city prewarm")

	result := job.Run(ctx)

	// Log summary.
	h.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("total_points", result.TotalPoints).
		Msg("city prewarm completed")

	// Consider it successful if more than half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many prewarm failures: %d/%d", result.Failed, result.TotalPoints)
	}

	return nil
}

// scopedJob builds a job restricted to the named cities, sharing the services
// of the main job.
func (h *PubSubHandler) scopedJob(cities []string) *PrewarmJob {
	wanted := make(map[string]struct{}, len(cities))
	for _, c := range cities {
		wanted[c] = struct{}{}
	}

	config := h.prewarmJob.config
	var targets []PrewarmTarget
	for _, t := range config.Targets {
		if _, ok := wanted[t.Name]; ok {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	config.Targets = targets

	return NewPrewarmJob(PrewarmJobConfig{
		Config:           config,
		Logger:           h.logger,
		DiscoveryService: h.prewarmJob.places,
		DistanceProvider: h.prewarmJob.distances,
		SharedDistances:  h.prewarmJob.shared,
		Enricher:         h.prewarmJob.enricher,
	})
}

func (h *PubSubHandler) handleHealthCheck(ctx context.Context) error {
	h.logger.Debug().Msg("running health check")

	// Warm a single anchor to verify discovery connectivity. Distance and
	// enrichment warmups are skipped to keep the probe cheap.
	singleAnchorConfig := PrewarmConfig{
		Targets: []PrewarmTarget{
			{
				Name:     "München",
				Priority: 1,
				Points:   []Point{{Lat: 48.1374, Lon: 11.5755}},
			},
		},
		Concurrency:   1,
		Timeout:       10 * time.Second,
		RadiusMeters:  h.prewarmJob.config.RadiusMeters,
		TopPOIs:       h.prewarmJob.config.TopPOIs,
		WarmPlaces:    true,
		WarmDistances: false,
	}

	healthCheckJob := NewPrewarmJob(PrewarmJobConfig{
		Config:           singleAnchorConfig,
		Logger:           h.logger,
		DiscoveryService: h.prewarmJob.places,
	})

	result := healthCheckJob.Run(ctx)

	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %d errors", result.Failed)
	}

	h.logger.Debug().Msg("health check passed")
	return nil
}
