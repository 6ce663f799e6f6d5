// Package openrouteservice provides the OpenRouteService-backed walking
// distance provider.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/distance"
	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/provider/resilience"
)

const (
	// ProviderName identifies this distance provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultCallSpacing spaces consecutive ORS calls to stay under the
	// free-tier throttling limits.
	DefaultCallSpacing = 150 * time.Millisecond
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient paced client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// CallSpacing is the minimum interval between consecutive ORS calls
	// (optional, defaults to DefaultCallSpacing). Only applies when the
	// default HTTP client is used.
	CallSpacing time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenRouteService distance provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	spacing := cfg.CallSpacing
	if spacing == 0 {
		spacing = DefaultCallSpacing
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.MinCallInterval = spacing
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Distance returns the walking distance and duration between two points.
func (c *Client) Distance(ctx context.Context, from, to geo.Coordinate, mode distance.Mode) (distance.Result, error) {
	if !from.Valid() || !to.Valid() {
		return distance.Result{}, distance.ErrInvalidCoordinates
	}

	body, err := json.Marshal(orsRequest{
		Coordinates: [][]float64{
			{from.Lon, from.Lat},
			{to.Lon, to.Lat},
		},
		Instructions: false,
		Geometry:     false,
		Units:        "m",
	})
	if err != nil {
		return distance.Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, mode)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return distance.Result{}, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Float64("from_lat", from.Lat).
		Float64("from_lon", from.Lon).
		Float64("to_lat", to.Lat).
		Float64("to_lon", to.Lon).
		Str("mode", string(mode)).
		Msg("requesting walking distance from ORS")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return distance.Result{}, &Error{
			Code:    "REQUEST_FAILED",
			Message: "failed to reach distance provider",
			Err:     distance.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return distance.Result{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return distance.Result{}, c.handleErrorResponse(resp.StatusCode, respBody)
	}

	var orsResp orsResponse
	if err := json.Unmarshal(respBody, &orsResp); err != nil {
		return distance.Result{}, fmt.Errorf("decoding response: %w", err)
	}

	if len(orsResp.Routes) == 0 {
		return distance.Result{}, &Error{
			Code:    "NO_ROUTE",
			Message: "distance provider returned no routes",
			Err:     distance.ErrNoRouteFound,
		}
	}

	summary := orsResp.Routes[0].Summary
	return distance.Result{
		Meters:   summary.Distance,
		Duration: time.Duration(summary.Duration * float64(time.Second)),
	}, nil
}

// handleErrorResponse maps ORS error responses to distance sentinels.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var orsErr orsErrorResponse
	if err := json.Unmarshal(body, &orsErr); err != nil {
		return &Error{
			Code:    fmt.Sprintf("HTTP_%d", statusCode),
			Message: fmt.Sprintf("distance provider returned status %d", statusCode),
			Err:     distance.ErrProviderUnavailable,
		}
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &Error{
			Code:    "RATE_LIMIT",
			Message: "distance provider rate limit exceeded",
			Err:     distance.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusNotFound:
		return &Error{
			Code:    "NO_ROUTE",
			Message: "no route found between the given points",
			Err:     distance.ErrNoRouteFound,
		}
	case statusCode == http.StatusBadRequest && orsErr.Error.Code == orsErrorCodeNotFound:
		return &Error{
			Code:    "NO_ROUTE",
			Message: orsErr.Error.Message,
			Err:     distance.ErrNoRouteFound,
		}
	case statusCode == http.StatusBadRequest:
		return &Error{
			Code:    "BAD_REQUEST",
			Message: orsErr.Error.Message,
			Err:     distance.ErrInvalidCoordinates,
		}
	case statusCode >= 500:
		return &Error{
			Code:    fmt.Sprintf("SERVER_%d", statusCode),
			Message: "distance provider is temporarily unavailable",
			Err:     distance.ErrProviderUnavailable,
		}
	default:
		return &Error{
			Code:    fmt.Sprintf("HTTP_%d", statusCode),
			Message: orsErr.Error.Message,
			Err:     distance.ErrProviderUnavailable,
		}
	}
}

// Error provides detailed error information from the distance provider.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
