// Package wikipedia implements the enrichment provider against the
// Wikipedia REST API.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/enrichment"
	"github.com/citywander/citywander/internal/provider/resilience"
)

const (
	// ProviderName identifies this summary provider.
	ProviderName = "wikipedia"

	// DefaultLanguage is the Wikipedia language edition queried by default.
	DefaultLanguage = "en"
)

// ClientConfig holds configuration for the Wikipedia client.
type ClientConfig struct {
	// Language selects the Wikipedia edition (optional, defaults to "en").
	Language string

	// BaseURL overrides the API base URL (optional, mainly for tests).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Wikipedia REST API client for page summaries.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Wikipedia client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		language := cfg.Language
		if language == "" {
			language = DefaultLanguage
		}
		baseURL = fmt.Sprintf("https://%s.wikipedia.org", language)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig("wikipedia"))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Summary fetches a short description for a named place. Ambiguous titles
// are retried with the city appended, the way Wikipedia disambiguates
// place articles.
func (c *Client) Summary(ctx context.Context, name, city string) (string, error) {
	extract, err := c.fetchSummary(ctx, name)
	if err == nil {
		return extract, nil
	}
	if !errors.Is(err, errDisambiguation) || city == "" {
		return "", err
	}

	return c.fetchSummary(ctx, fmt.Sprintf("%s (%s)", name, city))
}

var errDisambiguation = fmt.Errorf("ambiguous title: %w", enrichment.ErrNoSummary)

// fetchSummary resolves one page title to its summary extract.
func (c *Client) fetchSummary(ctx context.Context, title string) (string, error) {
	pageTitle := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	reqURL := fmt.Sprintf("%s/api/rest_v1/page/summary/%s", c.baseURL, pageTitle)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", enrichment.ErrNoSummary
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var summary summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if summary.Type == "disambiguation" {
		return "", errDisambiguation
	}
	if summary.Extract == "" {
		return "", enrichment.ErrNoSummary
	}

	return summary.Extract, nil
}

// Wikipedia REST API response structure.

type summaryResponse struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

var _ enrichment.Provider = (*Client)(nil)
