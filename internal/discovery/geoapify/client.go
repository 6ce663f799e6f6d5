// Package geoapify implements the discovery provider against the Geoapify
// Places API.
package geoapify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/discovery"
	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
	"github.com/citywander/citywander/internal/provider/resilience"
)

const (
	// ProviderName identifies this places provider.
	ProviderName = "geoapify"

	// DefaultBaseURL is the Geoapify API base URL.
	DefaultBaseURL = "https://api.geoapify.com"
)

// categoryFilters maps internal categories to Geoapify category filters.
var categoryFilters = map[poi.Category]string{
	poi.CategoryLandmark:   "tourism.sights",
	poi.CategoryAttraction: "tourism.attraction",
	poi.CategoryMuseum:     "entertainment.museum",
	poi.CategoryMonument:   "tourism.sights.memorial.monument",
	poi.CategoryGallery:    "entertainment.culture.gallery",
	poi.CategoryReligious:  "religion.place_of_worship",
	poi.CategoryViewpoint:  "tourism.sights.viewpoint",
	poi.CategoryPark:       "leisure.park",
	poi.CategoryNatural:    "natural",
}

// ClientConfig holds configuration for the Geoapify client.
type ClientConfig struct {
	// APIKey is the Geoapify API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to the Geoapify API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Geoapify Places API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Geoapify client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig("geoapify"))
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

// PlacesByCategory fetches places of one category within a radius around a
// center point.
func (c *Client) PlacesByCategory(ctx context.Context, category poi.Category, center geo.Coordinate, radiusMeters float64, limit int) ([]poi.POI, error) {
	filter, ok := categoryFilters[category]
	if !ok {
		return nil, fmt.Errorf("no category filter for %q", category)
	}

	q := url.Values{}
	q.Set("categories", filter)
	q.Set("filter", fmt.Sprintf("circle:%.6f,%.6f,%.0f", center.Lon, center.Lat, radiusMeters))
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("apiKey", c.apiKey)

	reqURL := fmt.Sprintf("%s/v2/places?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var placesResp placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&placesResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return c.toPOIs(&placesResp, category), nil
}

// toPOIs converts a Geoapify feature collection to domain POIs. Features
// without a name or usable coordinates are skipped.
func (c *Client) toPOIs(resp *placesResponse, category poi.Category) []poi.POI {
	pois := make([]poi.POI, 0, len(resp.Features))

	for i := range resp.Features {
		props := &resp.Features[i].Properties
		if props.Name == "" {
			continue
		}

		coord := geo.Coordinate{Lat: props.Lat, Lon: props.Lon}
		if !coord.Valid() {
			continue
		}

		p := poi.POI{
			ID:         poi.StableID(props.PlaceID, props.Name, coord),
			Name:       props.Name,
			Coordinate: coord,
			Category:   category,
			City:       props.City,
			Address:    props.Formatted,
			Contact: poi.Contact{
				Phone:   props.Contact.Phone,
				Website: props.Website,
			},
			OpeningHours: props.OpeningHours,
		}
		pois = append(pois, p)
	}

	return pois
}

var _ discovery.Provider = (*Client)(nil)
