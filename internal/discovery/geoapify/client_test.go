package geoapify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
)

var munich = geo.Coordinate{Lat: 48.1374, Lon: 11.5755}

func TestPlacesByCategory_MapsFeatures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/v2/places" {
			t.Errorf("unexpected path %q", got)
		}
		q := r.URL.Query()
		if got := q.Get("categories"); got != "entertainment.museum" {
			t.Errorf("unexpected categories %q", got)
		}
		if got := q.Get("filter"); !strings.HasPrefix(got, "circle:11.575500,48.137400,") {
			t.Errorf("unexpected filter %q", got)
		}
		if got := q.Get("limit"); got != "20" {
			t.Errorf("unexpected limit %q", got)
		}
		if got := q.Get("apiKey"); got != "test-key" {
			t.Errorf("unexpected api key %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"features": [
				{
					"properties": {
						"name": "Stadtmuseum",
						"lat": 48.1351,
						"lon": 11.5734,
						"city": "München",
						"formatted": "St.-Jakobs-Platz 1, 80331 München",
						"website": "https://www.muenchner-stadtmuseum.de",
						"opening_hours": "Tu-Su 10:00-18:00",
						"place_id": "51abc123",
						"contact": {"phone": "+49 89 23322370"}
					}
				},
				{
					"properties": {
						"lat": 48.14,
						"lon": 11.57,
						"place_id": "unnamed"
					}
				},
				{
					"properties": {
						"name": "Broken",
						"lat": 99.0,
						"lon": 11.57,
						"place_id": "badcoord"
					}
				}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: server.URL})

	pois, err := client.PlacesByCategory(context.Background(), poi.CategoryMuseum, munich, 2500, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pois) != 1 {
		t.Fatalf("expected 1 usable place, got %d", len(pois))
	}

	got := pois[0]
	if got.ID != "poi_51abc123" {
		t.Errorf("unexpected id %q", got.ID)
	}
	if got.Name != "Stadtmuseum" || got.Category != poi.CategoryMuseum {
		t.Errorf("unexpected place %+v", got)
	}
	if got.City != "München" || got.Address == "" {
		t.Errorf("address data not mapped: %+v", got)
	}
	if got.Contact.Phone == "" || got.Contact.Website == "" || got.OpeningHours == "" {
		t.Errorf("contact metadata not mapped: %+v", got)
	}
}

func TestPlacesByCategory_UnknownCategory(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: "http://unused.invalid"})

	_, err := client.PlacesByCategory(context.Background(), poi.Category("cafe"), munich, 2500, 20)
	if err == nil {
		t.Fatal("expected an error for an unmapped category")
	}
}

func TestPlacesByCategory_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{APIKey: "wrong", BaseURL: server.URL})

	_, err := client.PlacesByCategory(context.Background(), poi.CategoryPark, munich, 2500, 20)
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
