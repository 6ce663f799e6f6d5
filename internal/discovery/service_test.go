package discovery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/citywander/citywander/internal/featureflags"
	"github.com/citywander/citywander/internal/geo"
	"github.com/citywander/citywander/internal/poi"
)

type mockProvider struct {
	mu      sync.Mutex
	results map[poi.Category][]poi.POI
	err     error
	calls   int
}

func (m *mockProvider) PlacesByCategory(ctx context.Context, category poi.Category, center geo.Coordinate, radiusMeters float64, limit int) ([]poi.POI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.results[category], nil
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockProvider) setError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

var testCenter = geo.Coordinate{Lat: 48.1374, Lon: 11.5755}

func testPlace(name string, cat poi.Category, lat, lon float64) poi.POI {
	coord := geo.Coordinate{Lat: lat, Lon: lon}
	return poi.POI{
		ID:         poi.StableID("", name, coord),
		Name:       name,
		Coordinate: coord,
		Category:   cat,
		City:       "München",
	}
}

func TestDiscover_MergesAndDeduplicates(t *testing.T) {
	// The same church shows up under both the landmark and the
	// religious-site search; only one copy may survive.
	church := testPlace("Frauenkirche", poi.CategoryLandmark, 48.1386, 11.5736)
	churchAgain := church
	churchAgain.Category = poi.CategoryReligious

	provider := &mockProvider{results: map[poi.Category][]poi.POI{
		poi.CategoryLandmark:  {church},
		poi.CategoryReligious: {churchAgain},
		poi.CategoryPark:      {testPlace("Hofgarten", poi.CategoryPark, 48.1428, 11.5797)},
	}}
	svc := NewService(ServiceConfig{Provider: provider})

	pois, err := svc.Discover(context.Background(), "München", testCenter, 2500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pois) != 2 {
		t.Fatalf("expected 2 deduplicated places, got %d", len(pois))
	}
	if !sort.SliceIsSorted(pois, func(i, j int) bool { return pois[i].Name < pois[j].Name }) {
		t.Error("results must be sorted by name")
	}
}

func TestDiscover_SkipsInvalidPlaces(t *testing.T) {
	bad := poi.POI{ID: "poi_x", Name: "Nowhere", Coordinate: geo.Coordinate{Lat: 95}, Category: poi.CategoryPark}
	provider := &mockProvider{results: map[poi.Category][]poi.POI{
		poi.CategoryPark: {bad, testPlace("Hofgarten", poi.CategoryPark, 48.1428, 11.5797)},
	}}
	svc := NewService(ServiceConfig{Provider: provider})

	pois, err := svc.Discover(context.Background(), "München", testCenter, 2500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pois) != 1 || pois[0].Name != "Hofgarten" {
		t.Errorf("expected only the valid place, got %v", pois)
	}
}

func TestDiscover_CachesResults(t *testing.T) {
	provider := &mockProvider{results: map[poi.Category][]poi.POI{
		poi.CategoryPark: {testPlace("Hofgarten", poi.CategoryPark, 48.1428, 11.5797)},
	}}
	svc := NewService(ServiceConfig{Provider: provider})

	if _, err := svc.Discover(context.Background(), "München", testCenter, 2500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := provider.callCount()
	if first != len(poi.AllCategories()) {
		t.Fatalf("expected one search per category, got %d", first)
	}

	if _, err := svc.Discover(context.Background(), "München", testCenter, 2500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.callCount() != first {
		t.Errorf("second discovery must be served from cache, got %d extra calls", provider.callCount()-first)
	}

	stats := svc.CacheStats()
	if stats.Entries != 1 || stats.FreshEntries != 1 {
		t.Errorf("unexpected cache stats: %+v", stats)
	}
}

func TestDiscover_ToleratesPartialFailures(t *testing.T) {
	provider := &mockProvider{results: map[poi.Category][]poi.POI{
		poi.CategoryPark: {testPlace("Hofgarten", poi.CategoryPark, 48.1428, 11.5797)},
	}}
	svc := NewService(ServiceConfig{Provider: provider})

	// Categories without configured results return empty, not an error; a
	// pool with at least one successful category search is a success.
	pois, err := svc.Discover(context.Background(), "München", testCenter, 2500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pois) != 1 {
		t.Errorf("expected 1 place, got %d", len(pois))
	}
}

func TestDiscover_AllSearchesFailing(t *testing.T) {
	provider := &mockProvider{err: errors.New("quota exhausted")}
	svc := NewService(ServiceConfig{Provider: provider})

	_, err := svc.Discover(context.Background(), "München", testCenter, 2500)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestDiscover_ServesStaleOnError(t *testing.T) {
	provider := &mockProvider{results: map[poi.Category][]poi.POI{
		poi.CategoryPark: {testPlace("Hofgarten", poi.CategoryPark, 48.1428, 11.5797)},
	}}
	svc := NewService(ServiceConfig{
		Provider:        provider,
		CacheTTL:        time.Nanosecond,
		StaleIfErrorTTL: time.Hour,
	})

	if _, err := svc.Discover(context.Background(), "München", testCenter, 2500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(time.Millisecond)
	provider.setError(errors.New("quota exhausted"))

	pois, err := svc.Discover(context.Background(), "München", testCenter, 2500)
	if err != nil {
		t.Fatalf("expected stale results, got error: %v", err)
	}
	if len(pois) != 1 || pois[0].Name != "Hofgarten" {
		t.Errorf("unexpected stale results: %v", pois)
	}
}

func TestDiscover_ValidatesInput(t *testing.T) {
	svc := NewService(ServiceConfig{Provider: &mockProvider{}})

	_, err := svc.Discover(context.Background(), "München", geo.Coordinate{Lat: 95}, 2500)
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}

	_, err = svc.Discover(context.Background(), "München", testCenter, 0)
	if !errors.Is(err, ErrInvalidRadius) {
		t.Errorf("expected ErrInvalidRadius, got %v", err)
	}
}

func TestDiscover_CachedOnlyFlag(t *testing.T) {
	provider := &mockProvider{results: map[poi.Category][]poi.POI{
		poi.CategoryPark: {testPlace("Hofgarten", poi.CategoryPark, 48.1428, 11.5797)},
	}}
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
	})
	svc := NewService(ServiceConfig{
		Provider:     provider,
		FeatureFlags: flags,
		CacheTTL:     time.Nanosecond,
	})

	ctx := context.Background()
	if _, err := svc.Discover(ctx, "München", testCenter, 2500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	warmed := provider.callCount()

	if err := flags.SetFlag(ctx, &featureflags.Flag{
		Key:   featureflags.FlagCachedOnlyDiscovery,
		Value: true,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(time.Millisecond)

	// Expired but within the stale window: served without provider calls.
	pois, err := svc.Discover(ctx, "München", testCenter, 2500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pois) != 1 {
		t.Errorf("expected stale cached results, got %v", pois)
	}
	if provider.callCount() != warmed {
		t.Error("cached-only discovery must not call the provider")
	}

	// A cold area has nothing to serve.
	if _, err := svc.Discover(ctx, "Berlin", geo.Coordinate{Lat: 52.52, Lon: 13.405}, 2500); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable for a cold area, got %v", err)
	}
}

func TestDiscover_InvalidateCache(t *testing.T) {
	provider := &mockProvider{results: map[poi.Category][]poi.POI{
		poi.CategoryPark: {testPlace("Hofgarten", poi.CategoryPark, 48.1428, 11.5797)},
	}}
	svc := NewService(ServiceConfig{Provider: provider})

	if _, err := svc.Discover(context.Background(), "München", testCenter, 2500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.InvalidateCache()

	if _, err := svc.Discover(context.Background(), "München", testCenter, 2500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.callCount() != 2*len(poi.AllCategories()) {
		t.Errorf("expected a fresh fan-out after invalidation, got %d calls", provider.callCount())
	}
}
