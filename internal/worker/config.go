// Package worker provides background job processing for CityWander.
package worker

import (
	"time"
)

// PrewarmTarget represents a city whose caches the worker keeps warm.
type PrewarmTarget struct {
	// Name is the city name, as passed to place discovery.
	Name string

	// Points are the lat/lon anchors to warm within the city.
	// Typically the historic center plus the busiest tour start areas.
	Points []Point

	// Priority determines warm order (lower = higher priority).
	Priority int
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// PrewarmConfig holds configuration for the cache prewarm job.
type PrewarmConfig struct {
	// Targets are the cities to warm.
	// If empty, uses DefaultPrewarmTargets.
	Targets []PrewarmTarget

	// Concurrency is the number of anchors warmed concurrently.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for warming a single anchor.
	// Default: 30 seconds
	Timeout time.Duration

	// RadiusMeters is the discovery radius around each anchor.
	// Default: 2500
	RadiusMeters float64

	// TopPOIs is how many top-scored places per anchor enter the distance
	// matrix warmup. Default: 10
	TopPOIs int

	// WarmPlaces enables place discovery cache warming.
	// Default: true
	WarmPlaces bool

	// WarmDistances enables shared distance tier warming.
	// Default: true
	WarmDistances bool

	// WarmDescriptions enables background description enrichment.
	// Default: true
	WarmDescriptions bool
}

// DefaultPrewarmConfig returns the default prewarm configuration.
func DefaultPrewarmConfig() PrewarmConfig {
	return PrewarmConfig{
		Targets:          DefaultPrewarmTargets(),
		Concurrency:      3,
		Timeout:          30 * time.Second,
		RadiusMeters:     2500,
		TopPOIs:          10,
		WarmPlaces:       true,
		WarmDistances:    true,
		WarmDescriptions: true,
	}
}

// DefaultPrewarmTargets returns the default prewarm targets.
// Focuses on the European cities that generate the most tour requests.
func DefaultPrewarmTargets() []PrewarmTarget {
	return []PrewarmTarget{
		{
			Name:     "München",
			Priority: 1,
			Points: []Point{
				{Lat: 48.1374, Lon: 11.5755}, // Marienplatz
				{Lat: 48.1459, Lon: 11.5582}, // Königsplatz
				{Lat: 48.1497, Lon: 11.5918}, // Englischer Garten (south)
			},
		},
		{
			Name:     "Berlin",
			Priority: 1,
			Points: []Point{
				{Lat: 52.5163, Lon: 13.3777}, // Brandenburger Tor
				{Lat: 52.5219, Lon: 13.4132}, // Alexanderplatz
				{Lat: 52.5067, Lon: 13.3320}, // Zoologischer Garten
			},
		},
		{
			Name:     "Amsterdam",
			Priority: 1,
			Points: []Point{
				{Lat: 52.3731, Lon: 4.8926}, // Dam
				{Lat: 52.3600, Lon: 4.8852}, // Museumplein
			},
		},
		{
			Name:     "Paris",
			Priority: 1,
			Points: []Point{
				{Lat: 48.8530, Lon: 2.3499}, // Notre-Dame
				{Lat: 48.8606, Lon: 2.3376}, // Louvre
				{Lat: 48.8867, Lon: 2.3431}, // Montmartre
			},
		},
		{
			Name:     "Praha",
			Priority: 2,
			Points: []Point{
				{Lat: 50.0870, Lon: 14.4208}, // Staroměstské náměstí
				{Lat: 50.0905, Lon: 14.4005}, // Malá Strana
			},
		},
		{
			Name:     "Wien",
			Priority: 2,
			Points: []Point{
				{Lat: 48.2082, Lon: 16.3738}, // Stephansplatz
				{Lat: 48.1845, Lon: 16.3122}, // Schönbrunn
			},
		},
		{
			Name:     "Barcelona",
			Priority: 2,
			Points: []Point{
				{Lat: 41.3833, Lon: 2.1766}, // Barri Gòtic
				{Lat: 41.4036, Lon: 2.1744}, // Sagrada Família
			},
		},
		{
			Name:     "Roma",
			Priority: 2,
			Points: []Point{
				{Lat: 41.8986, Lon: 12.4769}, // Pantheon
				{Lat: 41.8902, Lon: 12.4922}, // Colosseo
			},
		},
		{
			Name:     "Lisboa",
			Priority: 3,
			Points: []Point{
				{Lat: 38.7118, Lon: -9.1332}, // Baixa
			},
		},
		{
			Name:     "København",
			Priority: 3,
			Points: []Point{
				{Lat: 55.6794, Lon: 12.5806}, // Indre By
			},
		},
	}
}

// AllPoints returns all anchor points from all targets, ordered by priority.
func (c PrewarmConfig) AllPoints() []Point {
	var points []Point
	for _, target := range c.Targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the total number of anchors to warm.
func (c PrewarmConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
