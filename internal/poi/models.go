// Package poi provides the point-of-interest domain model and candidate
// selection for tour planning.
package poi

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/citywander/citywander/internal/geo"
)

// Selection errors.
var (
	// ErrNoCandidates indicates the filtered candidate pool is empty.
	ErrNoCandidates = errors.New("no candidate places available")
)

// Category classifies a place. The set is closed; scoring weights and visit
// durations are looked up from the tables below so selection and validation
// share one source of truth.
type Category string

const (
	CategoryLandmark   Category = "landmark"
	CategoryAttraction Category = "attraction"
	CategoryMuseum     Category = "museum"
	CategoryMonument   Category = "monument"
	CategoryGallery    Category = "gallery"
	CategoryReligious  Category = "religious_site"
	CategoryViewpoint  Category = "viewpoint"
	CategoryPark       Category = "park"
	CategoryNatural    Category = "natural_feature"
)

// categoryWeights holds the fixed per-category priority used in scoring.
// Landmarks and attractions rank highest, minor natural features lowest.
var categoryWeights = map[Category]float64{
	CategoryLandmark:   1.0,
	CategoryAttraction: 0.9,
	CategoryMuseum:     0.8,
	CategoryMonument:   0.75,
	CategoryGallery:    0.7,
	CategoryReligious:  0.65,
	CategoryViewpoint:  0.55,
	CategoryPark:       0.5,
	CategoryNatural:    0.3,
}

// categoryVisitDurations holds the estimated time spent at a stop of each
// category.
var categoryVisitDurations = map[Category]time.Duration{
	CategoryLandmark:   30 * time.Minute,
	CategoryAttraction: 30 * time.Minute,
	CategoryMuseum:     60 * time.Minute,
	CategoryMonument:   15 * time.Minute,
	CategoryGallery:    45 * time.Minute,
	CategoryReligious:  20 * time.Minute,
	CategoryViewpoint:  10 * time.Minute,
	CategoryPark:       25 * time.Minute,
	CategoryNatural:    15 * time.Minute,
}

// AllCategories returns the closed category set in priority order.
func AllCategories() []Category {
	return []Category{
		CategoryLandmark,
		CategoryAttraction,
		CategoryMuseum,
		CategoryMonument,
		CategoryGallery,
		CategoryReligious,
		CategoryViewpoint,
		CategoryPark,
		CategoryNatural,
	}
}

// Weight returns the fixed priority weight for the category.
// Unknown categories fall back to the natural-feature weight.
func (c Category) Weight() float64 {
	if w, ok := categoryWeights[c]; ok {
		return w
	}
	return categoryWeights[CategoryNatural]
}

// VisitDuration returns the estimated visit duration for a stop of this
// category.
func (c Category) VisitDuration() time.Duration {
	if d, ok := categoryVisitDurations[c]; ok {
		return d
	}
	return categoryVisitDurations[CategoryNatural]
}

// Valid reports whether the category is part of the closed set.
func (c Category) Valid() bool {
	_, ok := categoryWeights[c]
	return ok
}

// Contact holds optional contact metadata for a place.
type Contact struct {
	Phone   string
	Website string
}

// POI is a candidate place to visit. Instances are immutable for the
// duration of a planning session.
type POI struct {
	// ID is the stable identifier. It is derived, never random, so the same
	// physical place maps to the same id across requests.
	ID          string
	Name        string
	Coordinate  geo.Coordinate
	Category    Category
	Description string
	City        string
	Address     string
	Contact     Contact
	// OpeningHours is free-form provider text, e.g. "Mo-Su 09:00-18:00".
	OpeningHours string
}

// Valid reports whether the POI carries the minimum usable data: an id, a
// name, an in-range coordinate and a known category.
func (p *POI) Valid() bool {
	return p.ID != "" && p.Name != "" && p.Coordinate.Valid() && p.Category.Valid()
}

// StableID derives a deterministic POI id. When the discovery provider
// supplies a place id it is used directly; otherwise the id is a hash of the
// normalized name and the rounded coordinate.
func StableID(providerPlaceID, name string, coord geo.Coordinate) string {
	if providerPlaceID != "" {
		return "poi_" + providerPlaceID
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(coord.Key()))
	return fmt.Sprintf("poi_%016x", h.Sum64())
}

// RichnessScore rewards the presence of contact, hours and description
// metadata. Returns a value in [0, 1].
func (p *POI) RichnessScore() float64 {
	score := 0.0
	if p.Contact.Website != "" {
		score += 0.25
	}
	if p.Contact.Phone != "" {
		score += 0.25
	}
	if p.OpeningHours != "" {
		score += 0.25
	}
	if p.Description != "" {
		score += 0.25
	}
	return score
}
