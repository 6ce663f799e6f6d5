package poi

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/citywander/citywander/internal/geo"
)

// Scoring weights for candidate selection. Category priority dominates,
// proximity to the start and metadata richness share the rest.
const (
	categoryScoreWeight  = 0.4
	proximityScoreWeight = 0.3
	richnessScoreWeight  = 0.3
)

// DefaultSearchRadiusMeters is the radius the proximity score decays over
// when the caller does not configure one.
const DefaultSearchRadiusMeters = 2500.0

// DefaultDesiredCount is the number of candidates selected when the stop
// count is unbounded.
const DefaultDesiredCount = 10

// SelectionRequest describes one candidate-selection run.
type SelectionRequest struct {
	// Start is the tour start location; proximity scores decay with distance
	// from it.
	Start geo.Coordinate

	// City filters candidates by address city (case-insensitive substring
	// match in either direction). Empty keeps all candidates.
	City string

	// DesiredCount is the target number of selected POIs.
	// Zero means DefaultDesiredCount.
	DesiredCount int

	// MinPOIDistanceMeters rejects a candidate closer than this to any
	// already-accepted candidate. Zero disables anti-clustering.
	MinPOIDistanceMeters float64

	// SearchRadiusMeters bounds the proximity-score decay.
	// Zero means DefaultSearchRadiusMeters.
	SearchRadiusMeters float64

	// ExcludedIDs are POI ids that must not be selected, e.g. places already
	// used in a previous tour.
	ExcludedIDs map[string]struct{}
}

// SelectorConfig holds configuration for the selector.
type SelectorConfig struct {
	// Logger for selection operations.
	Logger zerolog.Logger
}

// Selector filters, scores and diversifies a raw POI pool into the
// candidate set handed to the tour optimizer.
type Selector struct {
	logger zerolog.Logger
}

// NewSelector creates a new candidate selector.
func NewSelector(cfg SelectorConfig) *Selector {
	return &Selector{logger: cfg.Logger}
}

// Scored pairs a POI with its selection score.
type Scored struct {
	POI   POI
	Score float64
}

// Score computes the selection score for a single POI relative to a start
// location. Exposed so route validation can recompute scores when deciding
// which stop to degrade.
func Score(p *POI, start geo.Coordinate, searchRadiusMeters float64) float64 {
	if searchRadiusMeters <= 0 {
		searchRadiusMeters = DefaultSearchRadiusMeters
	}

	dist := geo.Haversine(start, p.Coordinate)
	proximity := 1.0 - dist/searchRadiusMeters
	if proximity < 0 {
		proximity = 0
	}

	return p.Category.Weight()*categoryScoreWeight +
		proximity*proximityScoreWeight +
		p.RichnessScore()*richnessScoreWeight
}

// Select picks a diversified, anti-clustered top-N from the pool.
// The pool is treated as read-only. Returns ErrNoCandidates when the
// filtered pool is empty; the orchestrator decides whether to widen the
// search or fail the request.
func (s *Selector) Select(pool []POI, req SelectionRequest) ([]Scored, error) {
	desired := req.DesiredCount
	if desired <= 0 {
		desired = DefaultDesiredCount
	}

	filtered := make([]POI, 0, len(pool))
	for _, p := range pool {
		if _, excluded := req.ExcludedIDs[p.ID]; excluded {
			continue
		}
		if !matchesCity(p.City, req.City) {
			continue
		}
		filtered = append(filtered, p)
	}

	if len(filtered) == 0 {
		s.logger.Debug().
			Str("city", req.City).
			Int("pool_size", len(pool)).
			Msg("candidate pool empty after filtering")
		return nil, ErrNoCandidates
	}

	scored := make([]Scored, 0, len(filtered))
	for _, p := range filtered {
		scored = append(scored, Scored{
			POI:   p,
			Score: Score(&p, req.Start, req.SearchRadiusMeters),
		})
	}

	// Deterministic ordering: score descending, name ascending on ties.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].POI.Name < scored[j].POI.Name
	})

	// Geographic anti-clustering: walking the score order, drop a candidate
	// that sits too close to an already-accepted one.
	if req.MinPOIDistanceMeters > 0 {
		scored = antiCluster(scored, req.MinPOIDistanceMeters)
	}

	selected := diversify(scored, desired)

	s.logger.Debug().
		Int("pool_size", len(pool)).
		Int("filtered", len(filtered)).
		Int("selected", len(selected)).
		Int("desired", desired).
		Msg("selected tour candidates")

	return selected, nil
}

// matchesCity reports whether a POI city matches the requested city with a
// case-insensitive substring match in either direction. POIs without an
// address city are kept.
func matchesCity(poiCity, requestedCity string) bool {
	if requestedCity == "" || poiCity == "" {
		return true
	}

	a := strings.ToLower(poiCity)
	b := strings.ToLower(requestedCity)
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// antiCluster keeps candidates in score order, rejecting any candidate
// closer than minDistance to an already-accepted one.
func antiCluster(scored []Scored, minDistance float64) []Scored {
	accepted := make([]Scored, 0, len(scored))

	for _, cand := range scored {
		tooClose := false
		for _, acc := range accepted {
			if geo.Haversine(cand.POI.Coordinate, acc.POI.Coordinate) < minDistance {
				tooClose = true
				break
			}
		}
		if !tooClose {
			accepted = append(accepted, cand)
		}
	}

	return accepted
}

// diversify caps how many POIs per category enter the result, then fills any
// remaining slots with the next-highest-scored candidates regardless of
// category.
func diversify(scored []Scored, desired int) []Scored {
	if len(scored) <= desired {
		result := make([]Scored, len(scored))
		copy(result, scored)
		return result
	}

	categories := make(map[Category]struct{})
	for _, c := range scored {
		categories[c.POI.Category] = struct{}{}
	}

	perCategory := desired / len(categories)
	if perCategory < 1 {
		perCategory = 1
	}

	taken := make(map[string]struct{}, desired)
	counts := make(map[Category]int)
	result := make([]Scored, 0, desired)

	for _, c := range scored {
		if len(result) >= desired {
			return result
		}
		if counts[c.POI.Category] >= perCategory {
			continue
		}
		counts[c.POI.Category]++
		taken[c.POI.ID] = struct{}{}
		result = append(result, c)
	}

	// Category quotas exhausted; top up from the remaining score order.
	for _, c := range scored {
		if len(result) >= desired {
			break
		}
		if _, ok := taken[c.POI.ID]; ok {
			continue
		}
		taken[c.POI.ID] = struct{}{}
		result = append(result, c)
	}

	return result
}
