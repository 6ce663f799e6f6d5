// Package discovery finds candidate points of interest around a tour start
// location, fanning out to a places provider per category and caching the
// merged results.
package discovery

import "errors"

// Discovery errors.
var (
	// ErrProviderUnavailable indicates every category search failed.
	ErrProviderUnavailable = errors.New("places provider unavailable")

	// ErrInvalidCoordinates indicates a center outside the WGS84 range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrInvalidRadius indicates a non-positive search radius.
	ErrInvalidRadius = errors.New("search radius must be positive")
)

// CacheStats contains discovery cache statistics.
type CacheStats struct {
	Entries      int
	FreshEntries int
	Provider     string
}
